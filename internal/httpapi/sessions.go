package httpapi

import (
	"errors"
	"sync"

	"github.com/rmacdonaldsmith/pubsub-go/internal/clients"
	"github.com/rmacdonaldsmith/pubsub-go/internal/hub"
)

// errMailboxAttached is returned when a second stream tries to drain a
// mailbox that already has a reader
var errMailboxAttached = errors.New("mailbox is already being streamed")

// sessions holds one mailbox client per authenticated client ID. Subscriptions
// made through the REST endpoints deliver into the caller's mailbox, which is
// drained by at most one stream request without channel filters.
type sessions struct {
	hub    *hub.Hub
	buffer int

	mu       sync.Mutex
	byID     map[string]*clients.Stream[hub.Event]
	attached map[string]bool
}

func newSessions(h *hub.Hub, buffer int) *sessions {
	return &sessions{
		hub:      h,
		buffer:   buffer,
		byID:     make(map[string]*clients.Stream[hub.Event]),
		attached: make(map[string]bool),
	}
}

// get returns the mailbox of clientID if it exists
func (s *sessions) get(clientID string) (*clients.Stream[hub.Event], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mailbox, ok := s.byID[clientID]
	return mailbox, ok
}

// open returns the mailbox of clientID, connecting a new one to the hub on
// first use.
func (s *sessions) open(clientID string) (*clients.Stream[hub.Event], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(clientID)
}

// attach opens the mailbox of clientID for a stream reader. The returned
// detach func must be called when the reader goes away.
func (s *sessions) attach(clientID string) (*clients.Stream[hub.Event], func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached[clientID] {
		return nil, nil, errMailboxAttached
	}
	mailbox, err := s.openLocked(clientID)
	if err != nil {
		return nil, nil, err
	}
	s.attached[clientID] = true

	detach := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.attached, clientID)
	}
	return mailbox, detach, nil
}

func (s *sessions) openLocked(clientID string) (*clients.Stream[hub.Event], error) {
	if mailbox, ok := s.byID[clientID]; ok {
		return mailbox, nil
	}

	mailbox := clients.NewStream[hub.Event](clientID, s.buffer)
	if err := s.hub.Connect(mailbox); err != nil {
		return nil, err
	}
	s.byID[clientID] = mailbox
	return mailbox, nil
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// closeAll disconnects every mailbox and ends the streams draining them
func (s *sessions) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, mailbox := range s.byID {
		s.hub.Disconnect(mailbox)
		mailbox.Close()
		delete(s.byID, id)
	}
	clear(s.attached)
}
