package pubsub

import (
	"strings"

	"github.com/becheran/wildmatch-go"
)

const wildcards = "*?"

// IsPattern reports whether a channel name is a pattern channel, that is
// whether it contains '*' or '?'.
func IsPattern(channel string) bool {
	return strings.ContainsAny(channel, wildcards)
}

// Pattern is a compiled pattern channel.
type Pattern struct {
	raw     string
	matcher *wildmatch.WildMatch
}

// CompilePattern compiles a channel pattern. Only '*' and '?' are special;
// every other character, including '\', '[' and '{', matches itself. '*'
// matches any run of characters, including none, and '?' matches exactly one
// character. Both work on runes, not bytes.
//
// Every string is a valid pattern today. The error is kept so callers handle
// ErrInvalidPattern should the syntax grow.
func CompilePattern(pattern string) (Pattern, error) {
	return Pattern{raw: pattern, matcher: wildmatch.NewWildMatch(pattern)}, nil
}

// Match reports whether the whole channel name matches the pattern.
func (p Pattern) Match(channel string) bool {
	if p.matcher == nil {
		return false
	}
	return p.matcher.IsMatch(channel)
}

// String returns the pattern as it was subscribed
func (p Pattern) String() string {
	return p.raw
}

// Match reports whether channel matches pattern. Invalid patterns match nothing.
func Match(pattern, channel string) bool {
	p, err := CompilePattern(pattern)
	if err != nil {
		return false
	}
	return p.Match(channel)
}
