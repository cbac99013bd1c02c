package pubsub

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPattern(t *testing.T) {
	tests := []struct {
		channel string
		want    bool
	}{
		{"channel.a", false},
		{"channel.*", true},
		{"channel.?", true},
		{"*", true},
		{"[abc]", false},
		{"{a,b}", false},
		{`a\b`, false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPattern(tt.channel), "IsPattern(%q)", tt.channel)
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		channel string
		want    bool
	}{
		{"star matches suffix", "channel.*", "channel.a", true},
		{"star matches other suffix", "channel.*", "channel.b", true},
		{"star matches empty run", "channel.*", "channel.", true},
		{"star matches across dots", "channel.*", "channel.a.b", true},
		{"star does not match other prefix", "channel.*", "other.a", false},
		{"question matches one character", "channel.?", "channel.a", true},
		{"question rejects two characters", "channel.?", "channel.ab", false},
		{"question rejects zero characters", "channel.?", "channel.", false},
		{"question matches one rune", "caf?", "café", true},
		{"leading star", "*.created", "orders.created", true},
		{"inner star", "orders.*.eu", "orders.created.eu", true},
		{"inner star mismatch", "orders.*.eu", "orders.created.us", false},
		{"lone star matches empty", "*", "", true},
		{"lone star matches anything", "*", "anything at all", true},
		{"mixed wildcards", "a?c*", "abcdef", true},

		{"case sensitive", "Channel.*", "channel.a", false},
		{"case sensitive single", "channel.?", "channel.A", true},
		{"anchored at start", "a*", "ba", false},
		{"anchored at end", "*a", "ab", false},

		{"backslash is literal", `a\*`, `a\b`, true},
		{"backslash does not escape", `a\*`, "a*", false},
		{"brackets are literal", "[ab]*", "[ab]x", true},
		{"brackets are not a range", "[ab]*", "ax", false},
		{"braces are literal", "{a,b}?", "{a,b}x", true},
		{"braces are not alternation", "{a,b}?", "ax", false},
		{"bang and dash are literal", "!-*", "!-x", true},

		{"star and suffix cannot share a character", "a*a", "a", false},
		{"star and suffix meet", "a*a", "aa", true},
		{"question never matches empty", "?", "", false},
		{"question before multibyte", "?é", "xé", true},
		{"multibyte before question", "é?", "é-", true},
		{"question consumes a multibyte rune", "?", "é", true},
		{"inner star needs both dots", "orders.*.orders", "orders.orders", false},
		{"inner star with empty run", "orders.*.orders", "orders..orders", true},
		{"dots around star need two characters", ".*.", ".", false},
		{"repeated stars", "a**b", "ab", true},
		{"star then question", "*?", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.pattern, tt.channel), "Match(%q, %q)", tt.pattern, tt.channel)
		})
	}
}

func TestCompilePattern(t *testing.T) {
	p, err := CompilePattern("orders.*")
	require.NoError(t, err)

	assert.Equal(t, "orders.*", p.String())
	assert.True(t, p.Match("orders.created"))
	assert.False(t, p.Match("inventory.created"))
}

func TestPattern_ZeroValueMatchesNothing(t *testing.T) {
	var p Pattern
	assert.False(t, p.Match(""))
	assert.False(t, p.Match("anything"))
}

// matchRunes is a direct recursive reading of the pattern rules, used to
// cross-check the compiled matcher.
func matchRunes(pattern, channel []rune) bool {
	if len(pattern) == 0 {
		return len(channel) == 0
	}
	switch pattern[0] {
	case '*':
		for i := 0; i <= len(channel); i++ {
			if matchRunes(pattern[1:], channel[i:]) {
				return true
			}
		}
		return false
	case '?':
		return len(channel) > 0 && matchRunes(pattern[1:], channel[1:])
	default:
		return len(channel) > 0 && pattern[0] == channel[0] && matchRunes(pattern[1:], channel[1:])
	}
}

func randomString(rng *rand.Rand, alphabet []rune, maxLen int) string {
	var b strings.Builder
	for n := rng.Intn(maxLen + 1); n > 0; n-- {
		b.WriteRune(alphabet[rng.Intn(len(alphabet))])
	}
	return b.String()
}

func TestMatch_AgreesWithRecursiveMatcher(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	patternAlphabet := []rune{'a', '.', 'é', '*', '?'}
	channelAlphabet := []rune{'a', '.', 'é', 'b'}

	for i := 0; i < 5000; i++ {
		pattern := randomString(rng, patternAlphabet, 6)
		channel := randomString(rng, channelAlphabet, 6)

		want := matchRunes([]rune(pattern), []rune(channel))
		if !assert.Equal(t, want, Match(pattern, channel), "Match(%q, %q)", pattern, channel) {
			return
		}
	}
}
