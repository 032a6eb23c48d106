package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		sends   []string
		channel string
		cfg     Config
		allowed bool
		scope   Scope
		reason  string
	}{
		{
			name:    "fresh state",
			channel: "slack",
			cfg:     Config{MaxPerRun: 2, MaxPerChannel: 1},
			allowed: true,
		},
		{
			name:    "global limit reached",
			sends:   []string{"a", "b"},
			channel: "c",
			cfg:     Config{MaxPerRun: 2, MaxPerChannel: 5},
			allowed: false,
			scope:   ScopeGlobal,
			reason:  "Global limit exceeded: 2/2 alerts",
		},
		{
			name:    "channel limit reached",
			sends:   []string{"slack"},
			channel: "slack",
			cfg:     Config{MaxPerRun: 10, MaxPerChannel: 1},
			allowed: false,
			scope:   ScopeChannel,
			reason:  "Channel limit exceeded for 'slack': 1/1 alerts",
		},
		{
			name:    "other channel unaffected",
			sends:   []string{"slack"},
			channel: "twitter",
			cfg:     Config{MaxPerRun: 10, MaxPerChannel: 1},
			allowed: true,
		},
		{
			name:    "global checked before channel",
			sends:   []string{"slack", "slack"},
			channel: "slack",
			cfg:     Config{MaxPerRun: 2, MaxPerChannel: 2},
			allowed: false,
			scope:   ScopeGlobal,
			reason:  "Global limit exceeded: 2/2 alerts",
		},
		{
			name:    "zero limits are unlimited",
			sends:   []string{"slack", "slack", "slack", "slack", "slack"},
			channel: "slack",
			cfg:     Config{},
			allowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewState()
			for _, ch := range tt.sends {
				state = Record(ch, state)
			}

			res := Check(tt.channel, state, tt.cfg)

			assert.Equal(t, tt.allowed, res.Allowed)
			assert.Equal(t, tt.scope, res.Scope)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, len(tt.sends), res.TotalCount)
		})
	}
}

func TestCheck_GlobalLimitBlocksEveryChannel(t *testing.T) {
	cfg := Config{MaxPerRun: 3}
	state := NewState()
	for _, ch := range []string{"a", "b", "c"} {
		require.True(t, Check(ch, state, cfg).Allowed)
		state = Record(ch, state)
	}

	for _, ch := range []string{"a", "b", "c", "d", "never-used"} {
		res := Check(ch, state, cfg)
		assert.False(t, res.Allowed, ch)
		assert.Equal(t, ScopeGlobal, res.Scope)
	}
}

func TestCheck_ZeroValueState(t *testing.T) {
	var state State
	assert.True(t, Check("slack", state, DefaultConfig()).Allowed)

	state = Record("slack", state)
	assert.Equal(t, 1, state.Total())
	assert.Equal(t, 1, state.CountFor("slack"))
}

func TestRecord_DoesNotMutateInput(t *testing.T) {
	original := Record("slack", NewState())
	next := Record("slack", original)
	next = Record("twitter", next)

	assert.Equal(t, 1, original.Total())
	assert.Equal(t, 1, original.CountFor("slack"))
	assert.Equal(t, 0, original.CountFor("twitter"))

	assert.Equal(t, 3, next.Total())
	assert.Equal(t, 2, next.CountFor("slack"))
	assert.Equal(t, 1, next.CountFor("twitter"))
}

func TestViolations(t *testing.T) {
	cfg := Config{MaxPerRun: 3, MaxPerChannel: 2}
	state := NewState()
	for _, ch := range []string{"whatsapp", "slack", "slack"} {
		state = Record(ch, state)
	}

	violations := Violations(state, cfg)

	require.Len(t, violations, 2)
	assert.Equal(t, ScopeGlobal, violations[0].Scope)
	assert.Equal(t, "Global rate limit reached: 3/3 alerts", violations[0].Message)
	assert.Equal(t, ScopeChannel, violations[1].Scope)
	assert.Equal(t, "slack", violations[1].Channel)
	assert.Equal(t, 2, violations[1].Count)
	assert.Equal(t, 2, violations[1].Limit)
}

func TestViolations_None(t *testing.T) {
	state := Record("slack", NewState())

	assert.Empty(t, Violations(state, DefaultConfig()))
	assert.Empty(t, Violations(state, Config{}))
}

func TestFormatViolations(t *testing.T) {
	assert.Equal(t, "", FormatViolations(nil))

	msg := FormatViolations([]Violation{
		{Message: "Global rate limit reached: 10/10 alerts"},
		{Message: "Channel 'slack' rate limit reached: 5/5 alerts"},
	})

	assert.Equal(t, "Rate limit violations detected:\n"+
		"  - Global rate limit reached: 10/10 alerts\n"+
		"  - Channel 'slack' rate limit reached: 5/5 alerts", msg)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 10, cfg.MaxPerRun)
	assert.Equal(t, 5, cfg.MaxPerChannel)
	assert.False(t, cfg.FailOnLimitExceeded)
}
