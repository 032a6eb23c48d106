package ratelimit

import (
	"fmt"
	"sort"
	"strings"
)

// Scope identifies which limit blocked a send
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeChannel Scope = "channel"
)

// Config bounds how many alerts a single run may send. Zero means unlimited.
type Config struct {
	MaxPerRun           int  `json:"max_alerts_per_run" mapstructure:"max_alerts_per_run"`
	MaxPerChannel       int  `json:"max_alerts_per_channel" mapstructure:"max_alerts_per_channel"`
	FailOnLimitExceeded bool `json:"fail_on_limit_exceeded" mapstructure:"fail_on_limit_exceeded"`
}

// DefaultConfig returns the limits used when none are configured
func DefaultConfig() Config {
	return Config{
		MaxPerRun:     10,
		MaxPerChannel: 5,
	}
}

// State counts the alerts sent during one run. The zero value is an empty
// state. Record returns a new State and leaves its receiver untouched.
type State struct {
	total      int
	perChannel map[string]int
}

// NewState returns an empty state for a fresh run
func NewState() State {
	return State{perChannel: map[string]int{}}
}

// Total returns the number of alerts recorded this run
func (s State) Total() int {
	return s.total
}

// CountFor returns the number of alerts recorded for a channel
func (s State) CountFor(channel string) int {
	return s.perChannel[channel]
}

// Result is the outcome of a Check
type Result struct {
	Allowed      bool
	Reason       string
	Scope        Scope
	TotalCount   int
	ChannelCount int
}

// Check reports whether one more alert may be sent to channel. The global
// limit is checked before the channel limit.
func Check(channel string, s State, cfg Config) Result {
	channelCount := s.CountFor(channel)
	res := Result{Allowed: true, TotalCount: s.total, ChannelCount: channelCount}

	if cfg.MaxPerRun > 0 && s.total >= cfg.MaxPerRun {
		res.Allowed = false
		res.Scope = ScopeGlobal
		res.Reason = fmt.Sprintf("Global limit exceeded: %d/%d alerts", s.total, cfg.MaxPerRun)
		return res
	}

	if cfg.MaxPerChannel > 0 && channelCount >= cfg.MaxPerChannel {
		res.Allowed = false
		res.Scope = ScopeChannel
		res.Reason = fmt.Sprintf("Channel limit exceeded for '%s': %d/%d alerts", channel, channelCount, cfg.MaxPerChannel)
		return res
	}

	return res
}

// Record returns a copy of s with one more alert counted for channel
func Record(channel string, s State) State {
	counts := make(map[string]int, len(s.perChannel)+1)
	for k, v := range s.perChannel {
		counts[k] = v
	}
	counts[channel]++

	return State{total: s.total + 1, perChannel: counts}
}

// Violation describes one limit that has been reached
type Violation struct {
	Scope   Scope
	Channel string
	Count   int
	Limit   int
	Message string
}

// Violations lists every limit reached in s: the global limit first, then
// channels by name.
func Violations(s State, cfg Config) []Violation {
	var out []Violation

	if cfg.MaxPerRun > 0 && s.total >= cfg.MaxPerRun {
		out = append(out, Violation{
			Scope:   ScopeGlobal,
			Count:   s.total,
			Limit:   cfg.MaxPerRun,
			Message: fmt.Sprintf("Global rate limit reached: %d/%d alerts", s.total, cfg.MaxPerRun),
		})
	}

	if cfg.MaxPerChannel > 0 {
		names := make([]string, 0, len(s.perChannel))
		for name := range s.perChannel {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			count := s.perChannel[name]
			if count < cfg.MaxPerChannel {
				continue
			}
			out = append(out, Violation{
				Scope:   ScopeChannel,
				Channel: name,
				Count:   count,
				Limit:   cfg.MaxPerChannel,
				Message: fmt.Sprintf("Channel '%s' rate limit reached: %d/%d alerts", name, count, cfg.MaxPerChannel),
			})
		}
	}

	return out
}

// FormatViolations renders violations as a multi-line report, or "" if none
func FormatViolations(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}

	lines := []string{"Rate limit violations detected:"}
	for _, v := range violations {
		lines = append(lines, "  - "+v.Message)
	}
	return strings.Join(lines, "\n")
}
