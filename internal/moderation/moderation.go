// Package moderation screens user turns before they are stored or sent to a model.
package moderation

import (
	"regexp"
	"strings"
)

const (
	ActionAllow = "allow"
	ActionBlock = "block"
)

type Result struct {
	Action string   `json:"action"`
	Flags  []string `json:"flags"`
}

func (r Result) Blocked() bool { return r.Action == ActionBlock }

// DefaultBanned is the baseline word list.
var DefaultBanned = []string{"spam", "violence", "abuse"}

type Moderator struct {
	patterns map[string]*regexp.Regexp
	words    []string
}

func New(words []string) *Moderator {
	m := &Moderator{patterns: make(map[string]*regexp.Regexp, len(words))}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := m.patterns[w]; dup {
			continue
		}
		m.patterns[w] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
		m.words = append(m.words, w)
	}
	return m
}

// Check flags every banned word present as a whole word (case-insensitive).
func (m *Moderator) Check(text string) Result {
	lower := strings.ToLower(text)
	var flags []string
	for _, w := range m.words {
		if m.patterns[w].MatchString(lower) {
			flags = append(flags, w)
		}
	}
	if len(flags) > 0 {
		return Result{Action: ActionBlock, Flags: flags}
	}
	return Result{Action: ActionAllow, Flags: []string{}}
}
