// Package gamestate maps OCR text onto the four round phases the switcher reacts to.
package gamestate

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// State is a detected game phase.
type State int

const (
	Unknown State = iota
	Preparation
	Action
	Victory
	Defeat
)

var stateNames = [...]string{"unknown", "preparation", "action", "victory", "defeat"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Known reports whether s is one of the four keyword states.
func (s State) Known() bool { return s >= Preparation && s <= Defeat }

// MarshalText renders the lowercase name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts any name ParseState does.
func (s *State) UnmarshalText(b []byte) error {
	v, ok := ParseState(string(b))
	if !ok {
		return fmt.Errorf("unknown game state %q", b)
	}
	*s = v
	return nil
}

// ParseState is the inverse of String, case-insensitive.
func ParseState(name string) (State, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == name {
			return State(i), true
		}
	}
	return Unknown, false
}

// All lists the keyword states.
func All() []State { return []State{Preparation, Action, Victory, Defeat} }

// keywords in match precedence; round results outrank the phase banners
// because the result screen can still show the phase text underneath.
var keywords = []struct {
	word  string
	state State
}{
	{"VICTORY", Victory},
	{"DEFEAT", Defeat},
	{"ACTION", Action},
	{"PREPARATION", Preparation},
}

// Keyword returns the on-screen word for s.
func Keyword(s State) string {
	for _, k := range keywords {
		if k.state == s {
			return k.word
		}
	}
	return ""
}

// Normalize folds OCR output to uppercase letters with accents and
// separators removed: "Prépar-ation phase" becomes "PREPARATIONPHASE".
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Classify returns the state whose keyword occurs in text, or Unknown.
func Classify(text string) State {
	n := Normalize(text)
	if n == "" {
		return Unknown
	}
	for _, k := range keywords {
		if strings.Contains(n, k.word) {
			return k.state
		}
	}
	return Unknown
}
