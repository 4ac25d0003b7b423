// Package rules holds the game state -> application volume table.
package rules

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
	"github.com/GriffinCanCode/soundswitch/internal/gamestate"
)

// Target is the volume one application should have in a state.
type Target struct {
	Process string  `yaml:"process" json:"process"`
	Volume  float32 `yaml:"volume" json:"volume"`
}

// Table maps states to targets. States without an entry take no action.
type Table map[gamestate.State][]Target

// DefaultMusicProcess is the application the built-in table controls.
const DefaultMusicProcess = "Spotify.exe"

// Default returns the built-in table: duck music during preparation,
// mute it in the action phase, restore it on the result screen.
func Default() Table {
	return Table{
		gamestate.Preparation: {{Process: DefaultMusicProcess, Volume: 0.35}},
		gamestate.Action:      {{Process: DefaultMusicProcess, Volume: 0}},
		gamestate.Victory:     {{Process: DefaultMusicProcess, Volume: 1}},
		gamestate.Defeat:      {{Process: DefaultMusicProcess, Volume: 1}},
	}
}

// Lookup returns the targets for s.
func (t Table) Lookup(s gamestate.State) []Target {
	return t[s]
}

// Processes returns every process name the table touches, sorted.
func (t Table) Processes() []string {
	seen := make(map[string]struct{})
	for _, targets := range t {
		for _, tg := range targets {
			seen[strings.ToLower(tg.Process)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Validate checks process names and volume ranges.
func (t Table) Validate() error {
	for s, targets := range t {
		if !s.Known() {
			return apperrors.Newf(apperrors.RulesInvalid, "rule for non-keyword state %q", s)
		}
		for _, tg := range targets {
			if strings.TrimSpace(tg.Process) == "" {
				return apperrors.Newf(apperrors.RulesInvalid, "empty process name in %s rules", s)
			}
			if tg.Volume < 0 || tg.Volume > 1 {
				return apperrors.Newf(apperrors.RulesInvalid, "volume %.2f out of range [0,1]", tg.Volume).
					WithMetadata("state", s.String()).
					WithMetadata("process", tg.Process)
			}
		}
	}
	return nil
}

type file struct {
	States map[string][]Target `yaml:"states"`
}

// Parse decodes a YAML rules document.
func Parse(data []byte) (Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, apperrors.Wrap(err, apperrors.RulesInvalid, "parse rules yaml")
	}
	if len(f.States) == 0 {
		return nil, apperrors.New(apperrors.RulesInvalid, "rules file defines no states")
	}

	table := make(Table, len(f.States))
	for name, targets := range f.States {
		s, ok := gamestate.ParseState(name)
		if !ok || !s.Known() {
			return nil, apperrors.Newf(apperrors.RulesInvalid, "unknown state %q", name)
		}
		for i := range targets {
			targets[i].Process = strings.TrimSpace(targets[i].Process)
		}
		table[s] = targets
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Load reads a YAML rules file; an empty path yields the default table.
func Load(path string) (Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.RulesInvalid, fmt.Sprintf("read %s", path))
	}
	return Parse(data)
}
