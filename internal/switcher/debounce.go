package switcher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/GriffinCanCode/soundswitch/internal/gamestate"
)

// Debouncer turns per-frame observations into switch decisions.
type Debouncer struct {
	mu       sync.Mutex
	enabled  bool
	stable   int
	cooldown time.Duration

	pending    gamestate.State
	streak     int
	applied    gamestate.State
	lastSwitch time.Time
}

// NewDebouncer requires stableFrames consecutive sightings of a state and at
// least cooldown between two switches.
func NewDebouncer(stableFrames int, cooldown time.Duration) *Debouncer {
	if stableFrames < 1 {
		stableFrames = 1
	}
	return &Debouncer{enabled: true, stable: stableFrames, cooldown: cooldown}
}

// Observe feeds one classified frame. It reports the state to switch to once
// that state has been stable long enough, differs from the applied one and
// the cooldown has passed. Unknown frames are ignored.
func (d *Debouncer) Observe(s gamestate.State, now time.Time) (gamestate.State, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.enabled || !s.Known() {
		return gamestate.Unknown, false
	}

	if s != d.pending {
		d.pending = s
		d.streak = 0
	}
	if d.streak < d.stable {
		d.streak++
	}

	if d.streak < d.stable || s == d.applied {
		return gamestate.Unknown, false
	}
	if !d.lastSwitch.IsZero() && now.Sub(d.lastSwitch) < d.cooldown {
		return gamestate.Unknown, false
	}
	return s, true
}

// Commit records s as applied at now. Until Commit is called the same
// decision is reported again on the next stable observation.
func (d *Debouncer) Commit(s gamestate.State, now time.Time) {
	d.mu.Lock()
	d.applied = s
	d.lastSwitch = now
	d.mu.Unlock()
}

// Applied returns the last committed state.
func (d *Debouncer) Applied() gamestate.State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applied
}

// SetEnabled pauses or resumes switching. A paused debouncer drops its streak.
func (d *Debouncer) SetEnabled(enabled bool) {
	d.mu.Lock()
	d.enabled = enabled
	if !enabled {
		d.pending = gamestate.Unknown
		d.streak = 0
	}
	d.mu.Unlock()
	slog.Info("switching state changed", "enabled", enabled)
}

// IsEnabled returns current enabled state
func (d *Debouncer) IsEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}
