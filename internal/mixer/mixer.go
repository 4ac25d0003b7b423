// Package mixer sets per-application output volume through OS audio sessions.
package mixer

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
	"github.com/GriffinCanCode/soundswitch/internal/resilience"
	"github.com/GriffinCanCode/soundswitch/internal/rules"
)

// VolumeEpsilon is the distance below which a session already counts as at its target.
const VolumeEpsilon = 0.005

// Session is one audio session on the default render endpoint.
type Session struct {
	ID      int // backend handle, valid until the next Sessions call
	PID     uint32
	Process string
	Volume  float32
}

// Backend is the platform audio-session API.
type Backend interface {
	Sessions() ([]Session, error)
	SetVolume(id int, level float32) error
	Close() error
}

// Result summarises one Apply call.
type Result struct {
	Changed   int      `json:"changed"`
	Unchanged int      `json:"unchanged"`
	Missing   []string `json:"missing,omitempty"`
}

// Mixer applies volume targets to matching sessions.
type Mixer struct {
	backend Backend
	breaker *resilience.Breaker
}

// New wraps backend with a circuit breaker.
func New(backend Backend, cfg resilience.Config) *Mixer {
	return &Mixer{backend: backend, breaker: resilience.New(cfg)}
}

// Stats reports the audio breaker state.
func (m *Mixer) Stats() resilience.Stats { return m.breaker.Stats() }

// Apply sets every session matching a target to the target level. Sessions
// already within VolumeEpsilon are left alone, so repeating Apply is a no-op.
func (m *Mixer) Apply(ctx context.Context, targets []rules.Target) (Result, error) {
	if len(targets) == 0 {
		return Result{}, nil
	}
	res, err := resilience.ExecuteWithResult(m.breaker, func() (Result, error) {
		return m.apply(ctx, targets)
	})
	if errors.Is(err, resilience.ErrOpen) {
		return res, apperrors.Wrap(err, apperrors.Unavailable, "audio breaker open")
	}
	return res, err
}

func (m *Mixer) apply(ctx context.Context, targets []rules.Target) (Result, error) {
	sessions, err := m.backend.Sessions()
	if err != nil {
		return Result{}, apperrors.Wrap(err, apperrors.AudioSessionFailed, "enumerate audio sessions")
	}

	var res Result
	for _, tg := range targets {
		found := false
		for _, s := range sessions {
			if !MatchProcess(s.Process, tg.Process) {
				continue
			}
			found = true
			if abs(s.Volume-tg.Volume) < VolumeEpsilon {
				res.Unchanged++
				continue
			}
			if err := ctx.Err(); err != nil {
				return res, apperrors.Wrap(err, apperrors.Cancelled, "apply cancelled")
			}
			if err := m.backend.SetVolume(s.ID, tg.Volume); err != nil {
				return res, apperrors.Wrap(err, apperrors.AudioSessionFailed, "set session volume").
					WithMetadata("process", s.Process)
			}
			slog.Debug("session volume set", "process", s.Process, "pid", s.PID, "from", s.Volume, "to", tg.Volume)
			res.Changed++
		}
		if !found {
			res.Missing = append(res.Missing, tg.Process)
		}
	}
	return res, nil
}

// Close releases the backend.
func (m *Mixer) Close() error {
	return m.backend.Close()
}

// MatchProcess compares executable names case-insensitively, ignoring
// directories and an optional ".exe" suffix on either side.
func MatchProcess(name, want string) bool {
	n, w := baseName(name), baseName(want)
	return n != "" && n == w
}

func baseName(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.LastIndexAny(p, `\/`); i >= 0 {
		p = p[i+1:]
	}
	p = strings.ToLower(p)
	if strings.EqualFold(filepath.Ext(p), ".exe") {
		p = strings.TrimSuffix(p, ".exe")
	}
	return p
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
