//go:build !windows

package mixer

import (
	"runtime"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

// Open returns the platform backend. Per-application volume needs the
// Windows audio session API.
func Open() (Backend, error) {
	return nil, apperrors.Newf(apperrors.AudioUnsupported, "per-application volume is not supported on %s", runtime.GOOS)
}
