package screen

import (
	"image"

	"github.com/kbinani/screenshot"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

type displayBackend struct{}

func (displayBackend) captureRaw(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

func (displayBackend) cleanup() {}

// New creates a capturer for region on the active displays.
func New(region Region) (Capturer, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}

	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, apperrors.New(apperrors.CaptureFailed, "no active displays")
	}
	var desktop image.Rectangle
	for i := 0; i < n; i++ {
		desktop = desktop.Union(screenshot.GetDisplayBounds(i))
	}
	if !region.Rect().Overlaps(desktop) {
		return nil, apperrors.New(apperrors.CaptureFailed, "capture region is outside the desktop").
			WithMetadata("region", region.Rect().String()).
			WithMetadata("desktop", desktop.String())
	}

	return newBase(displayBackend{}, region), nil
}
