// Package screen provides fixed-region screen capture with change detection
package screen

import (
	"crypto/md5"
	"image"
	"strconv"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

// Region is a rectangle on the virtual desktop.
type Region struct {
	X, Y, Width, Height int
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Validate rejects empty regions.
func (r Region) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return apperrors.New(apperrors.InvalidArgument, "capture region must have positive size").
			WithMetadata("size", strconv.Itoa(r.Width)+"x"+strconv.Itoa(r.Height))
	}
	return nil
}

// Capturer grabs the configured region.
// Capture reports changed=false when the pixels are identical to the previous grab.
type Capturer interface {
	Capture() (*image.RGBA, bool, error)
	Close()
}

// backend implements the raw grab
type backend interface {
	captureRaw(rect image.Rectangle) (*image.RGBA, error)
	cleanup()
}

// baseCapturer provides shared hash-based change detection
type baseCapturer struct {
	backend
	region   Region
	lastHash [16]byte
	hasLast  bool
}

func newBase(b backend, region Region) *baseCapturer {
	return &baseCapturer{backend: b, region: region}
}

func (c *baseCapturer) Capture() (*image.RGBA, bool, error) {
	img, err := c.captureRaw(c.region.Rect())
	if err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.CaptureFailed, "screen capture failed")
	}
	if img == nil || img.Bounds().Empty() {
		return nil, false, apperrors.New(apperrors.CaptureEmpty, "screen capture returned no pixels")
	}

	hash := md5.Sum(img.Pix)
	changed := !c.hasLast || hash != c.lastHash
	c.lastHash = hash
	c.hasLast = true
	return img, changed, nil
}

func (c *baseCapturer) Close() {
	c.cleanup()
}
