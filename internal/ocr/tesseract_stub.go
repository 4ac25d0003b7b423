//go:build !ocr

package ocr

import (
	"context"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

// Tesseract is a stub engine that fails every call.
type Tesseract struct{}

// New returns ErrOCRNotEnabled. Rebuild with: go build -tags ocr
func New(Options) (*Tesseract, error) {
	return nil, apperrors.Wrap(ErrOCRNotEnabled, apperrors.OCRInitFailed, "tesseract unavailable")
}

// ExtractText validates input, then reports OCR as disabled.
func (t *Tesseract) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	if err := checkInput(ctx, imageData); err != nil {
		return "", err
	}
	return "", apperrors.Wrap(ErrOCRNotEnabled, apperrors.OCRExtractFailed, "tesseract unavailable")
}

// Close is a no-op. It is safe to call on a nil engine.
func (t *Tesseract) Close() error {
	return nil
}
