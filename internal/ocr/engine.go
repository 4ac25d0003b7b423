// Package ocr extracts text from preprocessed frames.
//
// The Tesseract engine is compiled in with the "ocr" build tag and needs
// libtesseract at runtime. On Windows, install the UB Mannheim build and
// make sure tessdata is on TESSDATA_PREFIX.
package ocr

import (
	"context"
	"errors"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

// ErrOCRNotEnabled is returned when the binary was built without the "ocr" tag.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// Whitelist limits recognition to the characters the game-state keywords use.
const Whitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ "

// Engine turns an encoded image into text.
type Engine interface {
	ExtractText(ctx context.Context, imageData []byte) (string, error)
	Close() error
}

// Options configures engine construction.
type Options struct {
	Language string
}

func checkInput(ctx context.Context, imageData []byte) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.Cancelled, "ocr cancelled")
	}
	if len(imageData) == 0 {
		return apperrors.New(apperrors.OCRInvalidImage, "empty image")
	}
	return nil
}
