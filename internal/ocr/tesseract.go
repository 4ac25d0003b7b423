//go:build ocr

package ocr

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

// Tesseract wraps a gosseract client. It is not safe for concurrent use;
// the pipeline calls it from a single goroutine.
type Tesseract struct {
	client *gosseract.Client
}

// New creates a Tesseract engine. The engine should be closed when no longer needed.
func New(opts Options) (*Tesseract, error) {
	client := gosseract.NewClient()
	lang := opts.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, apperrors.Wrap(err, apperrors.OCRInitFailed, "set language").WithMetadata("language", lang)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, apperrors.Wrap(err, apperrors.OCRInitFailed, "set page segmentation mode")
	}
	if err := client.SetWhitelist(Whitelist); err != nil {
		client.Close()
		return nil, apperrors.Wrap(err, apperrors.OCRInitFailed, "set whitelist")
	}
	return &Tesseract{client: client}, nil
}

// ExtractText runs OCR on PNG/BMP/TIFF bytes and returns trimmed text.
func (t *Tesseract) ExtractText(ctx context.Context, imageData []byte) (string, error) {
	if err := checkInput(ctx, imageData); err != nil {
		return "", err
	}
	if err := t.client.SetImageFromBytes(imageData); err != nil {
		return "", apperrors.Wrap(err, apperrors.OCRInvalidImage, "set image")
	}
	text, err := t.client.Text()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.OCRExtractFailed, "tesseract")
	}
	return strings.TrimSpace(text), nil
}

// Close releases Tesseract resources.
func (t *Tesseract) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
