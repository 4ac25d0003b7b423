package imaging

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"
)

// Dumper writes debug frames to disk. A nil or disabled Dumper does nothing.
type Dumper struct {
	dir     string
	enabled bool
}

// NewDumper creates the dump directory when enabled.
func NewDumper(dir string, enabled bool) (*Dumper, error) {
	if !enabled {
		return &Dumper{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}
	return &Dumper{dir: dir, enabled: true}, nil
}

// Enabled reports whether frames are written.
func (d *Dumper) Enabled() bool { return d != nil && d.enabled }

// Raw writes the unprocessed capture as screenshot_<n>.bmp.
func (d *Dumper) Raw(n uint64, img image.Image) (string, error) {
	if !d.Enabled() {
		return "", nil
	}
	path := filepath.Join(d.dir, fmt.Sprintf("screenshot_%d.bmp", n))
	return path, writeFile(path, func(f *os.File) error { return bmp.Encode(f, img) })
}

// Processed writes the OCR input as processed_<n>.png.
func (d *Dumper) Processed(n uint64, img image.Image) (string, error) {
	if !d.Enabled() {
		return "", nil
	}
	path := filepath.Join(d.dir, fmt.Sprintf("processed_%d.png", n))
	return path, writeFile(path, func(f *os.File) error { return png.Encode(f, img) })
}

func writeFile(path string, encode func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
