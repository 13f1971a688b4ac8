package debug

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"
)

// Screenshot writes framebuffer captures as PNG files named
// <prefix>_seed<seed>_<timestamp>.png.
type Screenshot struct {
	Dir    string
	Prefix string
	now    func() time.Time
}

// NewScreenshot creates a capture handler writing into dir.
func NewScreenshot(dir, prefix string) *Screenshot {
	return &Screenshot{Dir: dir, Prefix: prefix, now: time.Now}
}

// Filename returns the path the next capture for seed would use.
func (s *Screenshot) Filename(seed int64) string {
	name := fmt.Sprintf("%s_seed%d_%s.png", s.Prefix, seed, s.now().Format("2006-01-02_15-04-05"))
	if s.Dir != "" {
		name = filepath.Join(s.Dir, name)
	}
	return name
}

// Capture saves RGBA pixels read back from OpenGL. The rows are flipped
// since GL puts the origin at the bottom left.
func (s *Screenshot) Capture(pixels []byte, width, height int, seed int64) (string, error) {
	img, err := FlipRGBA(pixels, width, height)
	if err != nil {
		return "", err
	}

	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}

	filename := s.Filename(seed)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, nil
}

// FlipRGBA copies bottom-up RGBA rows into a top-down image.
func FlipRGBA(pixels []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(pixels) != width*height*4 {
		return nil, fmt.Errorf("pixel data size mismatch: %dx%d needs %d bytes, got %d",
			width, height, width*height*4, len(pixels))
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		src := (height - 1 - y) * rowSize
		dst := y * img.Stride
		copy(img.Pix[dst:dst+rowSize], pixels[src:src+rowSize])
	}
	return img, nil
}
