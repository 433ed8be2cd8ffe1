// Package cue loads the instructional images shown while the operator
// prepares for each calibration action.
package cue

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/draw"

	"eeg-action-service/internal/eeg"
)

// Size is the edge length of a cue thumbnail in pixels.
const Size = 200

// Cue is the instruction for one calibration step.
type Cue struct {
	Action eeg.Action
	// Prepare is shown while waiting for the capture.
	Prepare string
	// Perform is shown while the capture runs.
	Perform string
	// Image is a Size x Size PNG, nil when the asset could not be loaded.
	Image []byte
}

// Instructions returns the text-only cue for a.
func Instructions(a eeg.Action) Cue {
	return Cue{
		Action:  a,
		Prepare: "Prepare for " + a.String(),
		Perform: "Now " + a.String(),
	}
}

// FileName returns the asset file name for a, e.g. "scroll_up.png".
func FileName(a eeg.Action) string {
	return a.Symbol() + ".png"
}

// Library loads and caches cue images from a directory.
type Library struct {
	dir string

	mu     sync.Mutex
	images map[eeg.Action][]byte
}

// NewLibrary creates a Library reading from dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir, images: make(map[eeg.Action][]byte)}
}

// Load returns the cue for a. The instruction text is always set; the error
// reports a missing or undecodable image.
func (l *Library) Load(a eeg.Action) (Cue, error) {
	c := Instructions(a)

	l.mu.Lock()
	defer l.mu.Unlock()

	if img, ok := l.images[a]; ok {
		c.Image = img
		return c, nil
	}

	path := filepath.Join(l.dir, FileName(a))
	img, err := loadThumbnail(path)
	if err != nil {
		return c, fmt.Errorf("load cue for %s: %w", a, err)
	}
	l.images[a] = img
	c.Image = img
	return c, nil
}

func loadThumbnail(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}

	dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
