package cue

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"eeg-action-service/internal/eeg"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestLibrary_LoadResizes(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "left_click.png"), 640, 480)

	lib := NewLibrary(dir)
	c, err := lib.Load(eeg.LeftClick)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Prepare != "Prepare for Left Click" || c.Perform != "Now Left Click" {
		t.Errorf("unexpected instructions: %q / %q", c.Prepare, c.Perform)
	}

	img, err := png.Decode(bytes.NewReader(c.Image))
	if err != nil {
		t.Fatalf("cue image is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != Size || b.Dy() != Size {
		t.Errorf("expected %dx%d thumbnail, got %dx%d", Size, Size, b.Dx(), b.Dy())
	}
}

func TestLibrary_Caches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scroll_up.png")
	writePNG(t, path, 50, 50)

	lib := NewLibrary(dir)
	first, err := lib.Load(eeg.ScrollUp)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	os.Remove(path)
	second, err := lib.Load(eeg.ScrollUp)
	if err != nil {
		t.Fatalf("expected cached cue, got %v", err)
	}
	if !bytes.Equal(first.Image, second.Image) {
		t.Error("expected identical cached image")
	}
}

func TestLibrary_MissingAsset(t *testing.T) {
	lib := NewLibrary(t.TempDir())

	c, err := lib.Load(eeg.ScrollDown)
	if err == nil {
		t.Fatal("expected error for missing asset")
	}
	if c.Prepare != "Prepare for Scroll Down" {
		t.Errorf("instructions should survive a missing image, got %q", c.Prepare)
	}
	if c.Image != nil {
		t.Error("expected no image")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(eeg.RightClick); got != "right_click.png" {
		t.Errorf("expected right_click.png, got %s", got)
	}
}
