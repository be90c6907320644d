package cococonv

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestRenderPreviews(t *testing.T) {
	t.Parallel()

	imageDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "preview")
	writePNG(t, imageDir, "a.png", 40, 30)
	writePNG(t, imageDir, "b.png", 40, 30)

	doc := &Document{
		Images: []Image{
			NewImage("a.png", 1, 40, 30, 1, fixedNow),
			NewImage("b.png", 2, 40, 30, 1, fixedNow),
		},
		Annotations: []Annotation{
			{ID: 1, ImageID: 1, CategoryID: 1, BBox: []float64{5, 5, 10, 10}},
			{ID: 2, ImageID: 2, CategoryID: 2, BBox: []float64{0, 0, 20, 20},
				Segmentation: [][]float64{{0, 0, 20, 0, 0, 20}}},
			{ID: 3, ImageID: 2, CategoryID: 1, BBox: []float64{}, Segmentation: [][]float64{{}}},
		},
	}

	n, err := RenderPreviews(doc, imageDir, outDir, RenderOptions{Encoding: "png", MaxSide: 20})
	if err != nil {
		t.Fatalf("RenderPreviews: %v", err)
	}
	if n != 2 {
		t.Errorf("RenderPreviews wrote %d previews, want 2", n)
	}

	for _, name := range []string{"a.png", "b.png"} {
		f, err := os.Open(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		config, format, err := image.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("DecodeConfig(%s): %v", name, err)
		}
		if format != "png" || config.Width != 20 || config.Height != 15 {
			t.Errorf("%s = %s %dx%d, want png 20x15", name, format, config.Width, config.Height)
		}
	}
}

func TestRenderPreviews_Errors(t *testing.T) {
	t.Parallel()

	doc := &Document{Images: []Image{NewImage("missing.png", 1, 1, 1, 1, fixedNow)}}

	if _, err := RenderPreviews(doc, t.TempDir(), t.TempDir(), RenderOptions{Encoding: "gif"}); err == nil {
		t.Error("RenderPreviews succeeded for gif encoding")
	}
	if _, err := RenderPreviews(doc, t.TempDir(), t.TempDir(), RenderOptions{}); err == nil {
		t.Error("RenderPreviews succeeded without the image")
	}
}

func TestDrawAnnotations(t *testing.T) {
	t.Parallel()

	src := image.NewRGBA(image.Rect(0, 0, 30, 30))
	annotations := []Annotation{{CategoryID: 0, BBox: []float64{5, 5, 20, 20}}}

	dst := drawAnnotations(src, annotations, 2)

	if got := dst.RGBAAt(5, 15); got == (color.RGBA{}) {
		t.Error("the bounding box outline was not drawn")
	}
	if got := dst.RGBAAt(15, 15); got != (color.RGBA{}) {
		t.Errorf("the bounding box interior = %v, want untouched", got)
	}
	if src.RGBAAt(5, 15) != (color.RGBA{}) {
		t.Error("drawAnnotations modified its source image")
	}
}

func TestRenderPreviews_DuplicateImageIDs(t *testing.T) {
	t.Parallel()

	imageDir := t.TempDir()
	writePNG(t, imageDir, "a.png", 4, 4)
	writePNG(t, imageDir, "c.png", 4, 4)
	doc := &Document{Images: []Image{
		NewImage("a.png", 1, 4, 4, 1, fixedNow),
		NewImage("c.png", 1, 4, 4, 1, fixedNow),
	}}

	outDir := t.TempDir()
	n, err := RenderPreviews(doc, imageDir, outDir, RenderOptions{Encoding: "png"})
	if !errors.Is(err, ErrDuplicateImageID) {
		t.Errorf("err = %v, want ErrDuplicateImageID", err)
	}
	if n != 0 {
		t.Errorf("RenderPreviews wrote %d previews, want 0", n)
	}
}

func TestRenderPreviews_AutoOrient(t *testing.T) {
	t.Parallel()

	imageDir := t.TempDir()
	writeRotatedJPEG(t, imageDir, "rotated.jpg", 40, 10)

	tests := []struct {
		autoOrient bool
		wantWidth  int
		wantHeight int
	}{
		{false, 40, 10},
		{true, 10, 40},
	}
	for _, tt := range tests {
		doc := &Document{Images: []Image{
			NewImage("rotated.jpg", 1, tt.wantWidth, tt.wantHeight, 1, fixedNow),
		}}
		outDir := t.TempDir()
		opts := RenderOptions{Encoding: "png", AutoOrient: tt.autoOrient}
		if _, err := RenderPreviews(doc, imageDir, outDir, opts); err != nil {
			t.Fatalf("AutoOrient=%v: RenderPreviews: %v", tt.autoOrient, err)
		}

		f, err := os.Open(filepath.Join(outDir, "rotated.png"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		config, _, err := image.DecodeConfig(f)
		f.Close()
		if err != nil {
			t.Fatalf("DecodeConfig: %v", err)
		}
		if config.Width != tt.wantWidth || config.Height != tt.wantHeight {
			t.Errorf("AutoOrient=%v: preview = %dx%d, want %dx%d", tt.autoOrient, config.Width,
				config.Height, tt.wantWidth, tt.wantHeight)
		}
	}
}
