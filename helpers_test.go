package cococonv

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writePNG creates a width x height PNG called name in dir.
func writePNG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y), 128, 255})
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encoding %s: %v", path, err)
	}
	return path
}

// writeRotatedJPEG creates a width x height JPEG called name in dir, tagged with EXIF orientation
// 6. Oriented, it is height x width.
func writeRotatedJPEG(t *testing.T, dir, name string, width, height int) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8(4 * x), uint8(4 * y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding %s: %v", name, err)
	}

	// Big endian TIFF header, one IFD entry: orientation (0x0112), SHORT, count 1, value 6.
	exif := []byte("Exif\x00\x00" + "MM\x00\x2a\x00\x00\x00\x08" + "\x00\x01" +
		"\x01\x12\x00\x03\x00\x00\x00\x01\x00\x06\x00\x00" + "\x00\x00\x00\x00")
	segmentLen := len(exif) + 2

	enc := buf.Bytes()
	data := make([]byte, 0, len(enc)+segmentLen+2)
	data = append(data, enc[:2]...) // SOI
	data = append(data, 0xff, 0xe1, byte(segmentLen>>8), byte(segmentLen))
	data = append(data, exif...)
	data = append(data, enc[2:]...)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// captureLog redirects the standard logger to a buffer for the rest of the test. Tests using it
// must not run in parallel.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

// writeFile writes content to name in dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// fakeImages is an ImageSource with fixed dimensions per file name.
type fakeImages map[string][2]int

func (f fakeImages) Size(fileName string) (int, int, error) {
	s, ok := f[fileName]
	if !ok {
		return 0, 0, fmt.Errorf("cannot read image %q: not found", fileName)
	}
	return s[0], s[1], nil
}

// fixedNow is the generation time used by tests.
var fixedNow = time.Date(2022, 3, 14, 15, 9, 26, 0, time.UTC)

func testOptions() Options {
	return Options{
		Info: DefaultDatasetInfo(),
		Now:  func() time.Time { return fixedNow },
	}
}

// boxRecordJSON is a single record export with one bounding box.
const boxRecordJSON = `[
  {
    "assetMetadata": {"name": "cat.png"},
    "resultData": {
      "boxes": {
        "manifest": {"entityTypes": [{"name": "cat"}]},
        "entities": [
          {
            "entityTypeName": "cat",
            "shapeType": "bounding-box",
            "coordinates": [{"x": 10, "y": 20}, {"x": 30, "y": 20}, {"x": 30, "y": 50}, {"x": 10, "y": 50}],
            "classifications": [{"name": "pose", "value": "sitting"}]
          }
        ]
      }
    }
  }
]`
