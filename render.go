package cococonv

// Preview rendering of COCO annotations over their images.

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"strings"

	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/llgcode/draw2d/draw2dkit"
)

// RenderOptions configure RenderPreviews.
type RenderOptions struct {
	Encoding    string  // "jpg" or "png".
	JPEGQuality int     // The quality for JPEG outputs.
	LineWidth   float64 // The outline width in source image pixels; defaults to 2.
	MaxSide     int     // Downsample previews to at most this many pixels per side; zero keeps the size.
	// Apply the EXIF orientation before drawing. Must match the setting the document was converted
	// with, or the shapes are drawn on a rotated picture.
	AutoOrient bool
}

// The colours cycled through by category id.
var previewPalette = []color.RGBA{
	{230, 25, 75, 255},
	{60, 180, 75, 255},
	{255, 225, 25, 255},
	{0, 130, 200, 255},
	{245, 130, 48, 255},
	{145, 30, 180, 255},
	{70, 240, 240, 255},
	{240, 50, 230, 255},
}

// categoryColor returns the outline colour of category id.
func categoryColor(id int) color.RGBA {
	if id < 0 {
		id = -id
	}
	return previewPalette[id%len(previewPalette)]
}

// RenderPreviews draws the annotations of doc over their images, read from imageDir, and saves the
// results to outDir with the image base name and the extension of opts.Encoding.
//
// Returns the number of images written. Documents with duplicate image ids are rejected, as their
// annotations cannot be told apart.
func RenderPreviews(doc *Document, imageDir, outDir string, opts RenderOptions) (int, error) {
	if err := checkUniqueImageIDs(doc); err != nil {
		return 0, err
	}

	var fileExt string
	switch strings.ToLower(opts.Encoding) {
	case "", "jpg", "jpeg":
		fileExt = ".jpg"
	case "png":
		fileExt = ".png"
	default:
		return 0, fmt.Errorf("unsupported output encoding %q", opts.Encoding)
	}
	if opts.JPEGQuality < 1 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = 2
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return 0, fmt.Errorf("cannot create preview directory %q: %v", outDir, err)
	}

	byImage := make(map[int][]Annotation, len(doc.Images))
	for _, a := range doc.Annotations {
		byImage[a.ImageID] = append(byImage[a.ImageID], a)
	}

	count := 0
	for _, img := range doc.Images {
		inPath := filepath.Join(imageDir, img.FileName)
		src, err := openImage(inPath, opts.AutoOrient)
		if err != nil {
			return count, fmt.Errorf("cannot read image %q: %v", inPath, err)
		}

		preview := drawAnnotations(src, byImage[img.ID], opts.LineWidth)

		_, baseNoExt, _, err := splitPath(img.FileName)
		if err != nil {
			baseNoExt = filepath.Base(img.FileName)
		}
		outPath := filepath.Join(outDir, baseNoExt+fileExt)
		if err := saveImage(outPath, fitImage(preview, opts.MaxSide), opts.JPEGQuality); err != nil {
			return count, fmt.Errorf("cannot write preview %q: %v", outPath, err)
		}
		count++
	}

	return count, nil
}

// drawAnnotations returns a copy of src with the annotation shapes drawn on top. Polygons are
// filled translucently and outlined, bounding boxes are outlined.
func drawAnnotations(src image.Image, annotations []Annotation, lineWidth float64) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	gc := draw2dimg.NewGraphicContext(dst)
	gc.SetLineWidth(lineWidth)

	for _, a := range annotations {
		c := categoryColor(a.CategoryID)
		gc.SetStrokeColor(c)

		for _, seg := range a.Segmentation {
			if len(seg) < 6 {
				continue
			}
			gc.SetFillColor(color.RGBA{c.R / 3, c.G / 3, c.B / 3, 85}) // Premultiplied alpha.
			gc.MoveTo(seg[0], seg[1])
			for i := 2; i+1 < len(seg); i += 2 {
				gc.LineTo(seg[i], seg[i+1])
			}
			gc.Close()
			gc.FillStroke()
		}

		if len(a.BBox) == 4 {
			draw2dkit.Rectangle(gc, a.BBox[0], a.BBox[1], a.BBox[0]+a.BBox[2], a.BBox[1]+a.BBox[3])
			gc.Stroke()
		}
	}

	return dst
}
