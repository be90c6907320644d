package cococonv

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register the decoders for DecodeConfig.
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// ImageSource resolves image file names to the pixel dimensions of the image.
type ImageSource interface {
	Size(fileName string) (width, height int, err error)
}

// DirImageSource reads images from a directory.
type DirImageSource struct {
	Dir string // The directory that image file names are relative to.
	// Decode the whole image and apply its EXIF orientation before measuring it. Otherwise only the
	// header is read.
	AutoOrient bool
}

// Size returns the width and height of the image fileName.
func (s DirImageSource) Size(fileName string) (width, height int, err error) {
	path := filepath.Join(s.Dir, fileName)

	if s.AutoOrient {
		img, err := openImage(path, true)
		if err != nil {
			return 0, 0, fmt.Errorf("cannot read image %q: %v", path, err)
		}
		b := img.Bounds()
		return b.Dx(), b.Dy(), nil
	}

	config, _, err := decodeImageConfig(path)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot read image %q: %v", path, err)
	}
	return config.Width, config.Height, nil
}

// NewImage returns the COCO image metadata for an image captured at the given time.
func NewImage(fileName string, id, width, height, licenseID int, captured time.Time) Image {
	return Image{
		License:      licenseID,
		FileName:     fileName,
		Height:       height,
		Width:        width,
		DateCaptured: captured.Format(dateCapturedLayout),
		ID:           id,
	}
}

// decodeImageConfig opens the file at path and returns the results of image.DecodeConfig.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}

// openImage reads and decodes the image at path. With autoOrient the EXIF orientation is applied,
// matching the dimensions reported by DirImageSource.
func openImage(path string, autoOrient bool) (image.Image, error) {
	return imaging.Open(path, imaging.AutoOrientation(autoOrient))
}

// encodeOrientedImage decodes the image at path, applies its EXIF orientation and encodes the
// result again in format ("jpeg", "png", ...). Returns the encoded data and its dimensions.
func encodeOrientedImage(path, format string) (data []byte, width, height int, err error) {
	img, err := openImage(path, true)
	if err != nil {
		return nil, 0, 0, err
	}
	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("cannot encode %q: %v", path, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, imaging.JPEGQuality(95)); err != nil {
		return nil, 0, 0, fmt.Errorf("cannot encode %q: %v", path, err)
	}
	b := img.Bounds()
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

// saveImage saves the image to path, encoding it as PNG or JPG, depending on the file extension of
// path.
func saveImage(path string, img image.Image, jpegQuality int) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg":
	default:
		return fmt.Errorf("unsupported image extension in %q", path)
	}
	return imaging.Save(img, path, imaging.JPEGQuality(jpegQuality))
}

// fitImage downsamples img so that neither side exceeds maxSide. Smaller images and a maxSide of
// zero leave img unchanged.
func fitImage(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	if maxSide <= 0 || (b.Dx() <= maxSide && b.Dy() <= maxSide) {
		return img
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Box)
}
