package cococonv

// COCO object detection specific functionality.

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	outputFileLayout   = "01-02-2006-15:04:05" // Encodes the generation time in output file names.
	dateCreatedLayout  = "2006-01-02 15:04:05"
	dateCapturedLayout = "2006-01-02"
)

// ErrDuplicateImageID is returned by exports that group annotations by image id when two images
// of the document share an id. Image ids are only unique with a run-wide image id scope.
var ErrDuplicateImageID = errors.New("duplicate image id")

// Info is the COCO dataset description block.
type Info struct {
	Year        int    `json:"year"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Contributor string `json:"contributor,omitempty"`
	URL         string `json:"url"`
	DateCreated string `json:"date_created"`
}

// License is a COCO license entry.
type License struct {
	ID   int    `json:"id" toml:"id"`
	Name string `json:"name" toml:"name"`
	URL  string `json:"url" toml:"url"`
}

// Image is the COCO metadata of a single image.
type Image struct {
	License      int    `json:"license"`
	FileName     string `json:"file_name"`
	COCOURL      string `json:"coco_url"`
	Height       int    `json:"height"`
	Width        int    `json:"width"`
	DateCaptured string `json:"date_captured"`
	FlickrURL    string `json:"flickr_url"`
	ID           int    `json:"id"`
}

// Category is a COCO object category.
type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// Annotation is a single COCO object annotation.
//
// BBox is empty for unshaped labels and Segmentation is nil (and omitted) for bounding boxes.
type Annotation struct {
	ID              int             `json:"id"`
	ImageID         int             `json:"image_id"`
	CategoryID      int             `json:"category_id"`
	BBox            []float64       `json:"bbox"`
	Area            float64         `json:"area"`
	Segmentation    [][]float64     `json:"segmentation,omitempty"`
	IsCrowd         int             `json:"iscrowd"`
	Classifications json.RawMessage `json:"classifications"`
}

// Document is a COCO object detection dataset.
type Document struct {
	Info        Info         `json:"info"`
	Licenses    []License    `json:"licenses"`
	Images      []Image      `json:"images"`
	Categories  []Category   `json:"categories"`
	Annotations []Annotation `json:"annotations"`
}

// OutputFileName returns the name of the COCO file generated at t.
func OutputFileName(t time.Time) string {
	return "labels-" + t.Format(outputFileLayout) + ".json"
}

// WriteCOCO writes the document to outFile. The data is written to a temporary file in the same
// directory first and linked to outFile once complete, so outFile either holds the whole document
// or does not exist. An existing outFile is never replaced; the error then matches fs.ErrExist.
func WriteCOCO(outFile string, doc *Document, pretty bool) (err error) {
	var enc []byte
	if pretty {
		enc, err = json.MarshalIndent(doc, "", "  ")
	} else {
		enc, err = json.Marshal(doc)
	}
	if err != nil {
		return err
	}

	if err := writeFileExclusive(outFile, enc); err != nil {
		return fmt.Errorf("cannot write file %q: %w", outFile, err)
	}
	return nil
}

// LoadCOCO reads and parses the COCO document at path.
func LoadCOCO(path string) (*Document, error) {
	enc, err := readFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(enc, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse COCO input from %q: %v", path, err)
	}
	return &doc, nil
}

// checkUniqueImageIDs returns ErrDuplicateImageID if two images of doc share an id.
func checkUniqueImageIDs(doc *Document) error {
	seen := make(map[int]string, len(doc.Images))
	for _, img := range doc.Images {
		if other, ok := seen[img.ID]; ok {
			return fmt.Errorf("%w %d: %q and %q", ErrDuplicateImageID, img.ID, other, img.FileName)
		}
		seen[img.ID] = img.FileName
	}
	return nil
}

// writeFileExclusive writes data to a temporary file next to path and hard links it to path. The
// link fails if path exists.
func writeFileExclusive(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}

	return os.Link(tmp.Name(), path)
}
