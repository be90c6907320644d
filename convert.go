package cococonv

// Assembly of COCO documents from source exports.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrUnknownShape is returned for annotations whose shape kind has no conversion.
	ErrUnknownShape = errors.New("unknown shape kind")
	// ErrUnknownCategory is returned for annotations whose category is not in the record manifest.
	ErrUnknownCategory = errors.New("category not in manifest")
	// ErrTFRecordScope is returned by Run when a TFRecord export is requested without run-wide
	// category and image ids.
	ErrTFRecordScope = errors.New("TFRecord export needs the run category and image id scopes")
)

// UnknownShapePolicy selects how annotations with an unknown shape kind are handled.
type UnknownShapePolicy int

// The unknown shape policies.
const (
	FailOnUnknownShape UnknownShapePolicy = iota // Abort the conversion.
	SkipUnknownShape                             // Log a warning and leave the annotation out.
)

// ParseUnknownShapePolicy parses "fail" or "skip".
func ParseUnknownShapePolicy(s string) (UnknownShapePolicy, error) {
	switch s {
	case "", "fail":
		return FailOnUnknownShape, nil
	case "skip":
		return SkipUnknownShape, nil
	}
	return FailOnUnknownShape, fmt.Errorf("unknown shape policy %q", s)
}

// Scope is the range over which ids are unique.
type Scope int

// The id scopes.
const (
	ScopeFile Scope = iota // Ids restart for every source file.
	ScopeRun               // Ids are unique across all source files of a run.
)

// ParseScope parses "file" or "run".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "file":
		return ScopeFile, nil
	case "run":
		return ScopeRun, nil
	}
	return ScopeFile, fmt.Errorf("unknown scope %q", s)
}

// Sequence hands out consecutive ids starting at 1.
type Sequence struct {
	next int
}

// NewSequence returns a sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{next: 1}
}

// Next returns the next id and advances the sequence.
func (s *Sequence) Next() int {
	id := s.next
	s.next++
	return id
}

// Reset restarts the sequence at 1.
func (s *Sequence) Reset() {
	s.next = 1
}

// Options configure a Converter.
type Options struct {
	UnknownShapes UnknownShapePolicy
	// CategoryScope ScopeFile rebuilds the categories from every record manifest and the document
	// lists the categories of the last record. ScopeRun merges all manifests by name.
	CategoryScope Scope
	// ImageIDScope ScopeFile restarts image ids for every export. Annotation ids are always unique
	// across the run.
	ImageIDScope Scope
	Info         DatasetInfo
	Now          func() time.Time // Defaults to time.Now.
	Verbose      bool
}

// Converter accumulates the COCO document for a sequence of exports.
type Converter struct {
	opts   Options
	images ImageSource

	imageIDs      *Sequence
	annotationIDs *Sequence
	categories    *CategoryIndex

	docImages      []Image
	docAnnotations []Annotation
}

// NewConverter returns a Converter that reads image dimensions from images.
func NewConverter(opts Options, images ImageSource) *Converter {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Info.Version == "" && opts.Info.Description == "" && len(opts.Info.Licenses) == 0 {
		opts.Info = DefaultDatasetInfo()
	}
	return &Converter{
		opts:           opts,
		images:         images,
		imageIDs:       NewSequence(),
		annotationIDs:  NewSequence(),
		categories:     NewCategoryIndex(),
		docImages:      make([]Image, 0),
		docAnnotations: make([]Annotation, 0),
	}
}

// AddExport converts the records of e and adds them to the document.
func (c *Converter) AddExport(e Export) error {
	if c.opts.ImageIDScope == ScopeFile {
		c.imageIDs.Reset()
	}

	for ri, r := range e.Records {
		if err := c.addRecord(e.Path, ri, r); err != nil {
			return fmt.Errorf("%q record %d: %w", e.Path, ri, err)
		}
	}

	return nil
}

// addRecord adds the image and the annotations of record r, the ri-th record of the export at
// path.
func (c *Converter) addRecord(path string, ri int, r Record) error {
	var categories *CategoryIndex
	if c.opts.CategoryScope == ScopeRun {
		c.categories.Add(r.EntityTypes...)
		categories = c.categories
	} else {
		categories = CategoriesFromManifest(r.EntityTypes)
		c.categories = categories
	}

	width, height, err := c.images.Size(r.ImageName)
	if err != nil {
		return err
	}
	imageID := c.imageIDs.Next()
	c.docImages = append(c.docImages,
		NewImage(r.ImageName, imageID, width, height, c.opts.Info.LicenseID(), c.opts.Now()))

	converted := 0
	for ai, a := range r.Annotations {
		annotation, err := c.annotation(a, categories, imageID)
		if errors.Is(err, ErrUnknownShape) && c.opts.UnknownShapes == SkipUnknownShape {
			log.Printf("Skipping %q record %d annotation %d: %v", path, ri, ai, err)
			continue
		} else if err != nil {
			return fmt.Errorf("annotation %d: %w", ai, err)
		}

		annotation.ID = c.annotationIDs.Next()
		c.docAnnotations = append(c.docAnnotations, annotation)
		converted++
	}

	if c.opts.Verbose {
		log.Printf("Converted %s (image %d) with %d annotations", r.ImageName, imageID, converted)
	}
	return nil
}

// annotation converts a for the image imageID. The id is left for the caller to assign.
func (c *Converter) annotation(a RawAnnotation, categories *CategoryIndex, imageID int) (
	Annotation, error) {

	category, ok := categories.Lookup(a.Category)
	if !ok {
		return Annotation{}, fmt.Errorf("%w: %q", ErrUnknownCategory, a.Category)
	}

	annotation := Annotation{
		ImageID:         imageID,
		CategoryID:      category.ID,
		Classifications: a.Classifications,
	}
	if len(annotation.Classifications) == 0 {
		annotation.Classifications = json.RawMessage("null")
	}

	switch a.Shape {
	case ShapeBoundingBox:
		bbox, area, err := BBoxAndArea(a.Points)
		if err != nil {
			return Annotation{}, err
		}
		annotation.BBox = bbox[:]
		annotation.Area = area

	case ShapePolygon:
		bbox, _, err := BBoxAndArea(a.Points)
		if err != nil {
			return Annotation{}, err
		}
		area, ring := PolygonAreaAndRing(a.Points)
		annotation.BBox = bbox[:]
		annotation.Area = area
		annotation.Segmentation = [][]float64{FlattenRing(ring)}

	case ShapeNone:
		annotation.BBox = []float64{}
		annotation.Segmentation = [][]float64{{}}

	default:
		return Annotation{}, fmt.Errorf("%w %q", ErrUnknownShape, a.ShapeName)
	}

	return annotation, nil
}

// Document returns the COCO document for all exports added so far.
func (c *Converter) Document() *Document {
	return &Document{
		Info:        c.opts.Info.Info(c.opts.Now()),
		Licenses:    c.opts.Info.licenseList(),
		Images:      c.docImages,
		Categories:  c.categories.List(),
		Annotations: c.docAnnotations,
	}
}

// Convert converts the exports, in order, to a single COCO document.
func Convert(exports []Export, opts Options, images ImageSource) (*Document, error) {
	c := NewConverter(opts, images)
	for _, e := range exports {
		if err := c.AddExport(e); err != nil {
			return nil, err
		}
	}
	return c.Document(), nil
}

// RunOptions configure a complete conversion run.
type RunOptions struct {
	Options

	InputDir      string   // Scanned for .json exports.
	OutputDir     string   // Receives the COCO file; created if missing.
	ImageDir      string   // Image file names are relative to this directory.
	AutoOrient    bool     // See DirImageSource.
	Pretty        bool     // Indent the COCO JSON.
	MapCategories []string // old=new category name replacements.

	TFRecordPath     string // Also write a TFRecord dataset here, unless empty.
	TFRecordLabelMap string // The label map path for the TFRecord dataset.
	TFRecordShards   int
}

// Run converts all exports in opts.InputDir and writes the COCO document to opts.OutputDir.
// Nothing is written to opts.OutputDir unless every step, including the optional TFRecord export,
// succeeds. An existing output file is never replaced.
//
// Returns the path of the written document.
func Run(opts RunOptions) (string, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	now := opts.Now()
	opts.Now = func() time.Time { return now }

	if opts.TFRecordPath != "" && (opts.CategoryScope != ScopeRun || opts.ImageIDScope != ScopeRun) {
		return "", ErrTFRecordScope
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("cannot create output directory %q: %v", opts.OutputDir, err)
	}

	exports, err := LoadExports(opts.InputDir)
	if err != nil {
		return "", err
	}

	for _, e := range exports {
		if err := Records(e.Records).MapCategories(opts.MapCategories); err != nil {
			return "", err
		}
	}

	images := DirImageSource{Dir: opts.ImageDir, AutoOrient: opts.AutoOrient}
	doc, err := Convert(exports, opts.Options, images)
	if err != nil {
		return "", err
	}

	outPath := filepath.Join(opts.OutputDir, OutputFileName(now))
	if _, err := os.Stat(outPath); err == nil {
		return "", fmt.Errorf("output file %q already exists", outPath)
	}

	if opts.TFRecordPath != "" {
		labelMap := opts.TFRecordLabelMap
		if labelMap == "" {
			labelMap = filepath.Join(opts.OutputDir, "label_map.pbtxt")
		}
		err := WriteTFRecord(opts.TFRecordPath, labelMap, doc, opts.ImageDir, opts.TFRecordShards,
			opts.AutoOrient)
		if err != nil {
			return "", fmt.Errorf("TFRecord export failed: %w", err)
		}
		log.Printf("Successfully wrote TFRecords for %d images to %s", len(doc.Images),
			opts.TFRecordPath)
	}

	if err := WriteCOCO(outPath, doc, opts.Pretty); err != nil {
		return "", err
	}
	log.Printf("COCO export successful. Filename: %s", filepath.Base(outPath))
	log.Printf("Converted %d images, %d categories, %d annotations", len(doc.Images),
		len(doc.Categories), len(doc.Annotations))

	return outPath, nil
}
