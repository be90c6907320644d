package cococonv

// The intermediate annotation metadata representation, decoded from the source exports.

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/paulmach/orb"
)

// ShapeKind is the geometry type of a source annotation.
type ShapeKind int

// The known shape kinds.
const (
	ShapeUnknown     ShapeKind = iota // Any shapeType value without a defined conversion.
	ShapeBoundingBox                  // "bounding-box"
	ShapePolygon                      // "polygon"
	ShapeNone                         // "none", a label without geometry.
)

// ParseShapeKind maps a source shapeType value to its ShapeKind.
func ParseShapeKind(s string) ShapeKind {
	switch s {
	case "bounding-box":
		return ShapeBoundingBox
	case "polygon":
		return ShapePolygon
	case "none":
		return ShapeNone
	}
	return ShapeUnknown
}

// String returns the source name of the shape kind.
func (k ShapeKind) String() string {
	switch k {
	case ShapeBoundingBox:
		return "bounding-box"
	case ShapePolygon:
		return "polygon"
	case ShapeNone:
		return "none"
	}
	return "unknown"
}

// RawAnnotation is a single labelled shape of a record.
type RawAnnotation struct {
	Category        string          // The entity type name.
	Shape           ShapeKind       // The parsed shape kind.
	ShapeName       string          // The shapeType value as found in the source.
	Points          []orb.Point     // The shape coordinates; empty for ShapeNone.
	Classifications json.RawMessage // Opaque payload, copied to the output verbatim.
}

// Record is the annotation data for a single image.
type Record struct {
	Annotations []RawAnnotation // The annotations, in source order.
	EntityTypes []string        // The category manifest, in source order.
	ImageName   string          // The image file name, relative to the image directory.
}

// Export is the list of records read from one source file.
type Export struct {
	Path    string
	Records []Record
}

// Records is the record list of one or more source files.
type Records []Record

// MapCategories replaces category name (sub-)strings with substitution values, as specified in
// mappings. Both the manifests and the annotation category names are rewritten, so that lookups
// keep matching.
//
// The format of mappings is old=new.
func (data Records) MapCategories(mappings []string) error {
	if len(mappings) == 0 {
		return nil
	}

	replacements := make([]struct{ old, new string }, len(mappings))
	for i, v := range mappings {
		a := strings.Split(v, "=")
		if len(a) != 2 || a[0] == "" {
			return fmt.Errorf("invalid mapping: %v", v)
		}

		replacements[i].old = a[0]
		replacements[i].new = a[1]
	}

	mapName := func(name string) string {
		for _, r := range replacements {
			name = strings.Replace(name, r.old, r.new, -1)
		}
		return name
	}

	count := 0
	for i := range data {
		r := &data[i]
		for j, name := range r.EntityTypes {
			r.EntityTypes[j] = mapName(name)
		}
		for j := range r.Annotations {
			a := &r.Annotations[j]
			oldName := a.Category
			a.Category = mapName(a.Category)
			if a.Category != oldName {
				count++
			}
		}
	}

	log.Printf("The category mappings changed %d annotations", count)
	return nil
}
