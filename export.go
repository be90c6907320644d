package cococonv

// Source export specific functionality.

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/paulmach/orb"
)

// ErrMalformedInput is returned when a source export lacks a required key.
var ErrMalformedInput = errors.New("malformed input")

// ExportPoint is a single coordinate of an exported shape.
type ExportPoint struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// ExportEntity is a single annotation within an exported record.
type ExportEntity struct {
	Classifications json.RawMessage `json:"classifications"`
	Coordinates     []ExportPoint   `json:"coordinates"`
	EntityTypeName  *string         `json:"entityTypeName"`
	ShapeType       *string         `json:"shapeType"`
}

// ExportEntityType is a category declared in the manifest of a record.
type ExportEntityType struct {
	Name *string `json:"name"`
}

// ExportBoxes holds the manifest and the annotations of a record.
type ExportBoxes struct {
	Entities []ExportEntity `json:"entities"`
	Manifest *struct {
		EntityTypes []ExportEntityType `json:"entityTypes"`
	} `json:"manifest"`
}

// ExportRecord defines the export structure for a single image.
type ExportRecord struct {
	AssetMetadata *struct {
		Name *string `json:"name"`
	} `json:"assetMetadata"`
	ResultData *struct {
		Boxes *ExportBoxes `json:"boxes"`
	} `json:"resultData"`
}

// FromExport reads and parses the records of the export file at path.
func FromExport(path string) (Export, error) {
	enc, err := readFile(path)
	if err != nil {
		return Export{}, err
	}

	var exportData []ExportRecord
	if err := json.Unmarshal(enc, &exportData); err != nil {
		return Export{}, fmt.Errorf("failed to parse export input from %q: %v", path, err)
	}

	// Convert to the intermediate representation.
	records := make([]Record, 0, len(exportData))
	for i, r := range exportData {
		record, err := r.toRecord()
		if err != nil {
			return Export{}, fmt.Errorf("%q record %d: %w", path, i, err)
		}
		records = append(records, record)
	}

	return Export{Path: path, Records: records}, nil
}

// LoadExports reads all export files with the extension .json found directly in dirPath, ordered
// by file name.
func LoadExports(dirPath string) ([]Export, error) {
	files, err := filesByExtInDir(dirPath, ".json")
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	log.Printf("Parsing exports in %d files", len(files))

	exports := make([]Export, 0, len(files))
	for _, path := range files {
		log.Printf("Parsing %s", path)
		e, err := FromExport(path)
		if err != nil {
			return nil, err
		}
		exports = append(exports, e)
	}

	return exports, nil
}

// toRecord validates the presence of all required keys and converts r.
func (r ExportRecord) toRecord() (Record, error) {
	if r.AssetMetadata == nil || r.AssetMetadata.Name == nil {
		return Record{}, missingKey("assetMetadata.name")
	}
	if r.ResultData == nil || r.ResultData.Boxes == nil {
		return Record{}, missingKey("resultData.boxes")
	}
	boxes := r.ResultData.Boxes
	if boxes.Manifest == nil || boxes.Manifest.EntityTypes == nil {
		return Record{}, missingKey("resultData.boxes.manifest.entityTypes")
	}
	if boxes.Entities == nil {
		return Record{}, missingKey("resultData.boxes.entities")
	}

	record := Record{
		Annotations: make([]RawAnnotation, 0, len(boxes.Entities)),
		EntityTypes: make([]string, 0, len(boxes.Manifest.EntityTypes)),
		ImageName:   *r.AssetMetadata.Name,
	}
	for i, t := range boxes.Manifest.EntityTypes {
		if t.Name == nil {
			return Record{}, missingKey(fmt.Sprintf("manifest entity type %d name", i))
		}
		record.EntityTypes = append(record.EntityTypes, *t.Name)
	}
	for i, e := range boxes.Entities {
		a, err := e.toAnnotation()
		if err != nil {
			return Record{}, fmt.Errorf("annotation %d: %w", i, err)
		}
		record.Annotations = append(record.Annotations, a)
	}

	return record, nil
}

// toAnnotation converts e. Coordinates are required for the shape kinds that have geometry.
func (e ExportEntity) toAnnotation() (RawAnnotation, error) {
	if e.EntityTypeName == nil {
		return RawAnnotation{}, missingKey("entityTypeName")
	}
	if e.ShapeType == nil {
		return RawAnnotation{}, missingKey("shapeType")
	}

	a := RawAnnotation{
		Category:        *e.EntityTypeName,
		Shape:           ParseShapeKind(*e.ShapeType),
		ShapeName:       *e.ShapeType,
		Classifications: e.Classifications,
	}
	if len(a.Classifications) == 0 {
		a.Classifications = json.RawMessage("null")
	}

	if (a.Shape == ShapeBoundingBox || a.Shape == ShapePolygon) && e.Coordinates == nil {
		return RawAnnotation{}, missingKey("coordinates")
	}
	if len(e.Coordinates) > 0 {
		a.Points = make([]orb.Point, len(e.Coordinates))
	}
	for i, c := range e.Coordinates {
		if c.X == nil || c.Y == nil {
			return RawAnnotation{}, fmt.Errorf("%w: coordinate %d needs both x and y",
				ErrMalformedInput, i)
		}
		a.Points[i] = orb.Point{*c.X, *c.Y}
	}

	return a, nil
}

func missingKey(key string) error {
	return fmt.Errorf("%w: missing key %q", ErrMalformedInput, key)
}
