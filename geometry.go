package cococonv

// Shape geometry: bounding boxes, polygon areas and COCO segmentation encoding.

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrNoPoints is returned when a shape that needs coordinates has none.
var ErrNoPoints = errors.New("shape has no coordinates")

// BBox is an axis-aligned box in COCO order: x, y of the top-left corner, width, height.
type BBox [4]float64

// Width is the box width.
func (b BBox) Width() float64 {
	return b[2]
}

// Height is the box height.
func (b BBox) Height() float64 {
	return b[3]
}

// BBoxAndArea returns the bounding box of points and the area of that box.
func BBoxAndArea(points []orb.Point) (BBox, float64, error) {
	if len(points) == 0 {
		return BBox{}, 0, ErrNoPoints
	}

	bound := orb.MultiPoint(points).Bound()
	bbox := BBox{
		bound.Min.X(),
		bound.Min.Y(),
		bound.Max.X() - bound.Min.X(),
		bound.Max.Y() - bound.Min.Y(),
	}

	return bbox, bbox.Width() * bbox.Height(), nil
}

// PolygonAreaAndRing returns the area of the polygon outlined by points and its ring.
//
// The ring keeps the source order and is not closed; the area treats it as closed. Fewer than
// three points enclose no area.
func PolygonAreaAndRing(points []orb.Point) (float64, orb.Ring) {
	ring := make(orb.Ring, len(points))
	copy(ring, points)
	if len(ring) < 3 {
		return 0, ring
	}

	closed := ring
	if !ring.Closed() {
		closed = make(orb.Ring, len(ring), len(ring)+1)
		copy(closed, ring)
		closed = append(closed, ring[0])
	}

	return math.Abs(planar.Area(closed)), ring
}

// FlattenRing encodes the ring as a COCO segmentation list [x0, y0, x1, y1, ...].
func FlattenRing(ring orb.Ring) []float64 {
	flat := make([]float64, 0, 2*len(ring))
	for _, p := range ring {
		flat = append(flat, p[0], p[1])
	}
	return flat
}
