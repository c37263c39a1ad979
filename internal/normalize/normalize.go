// Package normalize reconstructs canonical geometries from the native wire
// encoding and reprojects them to WGS84 lon/lat.
package normalize

import (
	"log/slog"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/mikeaa1983/mineralink-tiles/internal/arcgis"
)

// Reason classifies why a feature was dropped. Drops are counted, never
// silently swallowed.
type Reason string

const (
	// ReasonUnrecognized means the native geometry matched none of the
	// supported encodings.
	ReasonUnrecognized Reason = "unrecognized_geometry"
	// ReasonTransform means the source coordinates were outside the
	// transform's domain (non-finite input).
	ReasonTransform Reason = "transform_failed"
	// ReasonOutOfRange means the result stayed outside valid lon/lat even
	// after the axis-swap attempt.
	ReasonOutOfRange Reason = "out_of_range"
)

// Stats is the per-layer outcome of normalization.
type Stats struct {
	Kept        int
	AxisSwapped int
	Dropped     map[Reason]int
}

func (s Stats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Normalizer converts raw features using one fixed forward transform,
// resolved once for the whole layer.
type Normalizer struct {
	transform orb.Projection
	log       *slog.Logger
}

func New(transform orb.Projection, log *slog.Logger) *Normalizer {
	return &Normalizer{transform: transform, log: log}
}

// Features normalizes the batch, dropping features whose geometry cannot be
// reconstructed or reprojected. Attribute maps pass through untouched.
func (n *Normalizer) Features(raw []arcgis.RawFeature) ([]*geojson.Feature, Stats) {
	stats := Stats{Dropped: make(map[Reason]int)}
	out := make([]*geojson.Feature, 0, len(raw))

	for _, rf := range raw {
		geom, reason, swapped := n.one(rf.Geometry)
		if geom == nil {
			stats.Dropped[reason]++
			continue
		}
		if swapped {
			stats.AxisSwapped++
		}
		f := geojson.NewFeature(geom)
		if rf.Attributes != nil {
			f.Properties = geojson.Properties(rf.Attributes)
		}
		out = append(out, f)
		stats.Kept++
	}

	if stats.AxisSwapped > 0 {
		n.log.Warn("axis-swapped coordinates on out-of-range features; source crs may be wrong",
			"swapped", stats.AxisSwapped)
	}
	return out, stats
}

func (n *Normalizer) one(g *arcgis.Geometry) (orb.Geometry, Reason, bool) {
	geom, ok := decode(g)
	if !ok {
		return nil, ReasonUnrecognized, false
	}
	if !finite(geom) {
		return nil, ReasonTransform, false
	}

	geom = project.Geometry(geom, n.transform)
	if !finite(geom) {
		return nil, ReasonTransform, false
	}
	if inRange(geom) {
		return geom, "", false
	}

	// One axis-swap attempt: some servers hand back lat/lon pairs.
	swapped := project.Geometry(geom, func(p orb.Point) orb.Point {
		return orb.Point{p[1], p[0]}
	})
	if inRange(swapped) {
		return swapped, "", true
	}
	return nil, ReasonOutOfRange, false
}

// decode dispatches on the native encoding: x/y is a point, the first path
// of a polyline is a line string, the first ring of a polygon is its outer
// ring (holes and extra parts are discarded).
func decode(g *arcgis.Geometry) (orb.Geometry, bool) {
	if g == nil {
		return nil, false
	}
	switch {
	case g.X != nil && g.Y != nil:
		return orb.Point{*g.X, *g.Y}, true
	case len(g.Paths) > 0:
		ls := lineFrom(g.Paths[0])
		if len(ls) < 2 {
			return nil, false
		}
		return ls, true
	case len(g.Rings) > 0:
		ring := orb.Ring(lineFrom(g.Rings[0]))
		if len(ring) < 3 {
			return nil, false
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}
		return orb.Polygon{ring}, true
	}
	return nil, false
}

func lineFrom(coords [][]float64) orb.LineString {
	ls := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		ls = append(ls, orb.Point{c[0], c[1]})
	}
	return ls
}

func eachPoint(g orb.Geometry, fn func(orb.Point) bool) bool {
	switch t := g.(type) {
	case orb.Point:
		return fn(t)
	case orb.LineString:
		for _, p := range t {
			if !fn(p) {
				return false
			}
		}
	case orb.Polygon:
		for _, ring := range t {
			for _, p := range ring {
				if !fn(p) {
					return false
				}
			}
		}
	}
	return true
}

func finite(g orb.Geometry) bool {
	return eachPoint(g, func(p orb.Point) bool {
		return !math.IsNaN(p[0]) && !math.IsInf(p[0], 0) &&
			!math.IsNaN(p[1]) && !math.IsInf(p[1], 0)
	})
}

func inRange(g orb.Geometry) bool {
	return eachPoint(g, func(p orb.Point) bool {
		return p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
	})
}
