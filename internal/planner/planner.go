// Package planner partitions a layer's area of interest into fetchable chunks.
package planner

import (
	"encoding/json"
	"fmt"
)

// Envelope is a bounding rectangle in WGS84 lon/lat.
type Envelope struct {
	XMin, YMin, XMax, YMax float64
}

// String renders the envelope in the xmin,ymin,xmax,ymax wire format.
func (e Envelope) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", e.XMin, e.YMin, e.XMax, e.YMax)
}

func (e Envelope) Valid() bool {
	return e.XMax > e.XMin && e.YMax > e.YMin
}

// MarshalJSON renders the envelope as the catalog's [xmin,ymin,xmax,ymax] form.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{e.XMin, e.YMin, e.XMax, e.YMax})
}

func (e *Envelope) UnmarshalJSON(b []byte) error {
	var a [4]float64
	if err := json.Unmarshal(b, &a); err != nil {
		return fmt.Errorf("bbox must be [xmin,ymin,xmax,ymax]: %w", err)
	}
	e.XMin, e.YMin, e.XMax, e.YMax = a[0], a[1], a[2], a[3]
	return nil
}

// Chunk is one spatial sub-query of a layer's area of interest.
type Chunk struct {
	Layer string
	Index int
	Env   Envelope
}

// Plan is the fetch schedule for one layer: either a spatial chunk grid or an
// offset pagination plan when the layer has no area of interest.
type Plan struct {
	Layer    string
	Chunks   []Chunk
	PageSize int
}

// Paged reports whether the plan uses offset pagination instead of chunking.
func (p Plan) Paged() bool { return len(p.Chunks) == 0 }

// Grid splits env into divs x divs cells. Cell boundaries are computed from
// (max-min)/divs so the cells tile env exactly: adjacent cells share edges and
// the outer cells snap to the envelope bounds, keeping the grid deterministic
// across runs.
func Grid(env Envelope, divs int) []Envelope {
	if divs < 1 {
		divs = 1
	}
	stepX := (env.XMax - env.XMin) / float64(divs)
	stepY := (env.YMax - env.YMin) / float64(divs)

	cells := make([]Envelope, 0, divs*divs)
	for i := 0; i < divs; i++ {
		x0 := env.XMin + stepX*float64(i)
		x1 := env.XMin + stepX*float64(i+1)
		if i == divs-1 {
			x1 = env.XMax
		}
		for j := 0; j < divs; j++ {
			y0 := env.YMin + stepY*float64(j)
			y1 := env.YMin + stepY*float64(j+1)
			if j == divs-1 {
				y1 = env.YMax
			}
			cells = append(cells, Envelope{XMin: x0, YMin: y0, XMax: x1, YMax: y1})
		}
	}
	return cells
}

// New builds the fetch plan for a layer. A nil or degenerate bbox falls back
// to offset pagination.
func New(layer string, bbox *Envelope, divs, pageSize int) Plan {
	if bbox == nil || !bbox.Valid() {
		if pageSize < 1 {
			pageSize = 1000
		}
		return Plan{Layer: layer, PageSize: pageSize}
	}
	cells := Grid(*bbox, divs)
	chunks := make([]Chunk, len(cells))
	for i, c := range cells {
		chunks[i] = Chunk{Layer: layer, Index: i, Env: c}
	}
	return Plan{Layer: layer, Chunks: chunks}
}
