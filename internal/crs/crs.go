// Package crs resolves the coordinate system a layer's raw coordinates are
// expressed in and supplies the forward transform to WGS84.
package crs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/mikeaa1983/mineralink-tiles/internal/arcgis"
	"github.com/mikeaa1983/mineralink-tiles/internal/catalog"
)

// Default is assumed when neither the catalog nor the metadata probe yields
// a coordinate system.
const Default = "EPSG:4326"

const WebMercator = "EPSG:3857"

type Resolver struct {
	client *arcgis.Client
	log    *slog.Logger
}

func NewResolver(client *arcgis.Client, log *slog.Logger) *Resolver {
	return &Resolver{client: client, log: log}
}

// Resolve establishes the layer's source CRS. Priority: the descriptor's
// declared CRS, then a metadata probe of the endpoint, then Default. It never
// fails; probe errors are logged and absorbed.
func (r *Resolver) Resolve(ctx context.Context, layer catalog.LayerDescriptor) string {
	if declared := strings.TrimSpace(layer.SourceCRS); declared != "" {
		return Normalize(declared)
	}

	md, err := r.client.LayerMetadata(ctx, layer.QueryURL)
	if err != nil {
		r.log.WarnContext(ctx, "crs probe failed, assuming default",
			"layer", layer.Name, "default", Default, "err", err)
		return Default
	}
	if wkid := probeWKID(md); wkid != 0 {
		return FromWKID(wkid)
	}

	r.log.WarnContext(ctx, "metadata carries no spatial reference, assuming default",
		"layer", layer.Name, "default", Default)
	return Default
}

func probeWKID(md *arcgis.LayerMetadata) int {
	var sr *arcgis.SpatialReference
	if md.Extent != nil && md.Extent.SpatialReference != nil {
		sr = md.Extent.SpatialReference
	} else if md.SpatialReference != nil {
		sr = md.SpatialReference
	}
	if sr == nil {
		return 0
	}
	if sr.LatestWKID != 0 {
		return sr.LatestWKID
	}
	return sr.WKID
}

// FromWKID maps a well-known ID to an EPSG code, folding the Web Mercator
// aliases onto EPSG:3857.
func FromWKID(wkid int) string {
	switch wkid {
	case 102100, 102113, 900913:
		return WebMercator
	default:
		return "EPSG:" + strconv.Itoa(wkid)
	}
}

// Normalize canonicalizes a declared CRS identifier: "3857" and
// "epsg:102100" both become "EPSG:3857".
func Normalize(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	c = strings.TrimPrefix(c, "EPSG:")
	if n, err := strconv.Atoi(c); err == nil {
		return FromWKID(n)
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// Transform returns the fixed forward transform from code to WGS84. The
// transform is derived once per layer, not per feature.
func Transform(code string) (orb.Projection, error) {
	switch Normalize(code) {
	case Default:
		return func(p orb.Point) orb.Point { return p }, nil
	case WebMercator:
		return project.Mercator.ToWGS84, nil
	default:
		return nil, fmt.Errorf("unsupported source crs %q", code)
	}
}
