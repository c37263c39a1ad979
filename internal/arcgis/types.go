package arcgis

// Geometry is the native Esri JSON geometry encoding. Exactly one of the
// field groups is populated: x/y for points, paths for polylines, rings for
// polygons. Anything else is unrecognized and the feature is dropped by the
// normalizer.
type Geometry struct {
	X     *float64      `json:"x,omitempty"`
	Y     *float64      `json:"y,omitempty"`
	Paths [][][]float64 `json:"paths,omitempty"`
	Rings [][][]float64 `json:"rings,omitempty"`
}

// RawFeature is one server record: a native geometry plus its attribute map.
// It exists only between fetch and normalization and is never persisted.
type RawFeature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry"`
}

// QueryResponse is the body of a feature query.
type QueryResponse struct {
	Features              []RawFeature `json:"features"`
	ExceededTransferLimit bool         `json:"exceededTransferLimit"`
	Error                 *ServerFault `json:"error"`
}

// ServerFault is the error object Esri servers embed in 200 responses.
type ServerFault struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SpatialReference carries the well-known ID of a layer's coordinate system.
type SpatialReference struct {
	WKID       int `json:"wkid"`
	LatestWKID int `json:"latestWkid"`
}

// LayerMetadata is the subset of the layer metadata document the CRS probe
// inspects.
type LayerMetadata struct {
	Extent *struct {
		SpatialReference *SpatialReference `json:"spatialReference"`
	} `json:"extent"`
	SpatialReference *SpatialReference `json:"spatialReference"`
	Error            *ServerFault      `json:"error"`
}
