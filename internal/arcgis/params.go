package arcgis

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mikeaa1983/mineralink-tiles/internal/planner"
)

const wgs84WKID = "4326"

func baseParams() url.Values {
	params := url.Values{}
	params.Set("where", "1=1")
	params.Set("outFields", "*")
	params.Set("returnGeometry", "true")
	params.Set("inSR", wgs84WKID)
	params.Set("outSR", wgs84WKID)
	params.Set("f", "json")
	return params
}

// EnvelopeParams builds the query parameters for one spatial chunk.
func EnvelopeParams(env planner.Envelope) url.Values {
	params := baseParams()
	params.Set("geometry", env.String())
	params.Set("geometryType", "esriGeometryEnvelope")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	return params
}

// PageParams builds the query parameters for one offset page.
func PageParams(offset, count int) url.Values {
	params := baseParams()
	params.Set("resultOffset", strconv.Itoa(offset))
	params.Set("resultRecordCount", strconv.Itoa(count))
	return params
}

// MetadataURL derives the layer metadata endpoint from a query URL by
// dropping the trailing /query segment.
func MetadataURL(queryURL string) string {
	u, err := url.Parse(queryURL)
	if err != nil {
		return queryURL
	}
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/query")
	q := u.Query()
	q.Set("f", "json")
	u.RawQuery = q.Encode()
	return u.String()
}
