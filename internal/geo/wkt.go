// Package geo converts geocode results and parcel geometries between WKT,
// EWKB, GeoJSON and ESRI shapefiles.
package geo

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// SRID is the spatial reference of every geometry this package emits (WGS 84).
const SRID = 4326

// NewPoint builds an XY point from latitude and longitude.
func NewPoint(lat, lon float64) (*geom.Point, error) {
	if lat < -90 || lat > 90 {
		return nil, eris.Errorf("geo: latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return nil, eris.Errorf("geo: longitude %v out of range", lon)
	}
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}), nil
}

// PointWKT renders a latitude/longitude pair as WKT, e.g. "POINT (-117.853 33.638)".
func PointWKT(lat, lon float64) (string, error) {
	p, err := NewPoint(lat, lon)
	if err != nil {
		return "", err
	}
	s, err := wkt.Marshal(p)
	if err != nil {
		return "", eris.Wrap(err, "geo: encode WKT")
	}
	return s, nil
}

// PointEWKB encodes a latitude/longitude pair as little-endian EWKB with SRID 4326.
func PointEWKB(lat, lon float64) ([]byte, error) {
	p, err := NewPoint(lat, lon)
	if err != nil {
		return nil, err
	}
	data, err := ewkb.Marshal(p.SetSRID(SRID), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode WKB")
	}
	return data, nil
}

// ParseWKT parses and validates a WKT geometry.
func ParseWKT(s string) (geom.T, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, eris.New("geo: empty WKT")
	}
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: parse WKT %q", s)
	}
	return g, nil
}
