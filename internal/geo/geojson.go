package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/lightbox-cli/pkg/geocode"
	"github.com/sells-group/lightbox-cli/pkg/lightbox"
)

// NoOwnerData is the owner property of a parcel without owner names.
const NoOwnerData = "No owner data"

// AdjacentToGeoJSON converts adjacent parcels into a FeatureCollection. Each
// feature carries id, apn, owner and address properties. A parcel without a
// geometry keeps a null geometry; a malformed geometry is an error.
func AdjacentToGeoJSON(parcels []lightbox.Parcel) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(parcels))}

	for _, p := range parcels {
		owner := NoOwnerData
		if len(p.Owner.Names) > 0 && p.Owner.Names[0].FullName != "" {
			owner = p.Owner.Names[0].FullName
		}

		f := &geojson.Feature{
			ID: p.ID,
			Properties: map[string]any{
				"id":      p.ID,
				"apn":     p.ParcelAPN,
				"owner":   owner,
				"address": p.Location.StreetAddress,
			},
		}

		if p.Location.Geometry.WKT == "" {
			zap.L().Debug("geo: parcel has no geometry", zap.String("parcel_id", p.ID))
		} else {
			g, err := ParseWKT(p.Location.Geometry.WKT)
			if err != nil {
				return nil, eris.Wrapf(err, "geo: parcel %s", p.ID)
			}
			f.Geometry = g
		}

		fc.Features = append(fc.Features, f)
	}

	return fc, nil
}

// TableToGeoJSON converts a geocode result table into a FeatureCollection with
// one feature per row, in order. Unmatched rows keep a null geometry.
func TableToGeoJSON(table geocode.Table) (*geojson.FeatureCollection, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(table))}

	for i, row := range table {
		props := make(map[string]any, len(geocode.Columns)+2)
		for j, v := range row.Values() {
			props[geocode.Columns[j]] = v
		}
		props["row"] = i
		props["outcome"] = row.Outcome.String()

		f := &geojson.Feature{Properties: props}
		if row.Matched() {
			p, err := NewPoint(row.Latitude, row.Longitude)
			if err != nil {
				return nil, eris.Wrapf(err, "geo: row %d", i)
			}
			f.Geometry = p
		}
		fc.Features = append(fc.Features, f)
	}

	return fc, nil
}
