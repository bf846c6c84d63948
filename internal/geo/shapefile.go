package geo

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lightbox-cli/pkg/geocode"
)

// wgs84PRJ is the ESRI projection file content for EPSG:4326.
const wgs84PRJ = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// Shapefile attribute names. DBF limits names to 10 characters.
var shapefileFieldNames = []string{"row", "address", "latitude", "longitude", "confidence", "precision"}

var shapefileFields = []shp.Field{
	shp.NumberField(shapefileFieldNames[0], 10),
	shp.StringField(shapefileFieldNames[1], 254),
	shp.FloatField(shapefileFieldNames[2], 19, 8),
	shp.FloatField(shapefileFieldNames[3], 19, 8),
	shp.FloatField(shapefileFieldNames[4], 19, 8),
	shp.StringField(shapefileFieldNames[5], 32),
}

// WriteShapefile writes the matched rows of table as points to path, which must
// end in .shp. The row attribute is the row's zero-based index in the table so
// points can be joined back to the full result. A .prj sidecar declaring WGS 84
// is written alongside. Returns the number of points written.
func WriteShapefile(path string, table geocode.Table) (int, error) {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		return 0, eris.Errorf("geo: shapefile path %q must end in .shp", path)
	}

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, eris.Wrapf(err, "geo: create shapefile %s", path)
	}
	closed := false
	defer func() {
		if !closed {
			w.Close()
		}
	}()

	if err := w.SetFields(shapefileFields); err != nil {
		return 0, eris.Wrap(err, "geo: set shapefile fields")
	}

	written := 0
	for i, row := range table {
		if !row.Matched() {
			continue
		}
		n := int(w.Write(&shp.Point{X: row.Longitude, Y: row.Latitude}))

		attrs := []any{i, row.Address, row.Latitude, row.Longitude, row.ConfidenceScore, row.PrecisionCode}
		for field, v := range attrs {
			if err := w.WriteAttribute(n, field, v); err != nil {
				return written, eris.Wrapf(err, "geo: write attribute %s for row %d", shapefileFieldNames[field], i)
			}
		}
		written++
	}

	w.Close()
	closed = true

	// go-shp names the attribute table "<base>dbf"; readers expect "<base>.dbf".
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return written, eris.Wrap(err, "geo: rename attribute table")
	}

	prj := base + ".prj"
	if err := os.WriteFile(prj, []byte(wgs84PRJ), 0o644); err != nil {
		return written, eris.Wrap(err, "geo: write projection file")
	}

	zap.L().Debug("geo: shapefile written",
		zap.String("path", path),
		zap.Int("points", written),
		zap.Int("skipped", len(table)-written),
	)
	return written, nil
}
