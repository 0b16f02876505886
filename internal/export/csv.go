package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// pointColumns defines the ordered labeled-point CSV output columns.
var pointColumns = []string{"Index", "Latitude", "Longitude", "Label"}

// WritePointsCSV writes labeled track points as a CSV file.
func WritePointsCSV(points []model.LabeledPoint, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create points csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(pointColumns); err != nil {
		return eris.Wrap(err, "export: write points header")
	}
	for _, p := range points {
		row := []string{
			strconv.Itoa(p.Index),
			strconv.FormatFloat(p.Latitude, 'f', -1, 64),
			strconv.FormatFloat(p.Longitude, 'f', -1, 64),
			string(p.Label),
		}
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "export: write point %d", p.Index)
		}
	}
	return nil
}
