// Package export writes labeled survey data as CSV, GeoJSON and XLSX.
package export

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/trackside-analytics/railscan-cli/internal/model"
)

// MarkerStyle is the map marker rendering hint attached to exported GeoJSON
// features and served to the viewer.
type MarkerStyle struct {
	Color string `yaml:"color" json:"color"`
	Size  int    `yaml:"size" json:"size"`
}

// DefaultStyles is the house style for survey maps.
var DefaultStyles = map[model.Category]MarkerStyle{
	model.CategoryBridge:    {Color: "red", Size: 10},
	model.CategoryRailJoint: {Color: "blue", Size: 8},
	model.CategoryTurnout:   {Color: "green", Size: 12},
	model.CategoryOther:     {Color: "gray", Size: 6},
}

// LoadStyles reads style overrides from a YAML file keyed by category name.
// Categories not present keep their defaults.
func LoadStyles(path string) (map[model.Category]MarkerStyle, error) {
	styles := make(map[model.Category]MarkerStyle, len(DefaultStyles))
	for cat, st := range DefaultStyles {
		styles[cat] = st
	}
	if path == "" {
		return styles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: read styles %s", path)
	}
	var overrides map[string]MarkerStyle
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrapf(err, "export: parse styles %s", path)
	}
	for name, st := range overrides {
		styles[model.Category(name)] = st
	}
	return styles, nil
}

// Style returns the marker style for a category, falling back to the Other
// style for unknown categories.
func Style(styles map[model.Category]MarkerStyle, cat model.Category) MarkerStyle {
	if st, ok := styles[cat]; ok {
		return st
	}
	return styles[model.CategoryOther]
}
