// Package region models the administrative hierarchy used by region-mode
// analysis: province, district, neighborhood.  The catalog backing the
// hierarchy is loaded from a JSON file and hot-reloaded on change.
package region

import (
	"fmt"

	"github.com/lokaskor/lokaskor/pkg/types/geo"
)

// Level is one tier of the administrative hierarchy.
type Level string

const (
	LevelProvince     Level = "province"
	LevelDistrict     Level = "district"
	LevelNeighborhood Level = "neighborhood"
)

// Deeper returns the levels strictly below l, outermost first.
func (l Level) Deeper() []Level {
	switch l {
	case LevelProvince:
		return []Level{LevelDistrict, LevelNeighborhood}
	case LevelDistrict:
		return []Level{LevelNeighborhood}
	default:
		return nil
	}
}

// Path is a (possibly partial) selection through the hierarchy.  A level may
// only be set when every level above it is set.
type Path struct {
	Province     string `json:"province"`
	District     string `json:"district"`
	Neighborhood string `json:"neighborhood"`
}

// Complete reports whether all three levels are selected.
func (p Path) Complete() bool {
	return p.Province != "" && p.District != "" && p.Neighborhood != ""
}

// Consistent reports whether no level is set without its parent.
func (p Path) Consistent() bool {
	if p.District != "" && p.Province == "" {
		return false
	}
	if p.Neighborhood != "" && p.District == "" {
		return false
	}
	return true
}

// WithSelection returns p with the given level set and every deeper level
// cleared.  Selecting a level invalidates everything below it.
func (p Path) WithSelection(level Level, value string) Path {
	out := p
	switch level {
	case LevelProvince:
		out.Province = value
		out.District = ""
		out.Neighborhood = ""
	case LevelDistrict:
		out.District = value
		out.Neighborhood = ""
	case LevelNeighborhood:
		out.Neighborhood = value
	}
	return out
}

func (p Path) String() string {
	return fmt.Sprintf("%s/%s/%s", p.Province, p.District, p.Neighborhood)
}

// Neighborhood is the leaf of the catalog: a named area with a center point
// and an approximate radius used to derive the scan bounds.
type Neighborhood struct {
	Name         string     `json:"name"`
	Center       geo.LatLng `json:"center"`
	RadiusMeters float64    `json:"radius_meters"`
}

// Bounds returns the scan rectangle for the neighborhood.
func (n Neighborhood) Bounds() geo.Bounds {
	r := n.RadiusMeters
	if r <= 0 {
		r = 1000
	}
	return geo.BoundsAround(n.Center, r)
}

// District groups neighborhoods.
type District struct {
	Name          string         `json:"name"`
	Neighborhoods []Neighborhood `json:"neighborhoods"`
}

// Province groups districts.
type Province struct {
	Name      string     `json:"name"`
	Districts []District `json:"districts"`
}
