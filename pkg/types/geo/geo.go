// Package geo provides the shared geographic primitives used across the
// engine: coordinates, rectangular bounds, and spherical distance.
package geo

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
)

// earthRadiusMeters is the mean Earth radius used for distance conversion.
const earthRadiusMeters = 6371008.8

// LatLng is a WGS84 coordinate pair in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies inside the WGS84 domain.
func (p LatLng) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// IsZero reports whether the coordinate is the zero value.  The engine treats
// (0, 0) as "unset" since no supported region sits on Null Island.
func (p LatLng) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

func (p LatLng) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

func (p LatLng) s2() s2.LatLng {
	return s2.LatLngFromDegrees(p.Lat, p.Lng)
}

// DistanceMeters returns the great-circle distance between two coordinates.
func DistanceMeters(a, b LatLng) float64 {
	return float64(a.s2().Distance(b.s2())) * earthRadiusMeters
}

// Offset returns the coordinate displaced by the given meters north and east.
// Accurate for the small displacements used in cell generation; not intended
// for long-range navigation.
func Offset(p LatLng, northMeters, eastMeters float64) LatLng {
	dLat := (northMeters / earthRadiusMeters) * (180 / math.Pi)
	dLng := (eastMeters / (earthRadiusMeters * math.Cos(p.Lat*math.Pi/180))) * (180 / math.Pi)
	return LatLng{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}

// Offset is the method form of the package-level Offset.
func (p LatLng) Offset(northMeters, eastMeters float64) LatLng {
	return Offset(p, northMeters, eastMeters)
}

// Bounds is a latitude/longitude rectangle.  SouthWest must not exceed
// NorthEast on either axis; bounds crossing the antimeridian are not
// supported by the engine.
type Bounds struct {
	SouthWest LatLng `json:"south_west"`
	NorthEast LatLng `json:"north_east"`
}

// Valid reports whether the rectangle is well-formed.
func (b Bounds) Valid() bool {
	return b.SouthWest.Valid() && b.NorthEast.Valid() &&
		b.SouthWest.Lat <= b.NorthEast.Lat && b.SouthWest.Lng <= b.NorthEast.Lng
}

// Contains reports whether p lies inside the rectangle (inclusive).
func (b Bounds) Contains(p LatLng) bool {
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lng >= b.SouthWest.Lng && p.Lng <= b.NorthEast.Lng
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() LatLng {
	return LatLng{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
}

// Extend returns the smallest rectangle covering both b and p.  Extending the
// zero Bounds yields a degenerate rectangle at p.
func (b Bounds) Extend(p LatLng) Bounds {
	if b == (Bounds{}) {
		return Bounds{SouthWest: p, NorthEast: p}
	}
	out := b
	out.SouthWest.Lat = math.Min(out.SouthWest.Lat, p.Lat)
	out.SouthWest.Lng = math.Min(out.SouthWest.Lng, p.Lng)
	out.NorthEast.Lat = math.Max(out.NorthEast.Lat, p.Lat)
	out.NorthEast.Lng = math.Max(out.NorthEast.Lng, p.Lng)
	return out
}

// BoundsAround returns a square of the given radius centered on p.
func BoundsAround(p LatLng, radiusMeters float64) Bounds {
	return Bounds{
		SouthWest: Offset(p, -radiusMeters, -radiusMeters),
		NorthEast: Offset(p, radiusMeters, radiusMeters),
	}
}

// BoundsOf returns the smallest rectangle covering all points.  The zero
// Bounds is returned for an empty slice.
func BoundsOf(points []LatLng) Bounds {
	var b Bounds
	for _, p := range points {
		b = b.Extend(p)
	}
	return b
}
