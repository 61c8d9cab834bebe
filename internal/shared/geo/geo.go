package geo

import (
	"errors"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the spherical Earth radius used for every distance in the game.
const EarthRadiusKm = 6371.0

var ErrInvalidCoordinate = errors.New("invalid coordinate")

type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (c Coordinate) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(c.Latitude, c.Longitude)
}

func (c Coordinate) Valid() bool {
	return c.latLng().IsValid()
}

func (c Coordinate) Validate() error {
	if !c.Valid() {
		return ErrInvalidCoordinate
	}
	return nil
}

// DistanceKm returns the haversine great-circle distance between a and b.
func DistanceKm(a, b Coordinate) float64 {
	return a.latLng().Distance(b.latLng()).Radians() * EarthRadiusKm
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceKm(Coordinate{Latitude: lat1, Longitude: lng1}, Coordinate{Latitude: lat2, Longitude: lng2})
}
