package spot

import "spotwalk/internal/shared/geo"

type Spot struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Visited   bool    `json:"visited"`
}

func (s Spot) Coordinate() geo.Coordinate {
	return geo.Coordinate{Latitude: s.Latitude, Longitude: s.Longitude}
}

type Sampling string

const (
	// SamplingRadial draws the distance uniformly along the radius, which
	// clusters spots near the center.
	SamplingRadial Sampling = "radial"
	SamplingArea Sampling = "area"
)

func ParseSampling(v string) (Sampling, bool) {
	switch Sampling(v) {
	case SamplingRadial, "":
		return SamplingRadial, true
	case SamplingArea:
		return SamplingArea, true
	}
	return "", false
}
