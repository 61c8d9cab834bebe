package spot

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"spotwalk/internal/shared/geo"
)

const (
	KmPerDegree = 111.32
	// MaxLatitude is the highest absolute center latitude accepted; closer to
	// the poles the longitude divisor collapses.
	MaxLatitude = 89.9
)

var ErrDomain = errors.New("coordinate outside generator domain")

type Generator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	sampling Sampling
}

func NewGenerator(src rand.Source, sampling Sampling) *Generator {
	if src == nil {
		seed := uint64(time.Now().UnixNano())
		src = rand.NewPCG(seed, seed>>1|1)
	}
	if sampling == "" {
		sampling = SamplingRadial
	}
	return &Generator{rng: rand.New(src), sampling: sampling}
}

func (g *Generator) draw() (angle, unit float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() * 2 * math.Pi, g.rng.Float64()
}

func (g *Generator) Generate(center geo.Coordinate, radiusMeters float64, id string) (Spot, error) {
	if !center.Valid() || math.Abs(center.Latitude) > MaxLatitude {
		return Spot{}, fmt.Errorf("%w: center %.6f,%.6f", ErrDomain, center.Latitude, center.Longitude)
	}
	if radiusMeters <= 0 || math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) {
		return Spot{}, fmt.Errorf("%w: radius %v", ErrDomain, radiusMeters)
	}

	angle, unit := g.draw()
	if g.sampling == SamplingArea {
		unit = math.Sqrt(unit)
	}
	distanceKm := unit * radiusMeters / 1000

	dLat := distanceKm * math.Cos(angle) / KmPerDegree
	dLon := distanceKm * math.Sin(angle) / (KmPerDegree * math.Cos(center.Latitude*math.Pi/180))

	return Spot{
		ID:        id,
		Latitude:  center.Latitude + dLat,
		Longitude: wrapLongitude(center.Longitude + dLon),
	}, nil
}

func (g *Generator) GenerateN(center geo.Coordinate, radiusMeters float64, ids []string) ([]Spot, error) {
	spots := make([]Spot, 0, len(ids))
	for _, id := range ids {
		s, err := g.Generate(center, radiusMeters, id)
		if err != nil {
			return nil, err
		}
		spots = append(spots, s)
	}
	return spots, nil
}

func wrapLongitude(lng float64) float64 {
	if lng > 180 {
		return lng - 360
	}
	if lng < -180 {
		return lng + 360
	}
	return lng
}
