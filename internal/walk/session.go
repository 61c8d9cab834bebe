package walk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"spotwalk/internal/history"
	"spotwalk/internal/shared/geo"
	"spotwalk/internal/spot"
)

var (
	ErrInvalidConfig       = errors.New("invalid walk configuration")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrPersistence         = errors.New("walk record not saved")
	ErrNotConfiguring      = errors.New("session already started")
	ErrNotActive           = errors.New("session is not active")
	ErrNoSession           = errors.New("no walk session")
	ErrSessionActive       = errors.New("a walk session is already active")
	ErrSpotNotFound        = errors.New("spot not found")
	ErrSpotVisited         = errors.New("spot already visited")
	ErrNotTimed            = errors.New("session has no time limit")
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

var SystemClock Clock = systemClock{}

type Recorder interface {
	Append(ctx context.Context, record history.Record) (history.Record, error)
}

// Session is one play-through. It is not safe for concurrent use; Service
// serializes every event onto it.
type Session struct {
	id         string
	generation uint64
	rules      Rules
	generator  *spot.Generator
	clock      Clock
	recorder   Recorder
	newID      func() string

	state         State
	mode          Mode
	difficulty    string
	center        geo.Coordinate
	radiusM       float64
	spots         []spot.Spot
	retired       []spot.Spot
	visitedCount  int
	points        int
	timeRemaining int
	startedAt     time.Time
	endedAt       time.Time
	record        *history.Record
}

func NewSession(id string, generation uint64, rules Rules, generator *spot.Generator, clock Clock, recorder Recorder, newID func() string) *Session {
	if clock == nil {
		clock = SystemClock
	}
	return &Session{
		id:         id,
		generation: generation,
		rules:      rules,
		generator:  generator,
		clock:      clock,
		recorder:   recorder,
		newID:      newID,
		state:      StateConfiguring,
	}
}

func (s *Session) ID() string         { return s.id }
func (s *Session) Generation() uint64 { return s.generation }
func (s *Session) State() State       { return s.state }
func (s *Session) Mode() Mode         { return s.mode }
func (s *Session) Points() int        { return s.points }

func (s *Session) Start(req StartRequest) error {
	if s.state != StateConfiguring {
		return ErrNotConfiguring
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeFree
	}
	if mode != ModeFree && mode != ModeChallenge {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, req.Mode)
	}
	if req.Center == nil {
		return fmt.Errorf("%w: center is required", ErrInvalidConfig)
	}
	if !req.Center.Valid() {
		return fmt.Errorf("%w: center %v is not a valid coordinate", ErrInvalidConfig, *req.Center)
	}

	radius := req.RadiusM
	if radius == 0 {
		radius = s.rules.DefaultRadiusM
	}
	if math.IsNaN(radius) || radius < s.rules.MinRadiusM || radius > s.rules.MaxRadiusM {
		return fmt.Errorf("%w: radius %vm outside [%v, %v]", ErrInvalidConfig, req.RadiusM, s.rules.MinRadiusM, s.rules.MaxRadiusM)
	}

	count, difficulty, err := s.spotCount(mode, req)
	if err != nil {
		return err
	}

	ids := make([]string, count)
	for i := range ids {
		ids[i] = s.newID()
	}
	spots, err := s.generator.GenerateN(*req.Center, radius, ids)
	if err != nil {
		return err
	}

	s.mode = mode
	s.difficulty = difficulty
	s.center = *req.Center
	s.radiusM = radius
	s.spots = spots
	s.retired = nil
	s.points = 0
	s.visitedCount = 0
	s.startedAt = s.clock.Now()
	if mode == ModeChallenge {
		s.timeRemaining = s.rules.ChallengeSeconds
	}
	s.state = StateActive
	return nil
}

func (s *Session) spotCount(mode Mode, req StartRequest) (int, string, error) {
	if req.SpotCount < 0 || req.SpotCount > MaxSpots {
		return 0, "", fmt.Errorf("%w: spot count %d outside [0, %d] (0 = preset)", ErrInvalidConfig, req.SpotCount, MaxSpots)
	}
	if mode == ModeChallenge {
		count := s.rules.ChallengeSpots
		if req.SpotCount > 0 {
			count = req.SpotCount
		}
		if count <= 0 {
			return 0, "", fmt.Errorf("%w: challenge needs at least one spot", ErrInvalidConfig)
		}
		return count, DifficultyChallenge, nil
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		if req.SpotCount > 0 {
			return req.SpotCount, DifficultyCustom, nil
		}
		difficulty = DifficultyMedium
	}
	preset, ok := freeSpotCounts[difficulty]
	if !ok {
		return 0, "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidConfig, req.Difficulty)
	}
	if req.SpotCount > 0 {
		return req.SpotCount, difficulty, nil
	}
	return preset, difficulty, nil
}

func (s *Session) LocationUpdate(ctx context.Context, at geo.Coordinate) (Update, error) {
	if s.state != StateActive {
		return Update{}, ErrNotActive
	}
	if err := at.Validate(); err != nil {
		return Update{}, err
	}

	var upd Update
	thresholdKm := s.rules.VisitThresholdM / 1000
	replace := s.rules.replaceOnVisit(s.mode)
	for i := range s.spots {
		if s.spots[i].Visited {
			continue
		}
		if geo.DistanceKm(at, s.spots[i].Coordinate()) >= thresholdKm {
			continue
		}
		s.spots[i].Visited = true
		s.points++
		s.visitedCount++
		upd.Awarded++
		upd.Visited = append(upd.Visited, s.spots[i])

		if replace {
			s.retired = append(s.retired, s.spots[i])
			fresh, err := s.generator.Generate(s.center, s.radiusM, s.newID())
			if err != nil {
				return upd, err
			}
			s.spots[i] = fresh
			upd.Replaced = append(upd.Replaced, fresh)
		}
	}

	if len(upd.Visited) > 0 && s.allVisited() {
		err := s.complete(ctx)
		upd.Transition = s.state
		upd.Record = s.record
		return upd, err
	}
	return upd, nil
}

func (s *Session) allVisited() bool {
	for _, sp := range s.spots {
		if !sp.Visited {
			return false
		}
	}
	return true
}

func (s *Session) ReplaceSpot(spotID string) (Update, error) {
	if s.state != StateActive {
		return Update{}, ErrNotActive
	}
	idx := -1
	for i, sp := range s.spots {
		if sp.ID == spotID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Update{}, fmt.Errorf("%w: %s", ErrSpotNotFound, spotID)
	}
	if s.spots[idx].Visited {
		return Update{}, fmt.Errorf("%w: %s", ErrSpotVisited, spotID)
	}

	fresh, err := s.generator.Generate(s.center, s.radiusM, s.newID())
	if err != nil {
		return Update{}, err
	}
	s.spots[idx] = fresh
	penalty := s.rules.skipPenalty(s.mode)
	s.points -= penalty
	return Update{Replaced: []spot.Spot{fresh}, Awarded: -penalty}, nil
}

func (s *Session) Tick(ctx context.Context) (Update, error) {
	if s.state != StateActive {
		return Update{}, ErrNotActive
	}
	if s.mode != ModeChallenge {
		return Update{}, ErrNotTimed
	}
	s.timeRemaining--
	upd := Update{Ticked: true}
	if s.timeRemaining > 0 {
		return upd, nil
	}

	s.timeRemaining = 0
	s.terminate(StateTimedOut)
	upd.Transition = StateTimedOut
	if !s.rules.RecordTimedOut {
		return upd, nil
	}
	err := s.persist(ctx)
	upd.Record = s.record
	return upd, err
}

func (s *Session) Finish(ctx context.Context) (Update, error) {
	if s.state != StateActive {
		return Update{}, ErrNotActive
	}
	err := s.complete(ctx)
	return Update{Transition: s.state, Record: s.record}, err
}

func (s *Session) Quit() (Update, error) {
	if s.state != StateActive {
		return Update{}, ErrNotActive
	}
	s.terminate(StateQuit)
	return Update{Transition: StateQuit}, nil
}

func (s *Session) complete(ctx context.Context) error {
	s.terminate(StateCompleted)
	return s.persist(ctx)
}

func (s *Session) terminate(state State) {
	s.state = state
	s.endedAt = s.clock.Now()
	s.spots = nil
}

func (s *Session) persist(ctx context.Context) error {
	elapsed := s.endedAt.Sub(s.startedAt)
	record := history.Record{
		DurationMinutes: math.Round(elapsed.Minutes()*100) / 100,
		Points:          s.points,
		Date:            history.FormatDate(s.endedAt),
		Difficulty:      s.difficulty,
	}
	s.record = &record
	if s.recorder == nil {
		log.Printf("walk %s: %d points over %.2f min not saved: no store configured", s.id, record.Points, record.DurationMinutes)
		return fmt.Errorf("%w: no store configured", ErrPersistence)
	}

	saved, err := s.recorder.Append(ctx, record)
	if err != nil {
		log.Printf("walk %s: %d points over %.2f min not saved: %v", s.id, record.Points, record.DurationMinutes, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	s.record = &saved
	return nil
}

func (s *Session) Nearest(at geo.Coordinate) (Hint, bool) {
	if s.state != StateActive {
		return Hint{}, false
	}
	best := -1
	bestKm := math.Inf(1)
	for i, sp := range s.spots {
		if sp.Visited {
			continue
		}
		if d := geo.DistanceKm(at, sp.Coordinate()); d < bestKm {
			best, bestKm = i, d
		}
	}
	if best < 0 {
		return Hint{}, false
	}
	progress := Progress(bestKm, s.radiusM/1000)
	return Hint{
		SpotID:    s.spots[best].ID,
		DistanceM: bestKm * 1000,
		Progress:  progress,
		Label:     ProximityLabel(progress),
	}, true
}

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:            s.id,
		Generation:    s.generation,
		State:         s.state,
		Mode:          s.mode,
		Difficulty:    s.difficulty,
		Center:        s.center,
		RadiusM:       s.radiusM,
		Spots:         append([]spot.Spot{}, s.spots...),
		Retired:       append([]spot.Spot(nil), s.retired...),
		Points:        s.points,
		VisitedCount:  s.visitedCount,
		TimeRemaining: s.timeRemaining,
		StartedAt:     s.startedAt,
		Record:        s.record,
	}
	if !s.endedAt.IsZero() {
		ended := s.endedAt
		snap.EndedAt = &ended
	}
	return snap
}
