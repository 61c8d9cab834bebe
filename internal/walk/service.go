package walk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"spotwalk/internal/shared/geo"
	"spotwalk/internal/spot"

	"github.com/google/uuid"
)

type LocationProvider interface {
	Current() (geo.Coordinate, error)
	Subscribe(fn func(geo.Coordinate)) (unsubscribe func())
}

// Broadcast is called with the service lock held and must not block.
type Publisher interface {
	Broadcast(sessionID string, payload []byte)
}

const fixBuffer = 32

// Service owns the single live session. Events tagged with an older generation
// are dropped.
type Service struct {
	mu           sync.Mutex
	rules        Rules
	generator    *spot.Generator
	recorder     Recorder
	locations    LocationProvider
	publisher    Publisher
	clock        Clock
	tickInterval time.Duration
	newID        func() string

	current    *Session
	generation uint64
	stop       context.CancelFunc
	done       chan struct{}
}

type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(rules Rules, generator *spot.Generator, recorder Recorder, locations LocationProvider, opts ...Option) *Service {
	s := &Service{
		rules:        rules,
		generator:    generator,
		recorder:     recorder,
		locations:    locations,
		clock:        SystemClock,
		tickInterval: time.Second,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Rules() Rules {
	return s.rules
}

func (s *Service) Start(ctx context.Context, req StartRequest) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.State() == StateActive {
		return Snapshot{}, ErrSessionActive
	}
	if req.Center == nil {
		here, err := s.locations.Current()
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
		}
		req.Center = &here
	}

	generation := s.generation + 1
	sess := NewSession(s.newID(), generation, s.rules, s.generator, s.clock, s.recorder, s.newID)
	if err := sess.Start(req); err != nil {
		return Snapshot{}, err
	}
	s.generation = generation
	s.current = sess

	runCtx, cancel := context.WithCancel(context.Background())
	fixes := make(chan geo.Coordinate, fixBuffer)
	unsubscribe := s.locations.Subscribe(func(c geo.Coordinate) {
		select {
		case fixes <- c:
		default:
			log.Printf("walk %s: location fix dropped", sess.ID())
		}
	})
	var ticks <-chan time.Time
	var ticker *time.Ticker
	if sess.Mode() == ModeChallenge {
		ticker = time.NewTicker(s.tickInterval)
		ticks = ticker.C
	}
	done := make(chan struct{})
	s.stop = cancel
	s.done = done

	go func() {
		defer close(done)
		defer unsubscribe()
		if ticker != nil {
			defer ticker.Stop()
		}
		s.run(runCtx, generation, fixes, ticks)
	}()

	s.publishLocked(sess, "started", Update{Transition: StateActive})
	return sess.Snapshot(), nil
}

func (s *Service) run(ctx context.Context, generation uint64, fixes <-chan geo.Coordinate, ticks <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return
		case at := <-fixes:
			if s.apply(ctx, generation, "location", func(sess *Session) (Update, error) {
				return sess.LocationUpdate(ctx, at)
			}) {
				return
			}
		case <-ticks:
			if s.apply(ctx, generation, "tick", func(sess *Session) (Update, error) {
				return sess.Tick(ctx)
			}) {
				return
			}
		}
	}
}

func (s *Service) apply(ctx context.Context, generation uint64, kind string, fn func(*Session) (Update, error)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.current
	if ctx.Err() != nil || sess == nil || sess.Generation() != generation || sess.State() != StateActive {
		return true
	}
	upd, err := fn(sess)
	if err != nil && !errors.Is(err, ErrPersistence) {
		log.Printf("walk %s: %s event failed: %v", sess.ID(), kind, err)
	}
	s.publishLocked(sess, eventType(kind, upd), upd)
	if sess.State().Terminal() {
		s.stopLocked()
		return true
	}
	return false
}

func eventType(kind string, upd Update) string {
	switch {
	case upd.Transition != "":
		return string(upd.Transition)
	case len(upd.Visited) > 0:
		return "spot_visited"
	case len(upd.Replaced) > 0:
		return "spot_replaced"
	}
	return kind
}

func (s *Service) publishLocked(sess *Session, typ string, upd Update) {
	if s.publisher == nil || !upd.Changed() {
		return
	}
	payload, err := json.Marshal(Event{Type: typ, Update: upd, Session: sess.Snapshot()})
	if err != nil {
		log.Printf("walk %s: encode event: %v", sess.ID(), err)
		return
	}
	s.publisher.Broadcast(sess.ID(), payload)
}

func (s *Service) stopLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

func (s *Service) do(typ string, fn func(*Session) (Update, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.current
	if sess == nil {
		return Snapshot{}, ErrNoSession
	}
	upd, err := fn(sess)
	if err != nil && !errors.Is(err, ErrPersistence) {
		return sess.Snapshot(), err
	}
	s.publishLocked(sess, eventType(typ, upd), upd)
	if sess.State().Terminal() {
		s.stopLocked()
	}
	return sess.Snapshot(), err
}

func (s *Service) ReplaceSpot(spotID string) (Snapshot, error) {
	return s.do("spot_replaced", func(sess *Session) (Update, error) {
		return sess.ReplaceSpot(spotID)
	})
}

func (s *Service) Finish(ctx context.Context) (Snapshot, error) {
	return s.do("finish", func(sess *Session) (Update, error) {
		return sess.Finish(ctx)
	})
}

func (s *Service) Quit() (Snapshot, error) {
	return s.do("quit", func(sess *Session) (Update, error) {
		return sess.Quit()
	})
}

func (s *Service) Current() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Snapshot{}, ErrNoSession
	}
	return s.current.Snapshot(), nil
}

func (s *Service) SnapshotJSON(sessionID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ID() != sessionID {
		return nil, false
	}
	payload, err := json.Marshal(Event{Type: "snapshot", Session: s.current.Snapshot()})
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (s *Service) Hint() (Hint, error) {
	here, err := s.locations.Current()
	if err != nil {
		return Hint{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Hint{}, ErrNoSession
	}
	hint, ok := s.current.Nearest(here)
	if !ok {
		return Hint{}, ErrNotActive
	}
	return hint, nil
}

func (s *Service) Close() {
	s.mu.Lock()
	s.stopLocked()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}
