package location

import (
	"errors"
	"sync"
	"time"

	"spotwalk/internal/shared/geo"
)

var ErrUnavailable = errors.New("location unavailable")

type Fix struct {
	geo.Coordinate
	ReceivedAt time.Time `json:"received_at"`
}

// Subscribers run on the publishing goroutine and must not block.
type Feed struct {
	mu      sync.RWMutex
	last    *Fix
	subs    map[uint64]func(geo.Coordinate)
	nextSub uint64
	now     func() time.Time
}

func NewFeed() *Feed {
	return &Feed{
		subs: map[uint64]func(geo.Coordinate){},
		now:  time.Now,
	}
}

func (f *Feed) Current() (geo.Coordinate, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.last == nil {
		return geo.Coordinate{}, ErrUnavailable
	}
	return f.last.Coordinate, nil
}

func (f *Feed) Last() (Fix, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.last == nil {
		return Fix{}, false
	}
	return *f.last, true
}

func (f *Feed) Subscribe(fn func(geo.Coordinate)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *Feed) Publish(c geo.Coordinate) (Fix, error) {
	if err := c.Validate(); err != nil {
		return Fix{}, err
	}
	fix := Fix{Coordinate: c, ReceivedAt: f.now()}

	f.mu.Lock()
	f.last = &fix
	subs := make([]func(geo.Coordinate), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	for _, fn := range subs {
		fn(c)
	}
	return fix, nil
}
