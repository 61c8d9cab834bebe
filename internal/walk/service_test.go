package walk

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"spotwalk/internal/location"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *capturePublisher) Broadcast(_ string, payload []byte) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

func (p *capturePublisher) has(typ string) bool {
	for _, got := range p.types() {
		if got == typ {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestService(rules Rules, recorder Recorder) (*Service, *location.Feed, *capturePublisher) {
	feed := location.NewFeed()
	pub := &capturePublisher{}
	svc := NewService(rules, compassGenerator(), recorder, feed,
		WithClock(newFakeClock()),
		WithPublisher(pub),
		WithIDs(sequentialIDs()),
		WithTickInterval(5*time.Millisecond),
	)
	return svc, feed, pub
}

func currentState(svc *Service) State {
	snap, err := svc.Current()
	if err != nil {
		return ""
	}
	return snap.State
}

func TestServiceScoresFixesFromFeed(t *testing.T) {
	recorder := &memRecorder{}
	svc, feed, pub := newTestService(DefaultRules(), recorder)
	defer svc.Close()

	center := testCenter
	snap, err := svc.Start(context.Background(), StartRequest{Center: &center, RadiusM: 500, SpotCount: 2})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if feed.Subscribers() != 1 {
		t.Fatalf("expected the session to subscribe before Start returns")
	}

	_, _ = feed.Publish(snap.Spots[0].Coordinate())
	waitFor(t, "first visit", func() bool {
		s, _ := svc.Current()
		return s.Points == 1
	})

	_, _ = feed.Publish(snap.Spots[1].Coordinate())
	waitFor(t, "completion", func() bool { return currentState(svc) == StateCompleted })
	waitFor(t, "unsubscribe", func() bool { return feed.Subscribers() == 0 })

	if recorder.count() != 1 {
		t.Fatalf("expected one record, got %d", recorder.count())
	}
	if !pub.has("started") || !pub.has("spot_visited") || !pub.has("completed") {
		t.Fatalf("unexpected events %v", pub.types())
	}
}

func TestServiceStartUsesCurrentLocation(t *testing.T) {
	svc, feed, _ := newTestService(DefaultRules(), nil)
	defer svc.Close()

	if _, err := svc.Start(context.Background(), StartRequest{}); !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("expected location unavailable, got %v", err)
	}
	if feed.Subscribers() != 0 {
		t.Fatalf("failed start must not subscribe")
	}

	_, _ = feed.Publish(testCenter)
	snap, err := svc.Start(context.Background(), StartRequest{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if snap.Center != testCenter {
		t.Fatalf("expected center from feed, got %+v", snap.Center)
	}
}

func TestServiceSingleActiveSession(t *testing.T) {
	svc, feed, _ := newTestService(DefaultRules(), nil)
	defer svc.Close()
	center := testCenter

	first, err := svc.Start(context.Background(), StartRequest{Center: &center})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.Start(context.Background(), StartRequest{Center: &center}); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("expected session active, got %v", err)
	}

	if _, err := svc.Quit(); err != nil {
		t.Fatalf("quit: %v", err)
	}
	waitFor(t, "unsubscribe after quit", func() bool { return feed.Subscribers() == 0 })

	second, err := svc.Start(context.Background(), StartRequest{Center: &center})
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if second.Generation != first.Generation+1 || second.ID == first.ID {
		t.Fatalf("expected a new generation, got %+v", second)
	}
	if feed.Subscribers() != 1 {
		t.Fatalf("expected exactly one live subscription, got %d", feed.Subscribers())
	}
}

func TestServiceDropsStaleEvents(t *testing.T) {
	svc, _, _ := newTestService(DefaultRules(), nil)
	defer svc.Close()
	center := testCenter

	first, _ := svc.Start(context.Background(), StartRequest{Center: &center})
	_, _ = svc.Quit()
	_, _ = svc.Start(context.Background(), StartRequest{Center: &center})

	called := false
	exit := svc.apply(context.Background(), first.Generation, "location", func(*Session) (Update, error) {
		called = true
		return Update{}, nil
	})
	if !exit || called {
		t.Fatalf("stale event must be dropped")
	}
	if currentState(svc) != StateActive {
		t.Fatalf("live session must be untouched")
	}
}

func TestServiceChallengeTimesOut(t *testing.T) {
	rules := DefaultRules()
	rules.ChallengeSeconds = 3
	recorder := &memRecorder{}
	svc, feed, pub := newTestService(rules, recorder)
	defer svc.Close()
	center := testCenter

	if _, err := svc.Start(context.Background(), StartRequest{Center: &center, Mode: ModeChallenge}); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "timeout", func() bool { return currentState(svc) == StateTimedOut })
	waitFor(t, "unsubscribe", func() bool { return feed.Subscribers() == 0 })

	if recorder.count() != 0 {
		t.Fatalf("timed out walk must not be recorded")
	}
	if !pub.has("tick") || !pub.has("timed_out") {
		t.Fatalf("unexpected events %v", pub.types())
	}

	_, _ = feed.Publish(center)
	snap, _ := svc.Current()
	if snap.Points != 0 || snap.State != StateTimedOut {
		t.Fatalf("late fixes must not change a timed out session")
	}
}

func TestServiceReplaceSpot(t *testing.T) {
	svc, _, pub := newTestService(DefaultRules(), nil)
	defer svc.Close()
	center := testCenter

	snap, _ := svc.Start(context.Background(), StartRequest{Center: &center, Mode: ModeChallenge})
	after, err := svc.ReplaceSpot(snap.Spots[0].ID)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if after.Points != -1 || after.Spots[0].ID == snap.Spots[0].ID {
		t.Fatalf("unexpected snapshot %+v", after)
	}
	if !pub.has("spot_replaced") {
		t.Fatalf("expected replace event")
	}
	if _, err := svc.ReplaceSpot("missing"); !errors.Is(err, ErrSpotNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceFinishPersistenceFailure(t *testing.T) {
	svc, feed, _ := newTestService(DefaultRules(), &memRecorder{err: errors.New("db down")})
	defer svc.Close()
	center := testCenter

	_, _ = svc.Start(context.Background(), StartRequest{Center: &center})
	snap, err := svc.Finish(context.Background())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if snap.State != StateCompleted || snap.Record == nil {
		t.Fatalf("expected completed snapshot with record, got %+v", snap)
	}
	waitFor(t, "unsubscribe", func() bool { return feed.Subscribers() == 0 })
}

func TestServiceWithoutSession(t *testing.T) {
	svc, _, _ := newTestService(DefaultRules(), nil)
	defer svc.Close()

	if _, err := svc.Current(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session")
	}
	if _, err := svc.Finish(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session on finish")
	}
	if _, err := svc.ReplaceSpot("x"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected no session on replace")
	}
	if _, ok := svc.SnapshotJSON("x"); ok {
		t.Fatalf("expected no snapshot")
	}
}

func TestServiceSnapshotJSONAndHint(t *testing.T) {
	svc, feed, _ := newTestService(DefaultRules(), nil)
	defer svc.Close()
	center := testCenter

	if _, err := svc.Hint(); !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("expected location unavailable")
	}
	snap, _ := svc.Start(context.Background(), StartRequest{Center: &center, SpotCount: 4})

	payload, ok := svc.SnapshotJSON(snap.ID)
	if !ok {
		t.Fatalf("expected snapshot for live session")
	}
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil || ev.Type != "snapshot" || ev.Session.ID != snap.ID {
		t.Fatalf("unexpected snapshot event %s", payload)
	}
	if _, ok := svc.SnapshotJSON("other"); ok {
		t.Fatalf("expected no snapshot for unknown id")
	}

	_, _ = feed.Publish(center)
	hint, err := svc.Hint()
	if err != nil {
		t.Fatalf("hint: %v", err)
	}
	if hint.DistanceM < 249 || hint.DistanceM > 251 || hint.Label != "Nearby" {
		t.Fatalf("unexpected hint %+v", hint)
	}
}

func TestServiceCloseReleasesSubscription(t *testing.T) {
	svc, feed, _ := newTestService(DefaultRules(), nil)
	center := testCenter
	_, _ = svc.Start(context.Background(), StartRequest{Center: &center})

	svc.Close()
	if feed.Subscribers() != 0 {
		t.Fatalf("expected Close to release the subscription")
	}
	svc.Close()
}

var _ LocationProvider = (*location.Feed)(nil)
