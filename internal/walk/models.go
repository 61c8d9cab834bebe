package walk

import (
	"time"

	"spotwalk/internal/history"
	"spotwalk/internal/shared/geo"
	"spotwalk/internal/spot"
)

type Mode string

const (
	ModeFree      Mode = "free"
	ModeChallenge Mode = "challenge"
)

type State string

const (
	StateConfiguring State = "configuring"
	StateActive      State = "active"
	StateCompleted   State = "completed"
	StateTimedOut    State = "timed_out"
	StateQuit        State = "quit"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTimedOut || s == StateQuit
}

const (
	DifficultyEasy      = "Easy"
	DifficultyMedium    = "Medium"
	DifficultyHard      = "Hard"
	DifficultyCustom    = "Custom"
	DifficultyChallenge = "Challenge"
)

var freeSpotCounts = map[string]int{
	DifficultyEasy:   3,
	DifficultyMedium: 5,
	DifficultyHard:   10,
}

type Preset struct {
	Difficulty  string `json:"difficulty"`
	Mode        Mode   `json:"mode"`
	SpotCount   int    `json:"spot_count"`
	TimeLimitS  int    `json:"time_limit_s,omitempty"`
	SkipPenalty int    `json:"skip_penalty"`
}

type StartRequest struct {
	Center     *geo.Coordinate `json:"center"`
	RadiusM    float64         `json:"radius_m"`
	Mode       Mode            `json:"mode"`
	Difficulty string          `json:"difficulty"`
	SpotCount  int             `json:"spot_count"`
}

type Update struct {
	Visited    []spot.Spot     `json:"visited,omitempty"`
	Replaced   []spot.Spot     `json:"replaced,omitempty"`
	Awarded    int             `json:"awarded"`
	Ticked     bool            `json:"ticked,omitempty"`
	Transition State           `json:"transition,omitempty"`
	Record     *history.Record `json:"record,omitempty"`
}

func (u Update) Changed() bool {
	return len(u.Visited) > 0 || len(u.Replaced) > 0 || u.Ticked || u.Transition != ""
}

type Snapshot struct {
	ID            string          `json:"id"`
	Generation    uint64          `json:"generation"`
	State         State           `json:"state"`
	Mode          Mode            `json:"mode"`
	Difficulty    string          `json:"difficulty"`
	Center        geo.Coordinate  `json:"center"`
	RadiusM       float64         `json:"radius_m"`
	Spots         []spot.Spot     `json:"spots"`
	Retired       []spot.Spot     `json:"retired,omitempty"`
	Points        int             `json:"points"`
	VisitedCount  int             `json:"visited_count"`
	TimeRemaining int             `json:"time_remaining,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	EndedAt       *time.Time      `json:"ended_at,omitempty"`
	Record        *history.Record `json:"record,omitempty"`
}

type Event struct {
	Type    string   `json:"type"`
	Update  Update   `json:"update"`
	Session Snapshot `json:"session"`
}

type Hint struct {
	SpotID    string  `json:"spot_id"`
	DistanceM float64 `json:"distance_m"`
	Progress  float64 `json:"progress"`
	Label     string  `json:"label"`
}
