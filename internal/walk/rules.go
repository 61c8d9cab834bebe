package walk

import (
	"log"
	"sort"

	"spotwalk/internal/config"
)

const MaxSpots = 50

type Rules struct {
	MinRadiusM              float64
	MaxRadiusM              float64
	DefaultRadiusM          float64
	VisitThresholdM         float64
	ChallengeSeconds        int
	ChallengeSpots          int
	FreeSkipPenalty         int
	ChallengeSkipPenalty    int
	FreeReplaceOnVisit      bool
	ChallengeReplaceOnVisit bool
	RecordTimedOut          bool
}

func DefaultRules() Rules {
	return Rules{
		MinRadiusM:              100,
		MaxRadiusM:              2000,
		DefaultRadiusM:          500,
		VisitThresholdM:         10,
		ChallengeSeconds:        1800,
		ChallengeSpots:          2,
		FreeSkipPenalty:         0,
		ChallengeSkipPenalty:    1,
		FreeReplaceOnVisit:      false,
		ChallengeReplaceOnVisit: true,
		RecordTimedOut:          false,
	}
}

// RulesFromConfig copies the configured tunables, falling back to the
// defaults for values that would leave no walk playable.
func RulesFromConfig(cfg config.Config) Rules {
	def := DefaultRules()
	r := Rules{
		MinRadiusM:              cfg.MinRadiusM,
		MaxRadiusM:              cfg.MaxRadiusM,
		DefaultRadiusM:          cfg.DefaultRadiusM,
		VisitThresholdM:         cfg.VisitThresholdM,
		ChallengeSeconds:        cfg.ChallengeSeconds,
		ChallengeSpots:          cfg.ChallengeSpots,
		FreeSkipPenalty:         cfg.FreeSkipPenalty,
		ChallengeSkipPenalty:    cfg.ChallengeSkipPenalty,
		FreeReplaceOnVisit:      cfg.FreeReplaceOnVisit,
		ChallengeReplaceOnVisit: cfg.ChallengeReplaceOnVisit,
		RecordTimedOut:          cfg.RecordTimedOut,
	}

	if r.MinRadiusM <= 0 || r.MaxRadiusM < r.MinRadiusM {
		log.Printf("walk: radius range [%.0f, %.0f] m unusable, using [%.0f, %.0f]", r.MinRadiusM, r.MaxRadiusM, def.MinRadiusM, def.MaxRadiusM)
		r.MinRadiusM, r.MaxRadiusM = def.MinRadiusM, def.MaxRadiusM
	}
	if r.DefaultRadiusM < r.MinRadiusM || r.DefaultRadiusM > r.MaxRadiusM {
		fallback := def.DefaultRadiusM
		if fallback < r.MinRadiusM || fallback > r.MaxRadiusM {
			fallback = r.MinRadiusM
		}
		log.Printf("walk: default radius %.0f m outside [%.0f, %.0f], using %.0f", r.DefaultRadiusM, r.MinRadiusM, r.MaxRadiusM, fallback)
		r.DefaultRadiusM = fallback
	}
	if r.VisitThresholdM <= 0 {
		log.Printf("walk: visit threshold %.1f m unusable, using %.1f", r.VisitThresholdM, def.VisitThresholdM)
		r.VisitThresholdM = def.VisitThresholdM
	}
	if r.ChallengeSeconds <= 0 {
		log.Printf("walk: challenge time limit %ds unusable, using %ds", r.ChallengeSeconds, def.ChallengeSeconds)
		r.ChallengeSeconds = def.ChallengeSeconds
	}
	if r.ChallengeSpots <= 0 || r.ChallengeSpots > MaxSpots {
		log.Printf("walk: challenge spot count %d outside [1, %d], using %d", r.ChallengeSpots, MaxSpots, def.ChallengeSpots)
		r.ChallengeSpots = def.ChallengeSpots
	}
	if r.FreeSkipPenalty < 0 {
		log.Printf("walk: negative free skip penalty %d, using %d", r.FreeSkipPenalty, def.FreeSkipPenalty)
		r.FreeSkipPenalty = def.FreeSkipPenalty
	}
	if r.ChallengeSkipPenalty < 0 {
		log.Printf("walk: negative challenge skip penalty %d, using %d", r.ChallengeSkipPenalty, def.ChallengeSkipPenalty)
		r.ChallengeSkipPenalty = def.ChallengeSkipPenalty
	}
	return r
}

func (r Rules) skipPenalty(mode Mode) int {
	if mode == ModeChallenge {
		return r.ChallengeSkipPenalty
	}
	return r.FreeSkipPenalty
}

func (r Rules) replaceOnVisit(mode Mode) bool {
	if mode == ModeChallenge {
		return r.ChallengeReplaceOnVisit
	}
	return r.FreeReplaceOnVisit
}

func (r Rules) Presets() []Preset {
	presets := make([]Preset, 0, len(freeSpotCounts)+1)
	for difficulty, count := range freeSpotCounts {
		presets = append(presets, Preset{
			Difficulty:  difficulty,
			Mode:        ModeFree,
			SpotCount:   count,
			SkipPenalty: r.FreeSkipPenalty,
		})
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].SpotCount < presets[j].SpotCount })
	return append(presets, Preset{
		Difficulty:  DifficultyChallenge,
		Mode:        ModeChallenge,
		SpotCount:   r.ChallengeSpots,
		TimeLimitS:  r.ChallengeSeconds,
		SkipPenalty: r.ChallengeSkipPenalty,
	})
}
