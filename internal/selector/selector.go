package selector

import (
	"database/sql"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/db"
	"github.com/qZheng/sidequests/internal/errors"
	"github.com/qZheng/sidequests/internal/prefs"
	"github.com/qZheng/sidequests/internal/presence"
	"github.com/qZheng/sidequests/internal/quest"
	"github.com/qZheng/sidequests/internal/session"
)

// UnavailableReason says why no prompt could be served. This is an expected
// outcome, not an error: the caller shows an empty state.
type UnavailableReason string

const (
	// ReasonEmptyUniverse means no packs are selected, or favorites mode is
	// active with no favorites.
	ReasonEmptyUniverse UnavailableReason = "emptyUniverse"

	// ReasonFilteredOut means the universe was non-empty but the location
	// and time gates removed every candidate.
	ReasonFilteredOut UnavailableReason = "filteredOut"
)

// Result is the outcome of a selection.
type Result struct {
	Prompt *quest.Prompt     `json:"prompt,omitempty"`
	Reason UnavailableReason `json:"reason,omitempty"`
}

// Available reports whether a prompt was served.
func (r Result) Available() bool { return r.Prompt != nil }

// PresenceSource supplies the tri-state home signal.
type PresenceSource interface {
	Presence() presence.Presence
}

// PhaseSource supplies the current time-of-day bucket.
type PhaseSource interface {
	Current() quest.TimeOfDay
}

// Selector produces the next prompt to display from current session and
// context state. Deterministic given its inputs except for the final pick.
type Selector struct {
	packs    func() []quest.Pack
	session  *session.State
	presence PresenceSource
	phase    PhaseSource
	db       *sql.DB
	log      *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Options tunes selector construction.
type Options struct {
	// Rand overrides the random source; tests pass a seeded one.
	Rand *rand.Rand
}

// New creates a selector. packs must return the current catalog snapshot.
func New(packs func() []quest.Pack, sess *session.State, pres PresenceSource, phase PhaseSource, database *sql.DB, log *zap.Logger, opts Options) *Selector {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		packs:    packs,
		session:  sess,
		presence: pres,
		phase:    phase,
		db:       database,
		log:      log,
		rng:      rng,
	}
}

// Next narrows the prompt universe through the context gates and serves one
// candidate uniformly at random, recording it in the session history and
// publishing it to the shared blob store.
func (s *Selector) Next() (Result, error) {
	snap := s.session.Snapshot()
	packs := s.packs()

	universe := s.universe(packs, snap)
	if len(universe) == 0 {
		return Result{Reason: ReasonEmptyUniverse}, nil
	}

	candidates := universe
	if s.session.UseLocationFiltering() {
		candidates = locationGate(candidates, s.presence.Presence())
	}
	if s.session.FilterByTimeOfDay() {
		candidates = timeGate(candidates, s.phase.Current())
	}
	if len(candidates) == 0 {
		return Result{Reason: ReasonFilteredOut}, nil
	}

	// Avoid an immediate repeat unless it would leave nothing to show.
	final := antiRepeat(candidates, snap.LastShownID)

	s.rngMu.Lock()
	pick := final[s.rng.Intn(len(final))]
	s.rngMu.Unlock()

	now := time.Now()
	s.session.RecordServed(pick, now)
	if err := s.publish(pick, now); err != nil {
		// The prompt was served; a failed widget publish is logged, not fatal.
		s.log.Error("failed to publish latest prompt", zap.Error(err))
	}

	s.log.Debug("served prompt",
		zap.String("prompt_id", pick.ID.String()),
		zap.String("pack", pick.PackName))
	return Result{Prompt: &pick}, nil
}

// universe selects the candidate prompt pool from the active selection.
func (s *Selector) universe(packs []quest.Pack, snap session.Snapshot) []quest.Prompt {
	if snap.FavoritesMode {
		var favorites []quest.Prompt
		for _, pack := range packs {
			for _, p := range pack.Prompts {
				if snap.FavoritePromptIDs[p.ID] {
					favorites = append(favorites, p)
				}
			}
		}
		return favorites
	}

	var prompts []quest.Prompt
	for _, pack := range packs {
		if snap.ActivePackIDs[pack.ID] {
			prompts = append(prompts, pack.Prompts...)
		}
	}
	return prompts
}

// locationGate keeps prompts compatible with the known presence. With
// presence unknown only context-free prompts pass; a home/away-specific
// prompt is never shown without knowing where the user is.
func locationGate(prompts []quest.Prompt, p presence.Presence) []quest.Prompt {
	kept := prompts[:0:0]
	for _, prompt := range prompts {
		switch prompt.Metadata.LocationContext {
		case quest.LocationAny:
			kept = append(kept, prompt)
		case quest.LocationHome:
			if p == presence.PresenceAtHome {
				kept = append(kept, prompt)
			}
		case quest.LocationNotHome:
			if p == presence.PresenceAway {
				kept = append(kept, prompt)
			}
		}
	}
	return kept
}

// timeGate keeps prompts whose metadata admits the current bucket.
func timeGate(prompts []quest.Prompt, bucket quest.TimeOfDay) []quest.Prompt {
	kept := prompts[:0:0]
	for _, prompt := range prompts {
		if prompt.Metadata.AppliesAt(bucket) {
			kept = append(kept, prompt)
		}
	}
	return kept
}

// antiRepeat excludes the immediately preceding prompt, waiving the
// exclusion when it would empty the candidate set.
func antiRepeat(prompts []quest.Prompt, lastShown uuid.UUID) []quest.Prompt {
	if lastShown == uuid.Nil {
		return prompts
	}
	kept := prompts[:0:0]
	for _, prompt := range prompts {
		if prompt.ID != lastShown {
			kept = append(kept, prompt)
		}
	}
	if len(kept) == 0 {
		return prompts
	}
	return kept
}

// publish mirrors the served prompt into the shared blob store for the
// widget surface.
func (s *Selector) publish(p quest.Prompt, at time.Time) error {
	data, err := json.Marshal(quest.Served(p, at.Unix()))
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.PutBlob(s.db, prefs.LatestPromptBlobKey, data)
}

// Latest reads the most recently published prompt from the shared blob
// store. ok is false when nothing has been served yet.
func Latest(database *sql.DB) (quest.ServedPrompt, bool, error) {
	data, ok, err := db.GetBlob(database, prefs.LatestPromptBlobKey)
	if err != nil || !ok {
		return quest.ServedPrompt{}, false, err
	}
	var served quest.ServedPrompt
	if err := json.Unmarshal(data, &served); err != nil {
		return quest.ServedPrompt{}, false, errors.NewInternal(err)
	}
	return served, true, nil
}
