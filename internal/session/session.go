package session

import (
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qZheng/sidequests/internal/db"
	"github.com/qZheng/sidequests/internal/prefs"
	"github.com/qZheng/sidequests/internal/quest"
)

// State is the process-wide mutable session aggregate: active pack selection,
// favorites, and the last-served prompt. It is loaded lazily from the
// preference store on first access and mirrors every mutation back to it.
//
// Compound transitions (the favorites toggle in particular) run inside a
// single critical section, so a concurrent reader never observes activePackIDs
// changed without lastActivePackIDs.
type State struct {
	mu    sync.Mutex
	store *prefs.Store
	db    *sql.DB
	log   *zap.Logger

	loaded     bool
	active     map[uuid.UUID]bool
	lastActive map[uuid.UUID]bool
	favorites  map[uuid.UUID]bool
	lastShown  uuid.UUID // uuid.Nil when nothing has been served yet
}

// Snapshot is a consistent copy of the session state for readers.
type Snapshot struct {
	ActivePackIDs     map[uuid.UUID]bool
	LastActivePackIDs map[uuid.UUID]bool
	FavoritePromptIDs map[uuid.UUID]bool
	LastShownID       uuid.UUID
	FavoritesMode     bool
	MaxDuration       int
	SelectedTheme     string
}

// New creates a session backed by the given preference store and database.
func New(store *prefs.Store, database *sql.DB, log *zap.Logger) *State {
	return &State{store: store, db: database, log: log}
}

// ensureLoaded populates the aggregate from persisted preferences.
// Callers must hold s.mu.
func (s *State) ensureLoaded() {
	if s.loaded {
		return
	}
	s.active = s.store.UUIDSet(prefs.KeyActivePackIDs)
	s.lastActive = s.store.UUIDSet(prefs.KeyLastActivePackIDs)
	s.favorites = s.store.UUIDSet(prefs.KeyFavoritePromptIDs)

	// Seed lastShown from the most recent persisted history entry so
	// anti-repeat holds across restarts.
	if latest, err := db.LatestHistory(s.db); err == nil && latest != nil {
		if id, err := uuid.Parse(latest.PromptID); err == nil {
			s.lastShown = id
		}
	}
	s.loaded = true
}

// Snapshot returns a copy of the current session state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	return Snapshot{
		ActivePackIDs:     copySet(s.active),
		LastActivePackIDs: copySet(s.lastActive),
		FavoritePromptIDs: copySet(s.favorites),
		LastShownID:       s.lastShown,
		FavoritesMode:     s.favoritesModeLocked(),
		MaxDuration:       s.store.Int(prefs.KeyMaxDuration, 15),
		SelectedTheme:     s.store.String(prefs.KeySelectedTheme, "system"),
	}
}

// favoritesModeLocked reports whether the Favorites pseudo-pack is the
// current selection. Callers must hold s.mu.
func (s *State) favoritesModeLocked() bool {
	return len(s.active) == 1 && s.active[quest.FavoritesPackID]
}

// TogglePack flips the given pack's membership in the active selection.
//
// Toggling the Favorites sentinel saves the current selection and replaces it
// with favorites mode; toggling it again restores the saved selection.
// Toggling an ordinary pack while favorites mode is active exits favorites
// mode in the same transition.
func (s *State) TogglePack(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	if id == quest.FavoritesPackID {
		if s.active[quest.FavoritesPackID] {
			s.active = copySet(s.lastActive)
		} else {
			s.lastActive = copySet(s.active)
			s.active = map[uuid.UUID]bool{quest.FavoritesPackID: true}
		}
	} else {
		if s.active[id] {
			delete(s.active, id)
		} else {
			s.active[id] = true
		}
		delete(s.active, quest.FavoritesPackID)
	}

	s.persistPacksLocked()
}

// SetActivePacks replaces the active selection outright.
func (s *State) SetActivePacks(ids []uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	s.active = make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		s.active[id] = true
	}
	s.persistPacksLocked()
}

// ToggleFavorite flips a prompt's favorite status and reports the new state.
func (s *State) ToggleFavorite(promptID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	var nowFavorite bool
	if s.favorites[promptID] {
		delete(s.favorites, promptID)
	} else {
		s.favorites[promptID] = true
		nowFavorite = true
	}

	if err := s.store.SetUUIDSet(prefs.KeyFavoritePromptIDs, s.favorites); err != nil {
		s.log.Error("failed to persist favorites", zap.Error(err))
	}
	return nowFavorite
}

// IsFavorite reports whether the prompt is currently favorited.
func (s *State) IsFavorite(promptID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()
	return s.favorites[promptID]
}

// RecordServed appends the prompt to the persisted history and marks it as
// the last-shown prompt for anti-repeat.
func (s *State) RecordServed(p quest.Prompt, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	s.lastShown = p.ID
	if _, err := db.AppendHistory(s.db, p.ID.String(), p.PackName, at); err != nil {
		s.log.Error("failed to append prompt history", zap.Error(err))
	}
}

// History returns the most recent served-prompt records, newest first.
func (s *State) History(limit int) ([]db.HistoryEntry, error) {
	return db.ListHistory(s.db, limit)
}

// ClearHistory wipes the served-prompt history and the last-shown marker.
func (s *State) ClearHistory() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded()

	s.lastShown = uuid.Nil
	return db.ClearHistory(s.db)
}

// SetMaxDuration stores the maximum-duration preference.
func (s *State) SetMaxDuration(minutes int) error {
	return s.store.SetInt(prefs.KeyMaxDuration, minutes)
}

// SetTheme stores the selected theme preference.
func (s *State) SetTheme(theme string) error {
	return s.store.SetString(prefs.KeySelectedTheme, theme)
}

// UseLocationFiltering reports whether the location gate is enabled.
// Enabled by default, matching the settings surface.
func (s *State) UseLocationFiltering() bool {
	return s.store.Bool(prefs.KeyUseLocationFiltering, true)
}

// SetUseLocationFiltering stores the location gate toggle.
func (s *State) SetUseLocationFiltering(on bool) error {
	return s.store.SetBool(prefs.KeyUseLocationFiltering, on)
}

// FilterByTimeOfDay reports whether the time-of-day gate is enabled.
func (s *State) FilterByTimeOfDay() bool {
	return s.store.Bool(prefs.KeyFilterByTimeOfDay, true)
}

// SetFilterByTimeOfDay stores the time-of-day gate toggle.
func (s *State) SetFilterByTimeOfDay(on bool) error {
	return s.store.SetBool(prefs.KeyFilterByTimeOfDay, on)
}

// persistPacksLocked mirrors both pack-id sets to the preference store.
// Callers must hold s.mu.
func (s *State) persistPacksLocked() {
	if err := s.store.SetUUIDSet(prefs.KeyActivePackIDs, s.active); err != nil {
		s.log.Error("failed to persist active packs", zap.Error(err))
	}
	if err := s.store.SetUUIDSet(prefs.KeyLastActivePackIDs, s.lastActive); err != nil {
		s.log.Error("failed to persist last active packs", zap.Error(err))
	}
}

func copySet(src map[uuid.UUID]bool) map[uuid.UUID]bool {
	dst := make(map[uuid.UUID]bool, len(src))
	for id := range src {
		dst[id] = true
	}
	return dst
}
