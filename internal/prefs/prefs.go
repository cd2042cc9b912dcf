package prefs

import (
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/google/uuid"

	"github.com/qZheng/sidequests/internal/db"
	"github.com/qZheng/sidequests/internal/errors"
	"github.com/qZheng/sidequests/internal/quest"
)

// Preference keys. These mirror the keys the engine persists between runs.
const (
	KeyHomeLocation         = "homeLocation"
	KeyUseLocationFiltering = "useLocationFiltering"
	KeyFilterByTimeOfDay    = "filterByTimeOfDay"
	KeyActivePackIDs        = "activePackIDs"
	KeyLastActivePackIDs    = "lastActivePackIDs"
	KeyFavoritePromptIDs    = "favoritePromptIDs"
	KeyMaxDuration          = "maxDurationPreference"
	KeySelectedTheme        = "selectedTheme"
)

// LatestPromptBlobKey names the shared blob holding the last served prompt.
const LatestPromptBlobKey = "latestPrompt"

// Store provides typed access to the persisted key-value preferences.
type Store struct {
	db *sql.DB
}

// NewStore wraps the given database in a preference store.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

// Bool returns the boolean stored under key, or fallback if absent or unparseable.
func (s *Store) Bool(key string, fallback bool) bool {
	value, ok, err := db.GetPref(s.db, key)
	if err != nil || !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

// SetBool stores a boolean under key.
func (s *Store) SetBool(key string, value bool) error {
	return db.SetPref(s.db, key, strconv.FormatBool(value))
}

// Int returns the integer stored under key, or fallback if absent or unparseable.
func (s *Store) Int(key string, fallback int) int {
	value, ok, err := db.GetPref(s.db, key)
	if err != nil || !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// SetInt stores an integer under key.
func (s *Store) SetInt(key string, value int) error {
	return db.SetPref(s.db, key, strconv.Itoa(value))
}

// String returns the string stored under key, or fallback if absent.
func (s *Store) String(key, fallback string) string {
	value, ok, err := db.GetPref(s.db, key)
	if err != nil || !ok {
		return fallback
	}
	return value
}

// SetString stores a string under key.
func (s *Store) SetString(key, value string) error {
	return db.SetPref(s.db, key, value)
}

// UUIDSet returns the id set stored under key. Absent or malformed values
// yield an empty set.
func (s *Store) UUIDSet(key string) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool)
	value, ok, err := db.GetPref(s.db, key)
	if err != nil || !ok {
		return set
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(value), &ids); err != nil {
		return set
	}
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// SetUUIDSet stores an id set under key as a JSON array.
func (s *Store) SetUUIDSet(key string, set map[uuid.UUID]bool) error {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.SetPref(s.db, key, string(data))
}

// Coordinate returns the coordinate stored under key, or (zero, false) if
// absent or malformed. A malformed value is removed so it cannot shadow the
// absent state on later reads.
func (s *Store) Coordinate(key string) (quest.Coordinate, bool) {
	value, ok, err := db.GetPref(s.db, key)
	if err != nil || !ok {
		return quest.Coordinate{}, false
	}
	var coord quest.Coordinate
	if err := json.Unmarshal([]byte(value), &coord); err != nil {
		_ = db.RemovePref(s.db, key)
		return quest.Coordinate{}, false
	}
	return coord, true
}

// SetCoordinate stores a coordinate under key.
func (s *Store) SetCoordinate(key string, coord quest.Coordinate) error {
	data, err := json.Marshal(coord)
	if err != nil {
		return errors.NewInternal(err)
	}
	return db.SetPref(s.db, key, string(data))
}

// Remove deletes the value under key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	return db.RemovePref(s.db, key)
}
