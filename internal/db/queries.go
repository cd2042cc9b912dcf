package db

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/qZheng/sidequests/internal/errors"
)

// GetPref returns the value for key, or ("", false) if the key is absent.
func GetPref(db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRow("SELECT value FROM prefs WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	return value, true, nil
}

// SetPref inserts or replaces the value for key.
func SetPref(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// RemovePref deletes the value for key. Removing an absent key is not an error.
func RemovePref(db *sql.DB, key string) error {
	if _, err := db.Exec("DELETE FROM prefs WHERE key = ?", key); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// PutBlob stores a blob under key in the cross-process shared store.
func PutBlob(db *sql.DB, key string, value []byte) error {
	_, err := db.Exec(`
		INSERT INTO shared_blobs (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetBlob returns the blob stored under key, or (nil, false) if absent.
func GetBlob(db *sql.DB, key string) ([]byte, bool, error) {
	var value []byte
	err := db.QueryRow("SELECT value FROM shared_blobs WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	return value, true, nil
}

// HistoryEntry is one served-prompt record.
type HistoryEntry struct {
	ID       string `json:"id"`
	PromptID string `json:"prompt_id"`
	PackName string `json:"pack_name"`
	ServedAt int64  `json:"served_at"`
}

// AppendHistory records a served prompt. Row ids are ULIDs, giving each
// entry a time-sortable identity independent of the second-granularity
// served_at column.
func AppendHistory(db *sql.DB, promptID, packName string, servedAt time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(servedAt), entropy)
	if err != nil {
		return "", errors.NewInternal(err)
	}

	_, err = db.Exec(`
		INSERT INTO prompt_history (id, prompt_id, pack_name, served_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), promptID, packName, servedAt.Unix())
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id.String(), nil
}

// ListHistory returns the most recent history entries, newest first.
func ListHistory(db *sql.DB, limit int) ([]HistoryEntry, error) {
	rows, err := db.Query(`
		SELECT id, prompt_id, pack_name, served_at
		FROM prompt_history
		ORDER BY served_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.PromptID, &e.PackName, &e.ServedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

// LatestHistory returns the most recent history entry, or nil if empty.
func LatestHistory(db *sql.DB) (*HistoryEntry, error) {
	entries, err := ListHistory(db, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// CountHistory returns the number of history entries.
func CountHistory(db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM prompt_history").Scan(&count); err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

// ClearHistory deletes all history entries and returns the number removed.
func ClearHistory(db *sql.DB) (int, error) {
	res, err := db.Exec("DELETE FROM prompt_history")
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}
