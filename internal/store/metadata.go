package store

import (
	"database/sql"
)

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// RecordDeckHash stores the content hash of a deck file and reports whether
// it differs from the hash recorded on the previous run. The first recording
// of a path is not a change.
func (s *Store) RecordDeckHash(path, hash string) (changed bool, err error) {
	key := "deck_hash:" + path
	prev, err := s.GetMetadata(key)
	if err != nil {
		return false, err
	}
	if prev == hash {
		return false, nil
	}
	if err := s.SetMetadata(key, hash); err != nil {
		return false, err
	}
	return prev != "", nil
}
