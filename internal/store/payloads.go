package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// RawPayload is a stored observation API response.
type RawPayload struct {
	ID          int64
	FetchedAt   time.Time
	Endpoint    string
	Location    string
	PayloadHash string
	SizeBytes   int
}

// StoreRawPayload gzips and stores an API response. Identical payloads are
// stored once; the returned id is 0 for a duplicate.
func (s *Store) StoreRawPayload(endpoint, location string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)

	result, err := s.db.Exec(`
		INSERT INTO raw_payloads (fetched_at, endpoint, location, payload_compressed, payload_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, time.Now().UTC(), endpoint, location, buf.Bytes(), hex.EncodeToString(hash[:]))
	if err != nil {
		return 0, fmt.Errorf("insert raw payload: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// GetRawPayload returns the decompressed payload with the given id, or nil if
// there is none.
func (s *Store) GetRawPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_payloads WHERE id = ?`, id).Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// LatestRawPayloads lists the most recent payloads for location, newest first.
func (s *Store) LatestRawPayloads(location string, limit int) ([]RawPayload, error) {
	rows, err := s.db.Query(`
		SELECT id, fetched_at, endpoint, location, payload_hash, LENGTH(payload_compressed)
		FROM raw_payloads
		WHERE location = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, location, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RawPayload
	for rows.Next() {
		var p RawPayload
		if err := rows.Scan(&p.ID, &p.FetchedAt, &p.Endpoint, &p.Location, &p.PayloadHash, &p.SizeBytes); err != nil {
			return nil, err
		}
		p.FetchedAt = p.FetchedAt.In(s.loc)
		out = append(out, p)
	}
	return out, rows.Err()
}

// CleanupOldRawPayloads deletes payloads older than retention and returns how
// many were removed.
func (s *Store) CleanupOldRawPayloads(retention time.Duration) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM raw_payloads WHERE fetched_at < ?`, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
