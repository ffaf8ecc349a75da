package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/securenest/securenest/internal/model"
)

// HistoryStore persists the location trail assembled from relay traffic.
// Entries are keyed by family code, not child id, so forged or unknown codes
// never create rows (the tap only appends for codes that resolve to a child).
type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func (s *HistoryStore) Append(familyCode string, latitude, longitude float64, ts time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO location_history (family_code, latitude, longitude, timestamp) VALUES (?, ?, ?, ?)`,
		familyCode, latitude, longitude, ts.UTC(),
	)
	if err != nil {
		return fmt.Errorf("append location: %w", err)
	}
	return nil
}

// ListRecent returns up to limit points for a family code, newest first.
func (s *HistoryStore) ListRecent(familyCode string, limit int) ([]model.LocationPoint, error) {
	rows, err := s.db.Query(
		`SELECT id, family_code, latitude, longitude, timestamp
		 FROM location_history WHERE family_code = ?
		 ORDER BY timestamp DESC LIMIT ?`,
		familyCode, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list location history: %w", err)
	}
	defer rows.Close()

	var points []model.LocationPoint
	for rows.Next() {
		var p model.LocationPoint
		if err := rows.Scan(&p.ID, &p.FamilyCode, &p.Latitude, &p.Longitude, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan location point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// DeleteOlderThan prunes the trail and returns the number of rows removed.
func (s *HistoryStore) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM location_history WHERE timestamp < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune location history: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
