package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/securenest/securenest/internal/model"
)

type GeoFenceStore struct {
	db *sql.DB
}

func NewGeoFenceStore(db *sql.DB) *GeoFenceStore {
	return &GeoFenceStore{db: db}
}

const geofenceCols = `id, parent_id, name, latitude, longitude, radius, is_active, created_at, updated_at`

func scanGeoFence(scanner interface{ Scan(...any) error }) (*model.GeoFence, error) {
	var g model.GeoFence
	var active int

	err := scanner.Scan(
		&g.ID, &g.ParentID, &g.Name, &g.Latitude, &g.Longitude,
		&g.Radius, &active, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.IsActive = active != 0
	return &g, nil
}

func (s *GeoFenceStore) Create(parentID, name string, latitude, longitude, radius float64) (*model.GeoFence, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO geofences (id, parent_id, name, latitude, longitude, radius) VALUES (?, ?, ?, ?, ?, ?)`,
		id, parentID, name, latitude, longitude, radius,
	)
	if err != nil {
		return nil, fmt.Errorf("insert geofence: %w", err)
	}
	return s.GetByID(id)
}

func (s *GeoFenceStore) GetByID(id string) (*model.GeoFence, error) {
	row := s.db.QueryRow(`SELECT `+geofenceCols+` FROM geofences WHERE id = ?`, id)
	g, err := scanGeoFence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get geofence: %w", err)
	}
	return g, nil
}

func (s *GeoFenceStore) ListByParent(parentID string) ([]model.GeoFence, error) {
	rows, err := s.db.Query(`SELECT `+geofenceCols+` FROM geofences WHERE parent_id = ? ORDER BY created_at`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list geofences: %w", err)
	}
	defer rows.Close()
	return collectGeoFences(rows)
}

func (s *GeoFenceStore) List() ([]model.GeoFence, error) {
	rows, err := s.db.Query(`SELECT ` + geofenceCols + ` FROM geofences ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list all geofences: %w", err)
	}
	defer rows.Close()
	return collectGeoFences(rows)
}

func (s *GeoFenceStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM geofences WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete geofence: %w", err)
	}
	return nil
}

func collectGeoFences(rows *sql.Rows) ([]model.GeoFence, error) {
	var fences []model.GeoFence
	for rows.Next() {
		g, err := scanGeoFence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan geofence: %w", err)
		}
		fences = append(fences, *g)
	}
	return fences, rows.Err()
}
