package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/securenest/securenest/internal/model"
)

type ChildStore struct {
	db *sql.DB
}

func NewChildStore(db *sql.DB) *ChildStore {
	return &ChildStore{db: db}
}

const childCols = `id, parent_id, family_code, name, age, profile_picture, is_online, last_seen, created_at, updated_at`

func scanChild(scanner interface{ Scan(...any) error }) (*model.Child, error) {
	var c model.Child
	var online int
	var lastSeen sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.ParentID, &c.FamilyCode, &c.Name, &c.Age,
		&c.ProfilePicture, &online, &lastSeen, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.IsOnline = online != 0
	if lastSeen.Valid {
		c.LastSeen = &lastSeen.Time
	}
	return &c, nil
}

func (s *ChildStore) Create(parentID, familyCode, name string, age int, profilePicture string, contacts []model.EmergencyContact) (*model.Child, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin create child: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.Exec(
		`INSERT INTO children (id, parent_id, family_code, name, age, profile_picture) VALUES (?, ?, ?, ?, ?, ?)`,
		id, parentID, familyCode, name, age, profilePicture,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}

	for _, ec := range contacts {
		_, err = tx.Exec(
			`INSERT INTO emergency_contacts (child_id, name, phone_number, relationship) VALUES (?, ?, ?, ?)`,
			id, ec.Name, ec.PhoneNumber, ec.Relationship,
		)
		if err != nil {
			return nil, fmt.Errorf("insert emergency contact: %w", err)
		}
	}

	// The code binds parent and child; the owning parent holds it from
	// creation on.
	_, err = tx.Exec(
		`INSERT INTO parent_family_codes (parent_id, code) VALUES (?, ?)
		 ON CONFLICT(parent_id, code) DO NOTHING`,
		parentID, familyCode,
	)
	if err != nil {
		return nil, fmt.Errorf("bind family code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create child: %w", err)
	}
	return s.GetByID(id)
}

func (s *ChildStore) GetByID(id string) (*model.Child, error) {
	row := s.db.QueryRow(`SELECT `+childCols+` FROM children WHERE id = ?`, id)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child: %w", err)
	}
	if err := s.loadContacts(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetByFamilyCode resolves a family code to its single child. The code is
// the child device's only credential.
func (s *ChildStore) GetByFamilyCode(code string) (*model.Child, error) {
	row := s.db.QueryRow(`SELECT `+childCols+` FROM children WHERE family_code = ?`, code)
	c, err := scanChild(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get child by family code: %w", err)
	}
	if err := s.loadContacts(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ChildStore) ListByParent(parentID string) ([]model.Child, error) {
	rows, err := s.db.Query(`SELECT `+childCols+` FROM children WHERE parent_id = ? ORDER BY created_at`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	defer rows.Close()

	var children []model.Child
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range children {
		if err := s.loadContacts(&children[i]); err != nil {
			return nil, err
		}
	}
	return children, nil
}

// Touch marks the child with the given family code online and refreshes
// last_seen. Unknown codes are ignored.
func (s *ChildStore) Touch(familyCode string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE children SET is_online = 1, last_seen = ?, updated_at = ? WHERE family_code = ?`,
		at.UTC(), at.UTC(), familyCode,
	)
	if err != nil {
		return fmt.Errorf("touch child: %w", err)
	}
	return nil
}

// MarkOffline flags children as offline when last_seen is older than cutoff.
func (s *ChildStore) MarkOffline(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(
		`UPDATE children SET is_online = 0 WHERE is_online = 1 AND (last_seen IS NULL OR last_seen < ?)`,
		cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark children offline: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

func (s *ChildStore) loadContacts(c *model.Child) error {
	rows, err := s.db.Query(
		`SELECT name, phone_number, relationship FROM emergency_contacts WHERE child_id = ? ORDER BY id`,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("load emergency contacts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ec model.EmergencyContact
		if err := rows.Scan(&ec.Name, &ec.PhoneNumber, &ec.Relationship); err != nil {
			return fmt.Errorf("scan emergency contact: %w", err)
		}
		c.EmergencyContacts = append(c.EmergencyContacts, ec)
	}
	return rows.Err()
}
