package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/securenest/securenest/internal/model"
)

type ParentStore struct {
	db *sql.DB
}

func NewParentStore(db *sql.DB) *ParentStore {
	return &ParentStore{db: db}
}

const parentCols = `id, clerk_id, email, first_name, last_name, phone_number, profile_picture, is_verified, status, created_at, updated_at`

func scanParent(scanner interface{ Scan(...any) error }) (*model.Parent, error) {
	var p model.Parent
	var verified int

	err := scanner.Scan(
		&p.ID, &p.ClerkID, &p.Email, &p.FirstName, &p.LastName,
		&p.PhoneNumber, &p.ProfilePicture, &verified, &p.Status,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.IsVerified = verified != 0
	return &p, nil
}

func (s *ParentStore) Create(clerkID, email, firstName, lastName string) (*model.Parent, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO parents (id, clerk_id, email, first_name, last_name) VALUES (?, ?, ?, ?, ?)`,
		id, clerkID, email, firstName, lastName,
	)
	if err != nil {
		return nil, fmt.Errorf("insert parent: %w", err)
	}
	return s.GetByID(id)
}

func (s *ParentStore) GetByID(id string) (*model.Parent, error) {
	row := s.db.QueryRow(`SELECT `+parentCols+` FROM parents WHERE id = ?`, id)
	p, err := scanParent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get parent: %w", err)
	}
	if err := s.loadFamilyCodes(p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByClerkID resolves the external identity-provider id to the parent
// record, family codes included.
func (s *ParentStore) GetByClerkID(clerkID string) (*model.Parent, error) {
	row := s.db.QueryRow(`SELECT `+parentCols+` FROM parents WHERE clerk_id = ?`, clerkID)
	p, err := scanParent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get parent by clerk id: %w", err)
	}
	if err := s.loadFamilyCodes(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddFamilyCode associates a family code with a parent. Adding a code the
// parent already holds is a no-op.
func (s *ParentStore) AddFamilyCode(parentID, code string) error {
	_, err := s.db.Exec(
		`INSERT INTO parent_family_codes (parent_id, code) VALUES (?, ?)
		 ON CONFLICT(parent_id, code) DO NOTHING`,
		parentID, code,
	)
	if err != nil {
		return fmt.Errorf("add family code: %w", err)
	}
	return nil
}

// ListByFamilyCode returns every parent holding the given code, co-parents
// and siblings' parents included. Used for server-side SOS fan-out.
func (s *ParentStore) ListByFamilyCode(code string) ([]model.Parent, error) {
	rows, err := s.db.Query(
		`SELECT `+parentCols+` FROM parents
		 WHERE id IN (SELECT parent_id FROM parent_family_codes WHERE code = ?)`,
		code,
	)
	if err != nil {
		return nil, fmt.Errorf("list parents by family code: %w", err)
	}

	// Drain the cursor before loading codes; nested queries on a still-open
	// cursor need a second pool connection, which an in-memory database
	// does not have.
	var parents []model.Parent
	for rows.Next() {
		p, err := scanParent(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan parent: %w", err)
		}
		parents = append(parents, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list parents by family code: %w", err)
	}
	rows.Close()

	for i := range parents {
		if err := s.loadFamilyCodes(&parents[i]); err != nil {
			return nil, err
		}
	}
	return parents, nil
}

func (s *ParentStore) loadFamilyCodes(p *model.Parent) error {
	rows, err := s.db.Query(`SELECT code FROM parent_family_codes WHERE parent_id = ? ORDER BY code`, p.ID)
	if err != nil {
		return fmt.Errorf("load family codes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return fmt.Errorf("scan family code: %w", err)
		}
		p.FamilyCodes = append(p.FamilyCodes, code)
	}
	return rows.Err()
}
