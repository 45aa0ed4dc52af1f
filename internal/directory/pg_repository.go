package directory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrOwnerNotFound    = errors.New("owner not found")
	ErrPetNotFound      = errors.New("pet not found")
)

// DB is the slice of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

// NewPgRepositoryWithDB allows injecting mocks for tests.
func NewPgRepositoryWithDB(db DB) *PgRepository {
	return &PgRepository{db: db}
}

func (r *PgRepository) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	var p Provider
	err := r.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, specialty, created_at, updated_at
		FROM provider
		WHERE id = $1
	`, id).Scan(&p.ID, &p.ClinicID, &p.Name, &p.Specialty, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) GetOwner(ctx context.Context, id uuid.UUID) (*Owner, error) {
	var o Owner
	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM owner
		WHERE id = $1
	`, id).Scan(&o.ID, &o.Name, &o.Email, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *PgRepository) GetPet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	var p Pet
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, name, species, created_at, updated_at
		FROM pet
		WHERE id = $1
	`, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPetNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListProviders returns every bookable provider, the list a wizard
// consumer picks from before starting a session.
func (r *PgRepository) ListProviders(ctx context.Context) ([]Provider, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, clinic_id, name, specialty, created_at, updated_at
		FROM provider
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.ClinicID, &p.Name, &p.Specialty, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, rows.Err()
}

// ListPetsByOwner backs the booking wizard's pet picker.
func (r *PgRepository) ListPetsByOwner(ctx context.Context, ownerID uuid.UUID) ([]Pet, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, owner_id, name, species, created_at, updated_at
		FROM pet
		WHERE owner_id = $1
		ORDER BY name
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pets []Pet
	for rows.Next() {
		var p Pet
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		pets = append(pets, p)
	}
	return pets, rows.Err()
}
