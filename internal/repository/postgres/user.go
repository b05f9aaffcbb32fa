package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hkaraki/herfa/internal/models"
	"github.com/hkaraki/herfa/internal/repository"
)

// pgUniqueViolation is the Postgres error code for a unique constraint hit.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, fullname, password_hash, role, governorate, district, specialty, is_available, needed_specialists, created_at, updated_at`

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	// Role-specific columns stay NULL for roles they don't apply to; the
	// variant structs on models.User are the only source of their values.
	var specialty, governorate, district *string
	var isAvailable *bool
	var needed any

	if u.Governorate != "" {
		governorate = &u.Governorate
	}
	if u.District != "" {
		district = &u.District
	}
	if u.Specialist != nil {
		specialty = &u.Specialist.Specialty
		isAvailable = &u.Specialist.IsAvailable
	}
	if u.Client != nil {
		list := u.Client.NeededSpecialists
		if list == nil {
			list = []models.NeededSpecialist{}
		}
		needed = list
	}

	query := `
		INSERT INTO users (fullname, password_hash, role, governorate, district, specialty, is_available, needed_specialists, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		u.Fullname, u.PasswordHash, u.Role, governorate, district, specialty, isAvailable, needed,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *UserStore) GetByFullname(ctx context.Context, fullname string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE fullname = $1`, fullname)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var governorate, district, specialty *string
	var isAvailable *bool
	var needed []models.NeededSpecialist

	err := row.Scan(
		&u.ID,
		&u.Fullname,
		&u.PasswordHash,
		&u.Role,
		&governorate,
		&district,
		&specialty,
		&isAvailable,
		&needed,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if governorate != nil {
		u.Governorate = *governorate
	}
	if district != nil {
		u.District = *district
	}
	switch u.Role {
	case models.RoleSpecialist:
		p := &models.SpecialistProfile{}
		if specialty != nil {
			p.Specialty = *specialty
		}
		if isAvailable != nil {
			p.IsAvailable = *isAvailable
		}
		u.Specialist = p
	case models.RoleClient:
		if needed == nil {
			needed = []models.NeededSpecialist{}
		}
		u.Client = &models.ClientProfile{NeededSpecialists: needed}
	}
	return &u, nil
}

func (s *UserStore) ListSpecialists(ctx context.Context, f repository.SpecialistFilter) ([]models.PublicUser, error) {
	query := `
		SELECT id, fullname, governorate, district, specialty, is_available
		FROM users
		WHERE role = 'specialist'`
	args := []any{}

	if f.Governorate != "" {
		args = append(args, f.Governorate)
		query += fmt.Sprintf(" AND governorate = $%d", len(args))
	}
	if f.District != "" {
		args = append(args, f.District)
		query += fmt.Sprintf(" AND district = $%d", len(args))
	}
	if f.Specialty != "" {
		args = append(args, f.Specialty)
		query += fmt.Sprintf(" AND specialty = $%d", len(args))
	}
	if f.IsAvailable != nil {
		args = append(args, *f.IsAvailable)
		query += fmt.Sprintf(" AND is_available = $%d", len(args))
	}
	query += " ORDER BY fullname"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list specialists: %w", err)
	}
	defer rows.Close()

	specialists := make([]models.PublicUser, 0)
	for rows.Next() {
		p := models.PublicUser{Role: models.RoleSpecialist}
		var isAvailable *bool
		if err := rows.Scan(&p.ID, &p.Fullname, &p.Governorate, &p.District, &p.Specialty, &isAvailable); err != nil {
			return nil, fmt.Errorf("scan specialist: %w", err)
		}
		p.IsAvailable = isAvailable
		specialists = append(specialists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate specialists: %w", err)
	}
	return specialists, nil
}

func (s *UserStore) ListClients(ctx context.Context, f repository.ClientFilter) ([]models.PublicUser, error) {
	query := `
		SELECT id, fullname, governorate, district, needed_specialists
		FROM users
		WHERE role = 'client'`
	args := []any{}

	if f.Governorate != "" {
		args = append(args, f.Governorate)
		query += fmt.Sprintf(" AND governorate = $%d", len(args))
	}
	if f.District != "" {
		args = append(args, f.District)
		query += fmt.Sprintf(" AND district = $%d", len(args))
	}
	if f.WantsSpecialty != "" {
		// jsonb containment: matches clients whose needed list has this
		// specialty with isNeeded=true.
		args = append(args, []models.NeededSpecialist{{Name: f.WantsSpecialty, IsNeeded: true}})
		query += fmt.Sprintf(" AND needed_specialists @> $%d", len(args))
	}
	query += " ORDER BY fullname"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]models.PublicUser, 0)
	for rows.Next() {
		p := models.PublicUser{Role: models.RoleClient}
		var needed []models.NeededSpecialist
		if err := rows.Scan(&p.ID, &p.Fullname, &p.Governorate, &p.District, &needed); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		if needed == nil {
			needed = []models.NeededSpecialist{}
		}
		p.NeededSpecialists = needed
		clients = append(clients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clients: %w", err)
	}
	return clients, nil
}

func (s *UserStore) UpdateAvailability(ctx context.Context, userID uuid.UUID, isAvailable bool) (bool, error) {
	// The role predicate rides in the statement; zero rows affected means
	// the account is gone or is not a specialist.
	query := `
		UPDATE users
		SET is_available = $2, updated_at = now()
		WHERE id = $1 AND role = 'specialist'`

	tag, err := s.pool.Exec(ctx, query, userID, isAvailable)
	if err != nil {
		return false, fmt.Errorf("update availability: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *UserStore) UpdateNeededSpecialists(ctx context.Context, userID uuid.UUID, list []models.NeededSpecialist) (bool, error) {
	if list == nil {
		list = []models.NeededSpecialist{}
	}
	query := `
		UPDATE users
		SET needed_specialists = $2, updated_at = now()
		WHERE id = $1 AND role = 'client'`

	tag, err := s.pool.Exec(ctx, query, userID, list)
	if err != nil {
		return false, fmt.Errorf("update needed specialists: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
