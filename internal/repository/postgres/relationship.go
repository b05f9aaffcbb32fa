package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hkaraki/herfa/internal/models"
	"github.com/hkaraki/herfa/internal/repository"
)

type RelationshipStore struct {
	pool *pgxpool.Pool
}

func NewRelationshipStore(pool *pgxpool.Pool) *RelationshipStore {
	return &RelationshipStore{pool: pool}
}

func (s *RelationshipStore) Create(ctx context.Context, clientID, specialistID uuid.UUID) (*models.Relationship, error) {
	// The unique index on (client_id, specialist_id) is the duplicate
	// check; two concurrent adds for the same pair resolve to one insert
	// and one 23505.
	query := `
		INSERT INTO relationships (client_id, specialist_id, is_done, created_at)
		VALUES ($1, $2, false, now())
		RETURNING id, client_id, specialist_id, is_done, created_at`

	var r models.Relationship
	err := s.pool.QueryRow(ctx, query, clientID, specialistID).Scan(
		&r.ID,
		&r.ClientID,
		&r.SpecialistID,
		&r.IsDone,
		&r.DateAdded,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("insert relationship: %w", err)
	}
	return &r, nil
}

// ownerColumn maps the acting side to the column that must match the
// acting user. Only client and specialist rows exist in the ledger.
func ownerColumn(side models.Role) string {
	if side == models.RoleSpecialist {
		return "specialist_id"
	}
	return "client_id"
}

func (s *RelationshipStore) Delete(ctx context.Context, relationshipID, owner uuid.UUID, side models.Role) (bool, error) {
	// Id and ownership are checked by the one DELETE, so there is no
	// window where a non-owner can race the check.
	query := fmt.Sprintf(`DELETE FROM relationships WHERE id = $1 AND %s = $2`, ownerColumn(side))

	tag, err := s.pool.Exec(ctx, query, relationshipID, owner)
	if err != nil {
		return false, fmt.Errorf("delete relationship: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *RelationshipStore) SetDone(ctx context.Context, relationshipID, owner uuid.UUID, side models.Role, isDone bool) (bool, error) {
	query := fmt.Sprintf(`UPDATE relationships SET is_done = $3 WHERE id = $1 AND %s = $2`, ownerColumn(side))

	tag, err := s.pool.Exec(ctx, query, relationshipID, owner, isDone)
	if err != nil {
		return false, fmt.Errorf("update relationship status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *RelationshipStore) ListSpecialistsForClient(ctx context.Context, clientID uuid.UUID) ([]models.ManagedContact, error) {
	query := `
		SELECT r.id, r.is_done, r.created_at,
		       u.id, u.fullname, u.governorate, u.district, u.specialty, u.is_available
		FROM relationships r
		JOIN users u ON u.id = r.specialist_id
		WHERE r.client_id = $1
		ORDER BY r.created_at DESC`

	rows, err := s.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("list managed specialists: %w", err)
	}
	defer rows.Close()

	contacts := make([]models.ManagedContact, 0)
	for rows.Next() {
		c := models.ManagedContact{}
		c.Role = models.RoleSpecialist
		var isAvailable *bool
		if err := rows.Scan(
			&c.RelationshipID,
			&c.IsDone,
			&c.DateAdded,
			&c.ID,
			&c.Fullname,
			&c.Governorate,
			&c.District,
			&c.Specialty,
			&isAvailable,
		); err != nil {
			return nil, fmt.Errorf("scan managed specialist: %w", err)
		}
		c.IsAvailable = isAvailable
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate managed specialists: %w", err)
	}
	return contacts, nil
}

func (s *RelationshipStore) ListClientsForSpecialist(ctx context.Context, specialistID uuid.UUID) ([]models.ManagedContact, error) {
	query := `
		SELECT r.id, r.is_done, r.created_at,
		       u.id, u.fullname, u.governorate, u.district, u.needed_specialists
		FROM relationships r
		JOIN users u ON u.id = r.client_id
		WHERE r.specialist_id = $1
		ORDER BY r.created_at DESC`

	rows, err := s.pool.Query(ctx, query, specialistID)
	if err != nil {
		return nil, fmt.Errorf("list managed clients: %w", err)
	}
	defer rows.Close()

	contacts := make([]models.ManagedContact, 0)
	for rows.Next() {
		c := models.ManagedContact{}
		c.Role = models.RoleClient
		var needed []models.NeededSpecialist
		if err := rows.Scan(
			&c.RelationshipID,
			&c.IsDone,
			&c.DateAdded,
			&c.ID,
			&c.Fullname,
			&c.Governorate,
			&c.District,
			&needed,
		); err != nil {
			return nil, fmt.Errorf("scan managed client: %w", err)
		}
		if needed == nil {
			needed = []models.NeededSpecialist{}
		}
		c.NeededSpecialists = needed
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate managed clients: %w", err)
	}
	return contacts, nil
}
