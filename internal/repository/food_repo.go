package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

type FoodRepo struct {
	db *pgxpool.Pool
}

func NewFoodRepo(db *pgxpool.Pool) *FoodRepo {
	return &FoodRepo{db: db}
}

const foodCols = `id, creator_id, restaurant_name, restaurant_address, minimum_basket,
	current_total, max_members, delivery_lat, delivery_lng, delivery_address,
	delivery_time, status, notes, created_at, updated_at`

func scanFood(row pgx.Row) (*domain.FoodCluster, error) {
	var c domain.FoodCluster
	err := row.Scan(&c.ID, &c.CreatorID, &c.RestaurantName, &c.RestaurantAddr,
		&c.MinimumBasket, &c.CurrentTotal, &c.MaxMembers,
		&c.DeliveryLocation.Lat, &c.DeliveryLocation.Lng, &c.DeliveryAddress,
		&c.DeliveryTime, &c.Status, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrClusterNotFound
		}
		return nil, err
	}
	return &c, nil
}

func loadFoodMembers(ctx context.Context, q querier, c *domain.FoodCluster) error {
	rows, err := q.Query(ctx, `
		SELECT user_id, order_amount, items, joined_at, has_collected, collected_at
		FROM food_members WHERE cluster_id=$1 ORDER BY joined_at ASC
	`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	c.Members = c.Members[:0]
	for rows.Next() {
		var m domain.FoodMember
		if err := rows.Scan(&m.UserID, &m.OrderAmount, &m.Items, &m.JoinedAt, &m.HasCollected, &m.CollectedAt); err != nil {
			return err
		}
		c.Members = append(c.Members, m)
	}
	return rows.Err()
}

func (r *FoodRepo) Create(ctx context.Context, c *domain.FoodCluster) error {
	if err := c.Validate(); err != nil {
		return err
	}
	now := time.Now()
	c.Status = domain.FoodOpen
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.db.Exec(ctx, `
		INSERT INTO food_clusters (`+foodCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, c.ID, c.CreatorID, c.RestaurantName, c.RestaurantAddr, c.MinimumBasket,
		c.CurrentTotal, c.MaxMembers, c.DeliveryLocation.Lat, c.DeliveryLocation.Lng,
		c.DeliveryAddress, c.DeliveryTime, c.Status, c.Notes, c.CreatedAt, c.UpdatedAt)
	return err
}

func (r *FoodRepo) GetByID(ctx context.Context, id string) (*domain.FoodCluster, error) {
	c, err := scanFood(r.db.QueryRow(ctx, `SELECT `+foodCols+` FROM food_clusters WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadFoodMembers(ctx, r.db, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *FoodRepo) List(ctx context.Context, status string, limit, offset int) ([]domain.FoodCluster, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM food_clusters WHERE ($1 = '' OR status = $1)
	`, status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+foodCols+` FROM food_clusters
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.collect(ctx, rows, total)
}

func (r *FoodRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.FoodCluster, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM food_clusters c
		WHERE c.creator_id = $1 OR EXISTS (
			SELECT 1 FROM food_members m WHERE m.cluster_id = c.id AND m.user_id = $1)
	`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+foodCols+` FROM food_clusters c
		WHERE c.creator_id = $1 OR EXISTS (
			SELECT 1 FROM food_members m WHERE m.cluster_id = c.id AND m.user_id = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.collect(ctx, rows, total)
}

// Nearby runs a fresh Haversine query ordered by ascending distance from the
// point. Restartable: every call re-evaluates against current data.
func (r *FoodRepo) Nearby(ctx context.Context, p geo.Point, radiusKm float64, limit, offset int) ([]domain.FoodCluster, int, error) {
	if !p.Valid() {
		return nil, 0, xerrors.Validation("coordinates are out of range")
	}
	const near = `
		WITH near AS (
			SELECT ` + foodCols + `,
				(6371 * acos(least(1.0,
					cos(radians($1)) * cos(radians(delivery_lat)) *
					cos(radians(delivery_lng) - radians($2)) +
					sin(radians($1)) * sin(radians(delivery_lat))
				))) AS distance_km
			FROM food_clusters
			WHERE status IN ('open', 'filled')
		)
		SELECT ` + foodCols + ` FROM near WHERE distance_km <= $3
		ORDER BY distance_km ASC LIMIT $4 OFFSET $5`

	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM food_clusters
		WHERE status IN ('open', 'filled')
		AND (6371 * acos(least(1.0,
			cos(radians($1)) * cos(radians(delivery_lat)) *
			cos(radians(delivery_lng) - radians($2)) +
			sin(radians($1)) * sin(radians(delivery_lat))))) <= $3
	`, p.Lat, p.Lng, radiusKm).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, near, p.Lat, p.Lng, radiusKm, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.collect(ctx, rows, total)
}

func (r *FoodRepo) collect(ctx context.Context, rows pgx.Rows, total int) ([]domain.FoodCluster, int, error) {
	defer rows.Close()
	var out []domain.FoodCluster
	for rows.Next() {
		c, err := scanFood(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if err := loadFoodMembers(ctx, r.db, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// mutate serializes writers on the cluster row, applies fn against the locked
// aggregate, recomputes derived fields, and persists them in the same
// transaction. All membership mutations funnel through here so concurrent
// "last seat" joins cannot both pass the capacity check.
// mutate returns the fresh aggregate plus the status it had before the
// mutation, so callers can detect automatic transitions.
func (r *FoodRepo) mutate(ctx context.Context, clusterID string, fn func(tx pgx.Tx, c *domain.FoodCluster) error) (*domain.FoodCluster, domain.FoodStatus, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	c, err := scanFood(tx.QueryRow(ctx, `SELECT `+foodCols+` FROM food_clusters WHERE id=$1 FOR UPDATE`, clusterID))
	if err != nil {
		return nil, "", err
	}
	if err := loadFoodMembers(ctx, tx, c); err != nil {
		return nil, "", err
	}
	prev := c.Status

	if err := fn(tx, c); err != nil {
		return nil, "", err
	}

	c.Recompute()
	c.UpdatedAt = time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE food_clusters SET current_total=$2, status=$3, updated_at=$4 WHERE id=$1
	`, c.ID, c.CurrentTotal, c.Status, c.UpdatedAt); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return c, prev, nil
}

func (r *FoodRepo) AddMember(ctx context.Context, clusterID string, m domain.FoodMember) (*domain.FoodCluster, domain.FoodStatus, error) {
	if m.OrderAmount < 0 {
		return nil, "", xerrors.Validation("order amount must be >= 0")
	}
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.FoodCluster) error {
		if !c.Joinable() {
			return xerrors.ErrClusterNotJoinable
		}
		if c.Member(m.UserID) != nil {
			return xerrors.ErrAlreadyMember
		}
		if len(c.Members) >= c.MaxMembers {
			return xerrors.ErrClusterFull
		}
		m.JoinedAt = time.Now()
		if _, err := tx.Exec(ctx, `
			INSERT INTO food_members (cluster_id, user_id, order_amount, items, joined_at)
			VALUES ($1,$2,$3,$4,$5)
		`, c.ID, m.UserID, m.OrderAmount, m.Items, m.JoinedAt); err != nil {
			return err
		}
		c.Members = append(c.Members, m)
		return nil
	})
}

func (r *FoodRepo) RemoveMember(ctx context.Context, clusterID, userID string) (*domain.FoodCluster, domain.FoodStatus, error) {
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.FoodCluster) error {
		if !c.Editable() {
			return xerrors.ErrNotEditable
		}
		if c.Member(userID) == nil {
			return xerrors.ErrMemberNotFound
		}
		if userID == c.CreatorID && len(c.Members) > 1 {
			return xerrors.ErrCreatorCannotLeave
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM food_members WHERE cluster_id=$1 AND user_id=$2
		`, c.ID, userID); err != nil {
			return err
		}
		for i := range c.Members {
			if c.Members[i].UserID == userID {
				c.Members = append(c.Members[:i], c.Members[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (r *FoodRepo) UpdateMemberOrder(ctx context.Context, clusterID, userID string, amount float64, items string) (*domain.FoodCluster, domain.FoodStatus, error) {
	if amount < 0 {
		return nil, "", xerrors.Validation("order amount must be >= 0")
	}
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.FoodCluster) error {
		if !c.Editable() {
			return xerrors.ErrNotEditable
		}
		m := c.Member(userID)
		if m == nil {
			return xerrors.ErrMemberNotFound
		}
		if _, err := tx.Exec(ctx, `
			UPDATE food_members SET order_amount=$3, items=$4 WHERE cluster_id=$1 AND user_id=$2
		`, c.ID, userID, amount, items); err != nil {
			return err
		}
		m.OrderAmount = amount
		m.Items = items
		return nil
	})
}

// UpdateStatus applies an explicit creator/admin advance after checking the
// transition table against the locked state.
func (r *FoodRepo) UpdateStatus(ctx context.Context, clusterID, actorID string, isAdmin bool, to domain.FoodStatus) (*domain.FoodCluster, domain.FoodStatus, error) {
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.FoodCluster) error {
		role := roleFor(actorID, c.CreatorID, isAdmin)
		if err := domain.CheckFoodTransition(c.Status, role, to); err != nil {
			return err
		}
		c.Status = to
		return nil
	})
}

func (r *FoodRepo) Cancel(ctx context.Context, clusterID, actorID string, isAdmin bool) (*domain.FoodCluster, domain.FoodStatus, error) {
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.FoodCluster) error {
		if err := domain.CanCancelFood(c.Status, roleFor(actorID, c.CreatorID, isAdmin)); err != nil {
			return err
		}
		c.Status = domain.FoodCancelled
		return nil
	})
}

// MarkCollected flips the member's collected flag and, when the last member
// collects, completes the cluster in the same transaction.
func (r *FoodRepo) MarkCollected(ctx context.Context, clusterID, userID string) (*domain.FoodCluster, domain.FoodStatus, error) {
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.FoodCluster) error {
		if c.Status != domain.FoodCollecting {
			return xerrors.ErrInvalidTransition
		}
		m := c.Member(userID)
		if m == nil {
			return xerrors.ErrMemberNotFound
		}
		if m.HasCollected {
			return xerrors.ErrAlreadyCollected
		}
		now := time.Now()
		if _, err := tx.Exec(ctx, `
			UPDATE food_members SET has_collected=TRUE, collected_at=$3
			WHERE cluster_id=$1 AND user_id=$2
		`, c.ID, userID, now); err != nil {
			return err
		}
		m.HasCollected = true
		m.CollectedAt = &now
		if c.AllCollected() {
			c.Status = domain.FoodCompleted
		}
		return nil
	})
}

func roleFor(actorID, creatorID string, isAdmin bool) domain.Role {
	switch {
	case isAdmin:
		return domain.RoleAdmin
	case actorID == creatorID:
		return domain.RoleCreator
	default:
		return domain.RoleMember
	}
}
