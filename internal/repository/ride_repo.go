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

type RideRepo struct {
	db *pgxpool.Pool
}

func NewRideRepo(db *pgxpool.Pool) *RideRepo {
	return &RideRepo{db: db}
}

const rideCols = `id, creator_id, start_lat, start_lng, start_address, end_lat, end_lng,
	end_address, seats_required, seats_available, total_fare, fare_per_person,
	departure_time, vehicle_type, female_only, status, notes, created_at, updated_at`

func scanRide(row pgx.Row) (*domain.RideCluster, error) {
	var c domain.RideCluster
	err := row.Scan(&c.ID, &c.CreatorID, &c.StartPoint.Lat, &c.StartPoint.Lng, &c.StartAddress,
		&c.EndPoint.Lat, &c.EndPoint.Lng, &c.EndAddress, &c.SeatsRequired, &c.SeatsAvailable,
		&c.TotalFare, &c.FarePerPerson, &c.DepartureTime, &c.VehicleType, &c.FemaleOnly,
		&c.Status, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrClusterNotFound
		}
		return nil, err
	}
	return &c, nil
}

func loadRideChildren(ctx context.Context, q querier, c *domain.RideCluster) error {
	rows, err := q.Query(ctx, `
		SELECT user_id, pickup_lat, pickup_lng, pickup_address, joined_at
		FROM ride_members WHERE cluster_id=$1 ORDER BY joined_at ASC
	`, c.ID)
	if err != nil {
		return err
	}
	c.Members = c.Members[:0]
	for rows.Next() {
		var m domain.RideMember
		if err := rows.Scan(&m.UserID, &m.PickupPoint.Lat, &m.PickupPoint.Lng, &m.PickupAddr, &m.JoinedAt); err != nil {
			rows.Close()
			return err
		}
		c.Members = append(c.Members, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = q.Query(ctx, `
		SELECT seq, lat, lng, address, COALESCE(user_id, '')
		FROM ride_stops WHERE cluster_id=$1 ORDER BY seq ASC
	`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	c.Stops = c.Stops[:0]
	for rows.Next() {
		var s domain.Stop
		if err := rows.Scan(&s.Sequence, &s.Point.Lat, &s.Point.Lng, &s.Address, &s.UserID); err != nil {
			return err
		}
		c.Stops = append(c.Stops, s)
	}
	return rows.Err()
}

func (r *RideRepo) Create(ctx context.Context, c *domain.RideCluster) error {
	if err := c.Validate(); err != nil {
		return err
	}
	now := time.Now()
	c.Status = domain.RideOpen
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Recompute()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO ride_clusters (`+rideCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`, c.ID, c.CreatorID, c.StartPoint.Lat, c.StartPoint.Lng, c.StartAddress,
		c.EndPoint.Lat, c.EndPoint.Lng, c.EndAddress, c.SeatsRequired, c.SeatsAvailable,
		c.TotalFare, c.FarePerPerson, c.DepartureTime, c.VehicleType, c.FemaleOnly,
		c.Status, c.Notes, c.CreatedAt, c.UpdatedAt); err != nil {
		return err
	}

	for _, s := range c.Stops {
		var uid any
		if s.UserID != "" {
			uid = s.UserID
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO ride_stops (cluster_id, seq, lat, lng, address, user_id)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, c.ID, s.Sequence, s.Point.Lat, s.Point.Lng, s.Address, uid); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *RideRepo) GetByID(ctx context.Context, id string) (*domain.RideCluster, error) {
	c, err := scanRide(r.db.QueryRow(ctx, `SELECT `+rideCols+` FROM ride_clusters WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadRideChildren(ctx, r.db, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *RideRepo) List(ctx context.Context, status string, femaleOnly *bool, limit, offset int) ([]domain.RideCluster, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM ride_clusters
		WHERE ($1 = '' OR status = $1) AND ($2::boolean IS NULL OR female_only = $2)
	`, status, femaleOnly).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+rideCols+` FROM ride_clusters
		WHERE ($1 = '' OR status = $1) AND ($2::boolean IS NULL OR female_only = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, status, femaleOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.collect(ctx, rows, total)
}

func (r *RideRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.RideCluster, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM ride_clusters c
		WHERE c.creator_id = $1 OR EXISTS (
			SELECT 1 FROM ride_members m WHERE m.cluster_id = c.id AND m.user_id = $1)
	`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+rideCols+` FROM ride_clusters c
		WHERE c.creator_id = $1 OR EXISTS (
			SELECT 1 FROM ride_members m WHERE m.cluster_id = c.id AND m.user_id = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.collect(ctx, rows, total)
}

// Nearby orders open rides by start-point distance from the given point.
func (r *RideRepo) Nearby(ctx context.Context, p geo.Point, radiusKm float64, limit, offset int) ([]domain.RideCluster, int, error) {
	if !p.Valid() {
		return nil, 0, xerrors.Validation("coordinates are out of range")
	}
	const dist = `(6371 * acos(least(1.0,
		cos(radians($1)) * cos(radians(start_lat)) *
		cos(radians(start_lng) - radians($2)) +
		sin(radians($1)) * sin(radians(start_lat)))))`

	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM ride_clusters WHERE status = 'open' AND `+dist+` <= $3
	`, p.Lat, p.Lng, radiusKm).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		WITH near AS (
			SELECT `+rideCols+`, `+dist+` AS distance_km
			FROM ride_clusters WHERE status = 'open'
		)
		SELECT `+rideCols+` FROM near WHERE distance_km <= $3
		ORDER BY distance_km ASC LIMIT $4 OFFSET $5
	`, p.Lat, p.Lng, radiusKm, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return r.collect(ctx, rows, total)
}

func (r *RideRepo) collect(ctx context.Context, rows pgx.Rows, total int) ([]domain.RideCluster, int, error) {
	defer rows.Close()
	var out []domain.RideCluster
	for rows.Next() {
		c, err := scanRide(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range out {
		if err := loadRideChildren(ctx, r.db, &out[i]); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// mutate returns the fresh aggregate plus the status it had before the
// mutation, so callers can detect the automatic open->filled flip.
func (r *RideRepo) mutate(ctx context.Context, clusterID string, fn func(tx pgx.Tx, c *domain.RideCluster) error) (*domain.RideCluster, domain.RideStatus, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, "", err
	}
	defer tx.Rollback(ctx)

	c, err := scanRide(tx.QueryRow(ctx, `SELECT `+rideCols+` FROM ride_clusters WHERE id=$1 FOR UPDATE`, clusterID))
	if err != nil {
		return nil, "", err
	}
	if err := loadRideChildren(ctx, tx, c); err != nil {
		return nil, "", err
	}
	prev := c.Status

	if err := fn(tx, c); err != nil {
		return nil, "", err
	}

	c.Recompute()
	c.UpdatedAt = time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE ride_clusters SET seats_available=$2, fare_per_person=$3, status=$4, updated_at=$5
		WHERE id=$1
	`, c.ID, c.SeatsAvailable, c.FarePerPerson, c.Status, c.UpdatedAt); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", err
	}
	return c, prev, nil
}

func (r *RideRepo) AddMember(ctx context.Context, clusterID string, m domain.RideMember) (*domain.RideCluster, domain.RideStatus, error) {
	if !m.PickupPoint.Valid() {
		return nil, "", xerrors.Validation("pickup coordinates are out of range")
	}
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.RideCluster) error {
		if !c.Joinable() {
			return xerrors.ErrClusterNotJoinable
		}
		if c.Member(m.UserID) != nil {
			return xerrors.ErrAlreadyMember
		}
		if c.SeatsAvailable <= 0 {
			return xerrors.ErrClusterFull
		}
		m.JoinedAt = time.Now()
		if _, err := tx.Exec(ctx, `
			INSERT INTO ride_members (cluster_id, user_id, pickup_lat, pickup_lng, pickup_address, joined_at)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, c.ID, m.UserID, m.PickupPoint.Lat, m.PickupPoint.Lng, m.PickupAddr, m.JoinedAt); err != nil {
			return err
		}
		c.Members = append(c.Members, m)
		return nil
	})
}

func (r *RideRepo) RemoveMember(ctx context.Context, clusterID, userID string) (*domain.RideCluster, domain.RideStatus, error) {
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.RideCluster) error {
		if c.Status != domain.RideOpen {
			return xerrors.ErrNotEditable
		}
		if c.Member(userID) == nil {
			return xerrors.ErrMemberNotFound
		}
		if userID == c.CreatorID && len(c.Members) > 1 {
			return xerrors.ErrCreatorCannotLeave
		}
		if _, err := tx.Exec(ctx, `
			DELETE FROM ride_members WHERE cluster_id=$1 AND user_id=$2
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

func (r *RideRepo) UpdatePickup(ctx context.Context, clusterID, userID string, p geo.Point, addr string) (*domain.RideCluster, domain.RideStatus, error) {
	if !p.Valid() {
		return nil, "", xerrors.Validation("pickup coordinates are out of range")
	}
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.RideCluster) error {
		if c.Status != domain.RideOpen && c.Status != domain.RideFilled {
			return xerrors.ErrNotEditable
		}
		m := c.Member(userID)
		if m == nil {
			return xerrors.ErrMemberNotFound
		}
		if _, err := tx.Exec(ctx, `
			UPDATE ride_members SET pickup_lat=$3, pickup_lng=$4, pickup_address=$5
			WHERE cluster_id=$1 AND user_id=$2
		`, c.ID, userID, p.Lat, p.Lng, addr); err != nil {
			return err
		}
		m.PickupPoint = p
		m.PickupAddr = addr
		return nil
	})
}

func (r *RideRepo) UpdateStatus(ctx context.Context, clusterID, actorID string, isAdmin bool, to domain.RideStatus) (*domain.RideCluster, domain.RideStatus, error) {
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.RideCluster) error {
		role := roleFor(actorID, c.CreatorID, isAdmin)
		if err := domain.CheckRideTransition(c.Status, role, to); err != nil {
			return err
		}
		c.Status = to
		return nil
	})
}

func (r *RideRepo) Cancel(ctx context.Context, clusterID, actorID string, isAdmin bool) (*domain.RideCluster, domain.RideStatus, error) {
	return r.mutate(ctx, clusterID, func(tx pgx.Tx, c *domain.RideCluster) error {
		if err := domain.CanCancelRide(c.Status, roleFor(actorID, c.CreatorID, isAdmin)); err != nil {
			return err
		}
		c.Status = domain.RideCancelled
		return nil
	})
}
