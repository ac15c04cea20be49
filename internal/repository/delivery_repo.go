package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

type DeliveryRepo struct {
	db *pgxpool.Pool
}

func NewDeliveryRepo(db *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

const deliveryCols = `id, cluster_id, rider_id, status, sender_verified, receiver_verified,
	started_at, delivered_at, created_at, updated_at`

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	err := row.Scan(&d.ID, &d.ClusterID, &d.RiderID, &d.Status, &d.SenderVerified,
		&d.ReceiverVerified, &d.StartedAt, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrDeliveryNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	now := time.Now()
	d.Status = domain.DeliveryPending
	d.CreatedAt = now
	d.UpdatedAt = now
	_, err := r.db.Exec(ctx, `
		INSERT INTO deliveries (`+deliveryCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, d.ID, d.ClusterID, d.RiderID, d.Status, d.SenderVerified, d.ReceiverVerified,
		d.StartedAt, d.DeliveredAt, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DeliveryRepo) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	return scanDelivery(r.db.QueryRow(ctx, `SELECT `+deliveryCols+` FROM deliveries WHERE id=$1`, id))
}

func (r *DeliveryRepo) mutate(ctx context.Context, id string, fn func(d *domain.Delivery) error) (*domain.Delivery, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	d, err := scanDelivery(tx.QueryRow(ctx, `SELECT `+deliveryCols+` FROM deliveries WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := fn(d); err != nil {
		return nil, err
	}

	d.UpdatedAt = time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE deliveries SET status=$2, sender_verified=$3, receiver_verified=$4,
			started_at=$5, delivered_at=$6, updated_at=$7
		WHERE id=$1
	`, d.ID, d.Status, d.SenderVerified, d.ReceiverVerified, d.StartedAt, d.DeliveredAt, d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Start moves a pending delivery to delivering.
func (r *DeliveryRepo) Start(ctx context.Context, id string) (*domain.Delivery, error) {
	return r.mutate(ctx, id, func(d *domain.Delivery) error {
		if d.Status != domain.DeliveryPending {
			return xerrors.ErrDeliveryStarted
		}
		now := time.Now()
		d.Status = domain.DeliveryInTransit
		d.StartedAt = &now
		return nil
	})
}

// MarkVerified records one leg of the handoff. When both the sender and the
// receiver leg have verified, the delivery flips to delivered in the same
// transaction. Verification order does not matter.
func (r *DeliveryRepo) MarkVerified(ctx context.Context, id string, kind domain.OTPKind) (*domain.Delivery, error) {
	return r.mutate(ctx, id, func(d *domain.Delivery) error {
		if d.Status != domain.DeliveryInTransit {
			return xerrors.ErrInvalidTransition
		}
		switch kind {
		case domain.OTPDeliverySender:
			d.SenderVerified = true
		case domain.OTPDeliveryReceiver:
			d.ReceiverVerified = true
		default:
			return xerrors.Validation("unknown handoff party")
		}
		if d.HandoffComplete() {
			now := time.Now()
			d.Status = domain.DeliveryDelivered
			d.DeliveredAt = &now
		}
		return nil
	})
}

func (r *DeliveryRepo) Cancel(ctx context.Context, id string) (*domain.Delivery, error) {
	return r.mutate(ctx, id, func(d *domain.Delivery) error {
		if d.Status.Terminal() {
			return xerrors.ErrInvalidTransition
		}
		d.Status = domain.DeliveryCancelled
		return nil
	})
}
