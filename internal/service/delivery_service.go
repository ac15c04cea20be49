package service

import (
	"context"
	"log"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/id"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

type DeliveryService struct {
	store DeliveryStore
	food  FoodStore
	otp   *OTPService
	hub   Broadcaster
	sf    *id.Snowflake
}

func NewDeliveryService(store DeliveryStore, food FoodStore, otp *OTPService, hub Broadcaster, sf *id.Snowflake) *DeliveryService {
	return &DeliveryService{store: store, food: food, otp: otp, hub: hub, sf: sf}
}

// Create attaches a rider to an ordered food cluster. Only the cluster
// creator (or an admin) dispatches a delivery.
func (s *DeliveryService) Create(ctx context.Context, actorID string, isAdmin bool, clusterID, riderID string) (*domain.Delivery, error) {
	c, err := s.food.GetByID(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && actorID != c.CreatorID {
		return nil, xerrors.ErrNotCreator
	}
	if c.Status != domain.FoodOrdered && c.Status != domain.FoodReady {
		return nil, xerrors.ErrInvalidTransition
	}

	d := &domain.Delivery{
		ID:        s.sf.Generate(),
		ClusterID: clusterID,
		RiderID:   riderID,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DeliveryService) Get(ctx context.Context, id string) (*domain.Delivery, error) {
	return s.store.GetByID(ctx, id)
}

// Start issues the two independent handoff codes and then flips the delivery
// to delivering. Codes go out before the status flip: a failed issuance leaves
// the delivery pending and the start retryable. Sender code goes to the
// cluster creator, receiver code to the rider's counterpart at the drop-off;
// both must verify before the delivery is done.
func (s *DeliveryService) Start(ctx context.Context, actorID string, isAdmin bool, d *domain.Delivery) (*domain.Delivery, error) {
	if !isAdmin && actorID != d.RiderID {
		return nil, xerrors.ErrForbidden
	}
	if d.Status != domain.DeliveryPending {
		return nil, xerrors.ErrDeliveryStarted
	}

	c, err := s.food.GetByID(ctx, d.ClusterID)
	if err != nil {
		return nil, err
	}

	senderCode, err := s.otp.IssueSystem(ctx, c.CreatorID, domain.OTPDeliverySender, d.ID)
	if err != nil {
		return nil, err
	}
	receiverCode, err := s.otp.IssueSystem(ctx, d.RiderID, domain.OTPDeliveryReceiver, d.ID)
	if err != nil {
		return nil, err
	}

	started, err := s.store.Start(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	log.Printf("Issued handoff OTPs | delivery=%s sender=%s receiver=%s", started.ID, senderCode, receiverCode)

	s.broadcast(domain.ClusterRoom(started.ClusterID), domain.EventDeliveryStart, map[string]any{
		"delivery_id": started.ID,
		"cluster_id":  started.ClusterID,
		"rider_id":    started.RiderID,
	})
	s.broadcast(domain.RiderRoom(started.RiderID), domain.EventDeliveryStart, map[string]any{
		"delivery_id": started.ID,
		"cluster_id":  started.ClusterID,
	})
	return started, nil
}

// VerifyHandoff burns one leg's code and records it. Either leg may go first;
// the delivery flips to delivered only when both have verified.
func (s *DeliveryService) VerifyHandoff(ctx context.Context, userID, code string, kind domain.OTPKind, deliveryID string) (*domain.Delivery, error) {
	if kind != domain.OTPDeliverySender && kind != domain.OTPDeliveryReceiver {
		return nil, xerrors.Validation("party must be sender or receiver")
	}

	ok, err := s.otp.Verify(ctx, userID, code, kind, deliveryID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.ErrInvalidOTP
	}

	d, err := s.store.MarkVerified(ctx, deliveryID, kind)
	if err != nil {
		return nil, err
	}

	s.broadcast(domain.ClusterRoom(d.ClusterID), domain.EventOrderStatus, map[string]any{
		"delivery_id": d.ID,
		"cluster_id":  d.ClusterID,
		"status":      d.Status,
	})
	return d, nil
}

func (s *DeliveryService) Cancel(ctx context.Context, actorID string, isAdmin bool, d *domain.Delivery) (*domain.Delivery, error) {
	if !isAdmin && actorID != d.RiderID {
		c, err := s.food.GetByID(ctx, d.ClusterID)
		if err != nil {
			return nil, err
		}
		if actorID != c.CreatorID {
			return nil, xerrors.ErrForbidden
		}
	}
	return s.store.Cancel(ctx, d.ID)
}

func (s *DeliveryService) broadcast(room, event string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(room, event, payload)
	eventsBroadcast.WithLabelValues(event).Inc()
}
