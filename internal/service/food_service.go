package service

import (
	"context"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	"github.com/rajpalom13/move-meal-sub001/pkg/id"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

// Metrics
var (
	clusterMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_mutations_total",
			Help: "Total number of cluster mutations",
		},
		[]string{"kind", "operation", "status"},
	)

	eventsBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_broadcast_total",
			Help: "Total number of lifecycle events fanned out",
		},
		[]string{"event"},
	)
)

// DeliveryPricing sets the flat and distance components of delivery quotes.
type DeliveryPricing struct {
	BaseFee float64
	PerKm   float64
}

type FoodService struct {
	store   FoodStore
	otp     *OTPService
	hub     Broadcaster
	sf      *id.Snowflake
	pricing DeliveryPricing
}

func NewFoodService(store FoodStore, otp *OTPService, hub Broadcaster, sf *id.Snowflake, pricing DeliveryPricing) *FoodService {
	return &FoodService{store: store, otp: otp, hub: hub, sf: sf, pricing: pricing}
}

type CreateFoodInput struct {
	RestaurantName   string     `json:"restaurant_name"`
	RestaurantAddr   string     `json:"restaurant_address"`
	MinimumBasket    float64    `json:"minimum_basket"`
	MaxMembers       int        `json:"max_members"`
	DeliveryLocation geo.Point  `json:"delivery_location"`
	DeliveryAddress  string     `json:"delivery_address"`
	DeliveryTime     *time.Time `json:"delivery_time,omitempty"`
	Notes            string     `json:"notes,omitempty"`

	// Creator's own order, added in the same request.
	OrderAmount float64 `json:"order_amount"`
	Items       string  `json:"items,omitempty"`
}

func (s *FoodService) Create(ctx context.Context, creatorID string, in CreateFoodInput) (*domain.FoodCluster, error) {
	c := &domain.FoodCluster{
		ID:               s.sf.Generate(),
		CreatorID:        creatorID,
		RestaurantName:   in.RestaurantName,
		RestaurantAddr:   in.RestaurantAddr,
		MinimumBasket:    in.MinimumBasket,
		MaxMembers:       in.MaxMembers,
		DeliveryLocation: in.DeliveryLocation,
		DeliveryAddress:  in.DeliveryAddress,
		DeliveryTime:     in.DeliveryTime,
		Notes:            in.Notes,
	}
	if err := s.store.Create(ctx, c); err != nil {
		clusterMutations.WithLabelValues("food", "create", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("food", "create", "ok").Inc()

	if in.OrderAmount > 0 || in.Items != "" {
		fresh, prev, err := s.store.AddMember(ctx, c.ID, domain.FoodMember{
			UserID:      creatorID,
			OrderAmount: in.OrderAmount,
			Items:       in.Items,
		})
		if err != nil {
			return nil, err
		}
		s.emitStatus(c.ID, prev, fresh)
		return fresh, nil
	}
	return c, nil
}

func (s *FoodService) Get(ctx context.Context, id string) (*domain.FoodCluster, error) {
	return s.store.GetByID(ctx, id)
}

func (s *FoodService) List(ctx context.Context, status string, limit, offset int) ([]domain.FoodCluster, int, error) {
	return s.store.List(ctx, status, limit, offset)
}

func (s *FoodService) ListMine(ctx context.Context, userID string, limit, offset int) ([]domain.FoodCluster, int, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}

func (s *FoodService) Nearby(ctx context.Context, p geo.Point, radiusKm float64, limit, offset int) ([]domain.FoodCluster, int, error) {
	return s.store.Nearby(ctx, p, radiusKm, limit, offset)
}

// DeliveryQuote estimates the delivery cost and travel time from an origin
// point to the cluster's drop-off.
type DeliveryQuote struct {
	DistanceKm float64 `json:"distance_km"`
	Fee        float64 `json:"fee"`
	ETAMinutes int     `json:"eta_minutes"`
}

func (s *FoodService) Quote(ctx context.Context, clusterID string, from geo.Point) (*DeliveryQuote, error) {
	if !from.Valid() {
		return nil, xerrors.Validation("coordinates are out of range")
	}
	c, err := s.store.GetByID(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	dist := geo.DistanceKm(from, c.DeliveryLocation)
	return &DeliveryQuote{
		DistanceKm: dist,
		Fee:        geo.DeliveryFee(dist, s.pricing.BaseFee, s.pricing.PerKm),
		ETAMinutes: geo.ETAMinutes(dist, 0),
	}, nil
}

func (s *FoodService) Join(ctx context.Context, clusterID, userID string, amount float64, items string) (*domain.FoodCluster, error) {
	c, prev, err := s.store.AddMember(ctx, clusterID, domain.FoodMember{
		UserID:      userID,
		OrderAmount: amount,
		Items:       items,
	})
	if err != nil {
		clusterMutations.WithLabelValues("food", "join", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("food", "join", "ok").Inc()

	s.broadcast(domain.ClusterRoom(c.ID), domain.EventMemberJoined, map[string]any{
		"cluster_id": c.ID,
		"user_id":    userID,
	})
	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

func (s *FoodService) Leave(ctx context.Context, clusterID, userID string) (*domain.FoodCluster, error) {
	c, prev, err := s.store.RemoveMember(ctx, clusterID, userID)
	if err != nil {
		clusterMutations.WithLabelValues("food", "leave", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("food", "leave", "ok").Inc()

	s.broadcast(domain.ClusterRoom(c.ID), domain.EventMemberLeft, map[string]any{
		"cluster_id": c.ID,
		"user_id":    userID,
	})
	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

func (s *FoodService) UpdateOrder(ctx context.Context, clusterID, userID string, amount float64, items string) (*domain.FoodCluster, error) {
	c, prev, err := s.store.UpdateMemberOrder(ctx, clusterID, userID, amount, items)
	if err != nil {
		clusterMutations.WithLabelValues("food", "update_order", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("food", "update_order", "ok").Inc()

	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

// Advance applies an explicit forward transition. Reaching collecting issues a
// collection code for every member.
func (s *FoodService) Advance(ctx context.Context, clusterID, actorID string, isAdmin bool, to domain.FoodStatus) (*domain.FoodCluster, error) {
	c, prev, err := s.store.UpdateStatus(ctx, clusterID, actorID, isAdmin, to)
	if err != nil {
		clusterMutations.WithLabelValues("food", "advance", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("food", "advance", "ok").Inc()

	if c.Status == domain.FoodCollecting && prev != domain.FoodCollecting {
		s.issueCollectionCodes(ctx, c)
	}
	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

func (s *FoodService) Cancel(ctx context.Context, clusterID, actorID string, isAdmin bool) (*domain.FoodCluster, error) {
	c, prev, err := s.store.Cancel(ctx, clusterID, actorID, isAdmin)
	if err != nil {
		clusterMutations.WithLabelValues("food", "cancel", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("food", "cancel", "ok").Inc()

	// No refund/compensation here: cancellation only marks the aggregate.
	// Settling collected amounts belongs to the payments side.
	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

// VerifyCollection burns the member's collection code and marks their share
// collected. The last member's verification completes the cluster.
func (s *FoodService) VerifyCollection(ctx context.Context, clusterID, userID, code string) (*domain.FoodCluster, error) {
	ok, err := s.otp.Verify(ctx, userID, code, domain.OTPCollection, clusterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.ErrInvalidOTP
	}

	c, prev, err := s.store.MarkCollected(ctx, clusterID, userID)
	if err != nil {
		return nil, err
	}
	clusterMutations.WithLabelValues("food", "collect", "ok").Inc()

	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

// ResendCollectionOTP reissues the caller's collection code for a cluster in
// the collecting stage. User-triggered, so it runs through the issuance
// limiter; the fresh code replaces any prior one.
func (s *FoodService) ResendCollectionOTP(ctx context.Context, clusterID, userID string) error {
	c, err := s.store.GetByID(ctx, clusterID)
	if err != nil {
		return err
	}
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

	code, err := s.otp.Issue(ctx, userID, domain.OTPCollection, clusterID)
	if err != nil {
		return err
	}
	log.Printf("Reissued collection OTP | cluster=%s user=%s code=%s", clusterID, userID, code)
	return nil
}

func (s *FoodService) issueCollectionCodes(ctx context.Context, c *domain.FoodCluster) {
	for _, m := range c.Members {
		code, err := s.otp.IssueSystem(ctx, m.UserID, domain.OTPCollection, c.ID)
		if err != nil {
			log.Printf("Failed to issue collection OTP | cluster=%s user=%s: %v", c.ID, m.UserID, err)
			continue
		}
		log.Printf("Issued collection OTP | cluster=%s user=%s code=%s", c.ID, m.UserID, code)
	}
}

func (s *FoodService) broadcast(room, event string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(room, event, payload)
	eventsBroadcast.WithLabelValues(event).Inc()
}

func (s *FoodService) emitUpdated(c *domain.FoodCluster) {
	s.broadcast(domain.ClusterRoom(c.ID), domain.EventClusterUpdated, c)
}

func (s *FoodService) emitStatus(clusterID string, prev domain.FoodStatus, c *domain.FoodCluster) {
	if prev == c.Status {
		return
	}
	s.broadcast(domain.ClusterRoom(clusterID), domain.EventOrderStatus, map[string]any{
		"cluster_id": clusterID,
		"status":     c.Status,
	})
}
