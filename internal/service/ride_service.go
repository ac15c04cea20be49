package service

import (
	"context"
	"time"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	"github.com/rajpalom13/move-meal-sub001/pkg/id"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

type RideService struct {
	store  RideStore
	hub    Broadcaster
	sf     *id.Snowflake
	ranker Ranker
}

func NewRideService(store RideStore, hub Broadcaster, sf *id.Snowflake, ranker Ranker) *RideService {
	return &RideService{store: store, hub: hub, sf: sf, ranker: ranker}
}

type CreateRideInput struct {
	StartPoint    geo.Point          `json:"start_point"`
	StartAddress  string             `json:"start_address"`
	EndPoint      geo.Point          `json:"end_point"`
	EndAddress    string             `json:"end_address"`
	Stops         []domain.Stop      `json:"stops,omitempty"`
	SeatsRequired int                `json:"seats_required"`
	TotalFare     float64            `json:"total_fare"`
	DepartureTime *time.Time         `json:"departure_time,omitempty"`
	VehicleType   domain.VehicleType `json:"vehicle_type"`
	FemaleOnly    bool               `json:"female_only"`
	Notes         string             `json:"notes,omitempty"`
}

// Create builds the ride. A femaleOnly ride can only be created by a female
// creator, same rule as joining.
func (s *RideService) Create(ctx context.Context, creatorID, creatorGender string, in CreateRideInput) (*domain.RideCluster, error) {
	if in.FemaleOnly && creatorGender != "female" {
		return nil, xerrors.ErrFemaleOnly
	}
	vt := in.VehicleType
	if vt == "" {
		vt = domain.VehicleCar
	}
	c := &domain.RideCluster{
		ID:            s.sf.Generate(),
		CreatorID:     creatorID,
		StartPoint:    in.StartPoint,
		StartAddress:  in.StartAddress,
		EndPoint:      in.EndPoint,
		EndAddress:    in.EndAddress,
		Stops:         in.Stops,
		SeatsRequired: in.SeatsRequired,
		TotalFare:     in.TotalFare,
		DepartureTime: in.DepartureTime,
		VehicleType:   vt,
		FemaleOnly:    in.FemaleOnly,
		Notes:         in.Notes,
	}
	if err := s.store.Create(ctx, c); err != nil {
		clusterMutations.WithLabelValues("ride", "create", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("ride", "create", "ok").Inc()
	return c, nil
}

func (s *RideService) Get(ctx context.Context, id string) (*domain.RideCluster, error) {
	return s.store.GetByID(ctx, id)
}

func (s *RideService) List(ctx context.Context, status string, femaleOnly *bool, limit, offset int) ([]domain.RideCluster, int, error) {
	return s.store.List(ctx, status, femaleOnly, limit, offset)
}

func (s *RideService) ListMine(ctx context.Context, userID string, limit, offset int) ([]domain.RideCluster, int, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}

// Nearby returns open rides ordered by distance, re-ranked by the
// recommendation collaborator when it is reachable. Collaborator failures
// degrade to the store's distance ordering.
func (s *RideService) Nearby(ctx context.Context, userID string, p geo.Point, radiusKm float64, limit, offset int) ([]domain.RideCluster, int, error) {
	clusters, total, err := s.store.Nearby(ctx, p, radiusKm, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if s.ranker != nil && len(clusters) > 1 {
		if ranked, rerr := s.ranker.RankRides(ctx, userID, clusters); rerr == nil {
			clusters = ranked
		}
	}
	return clusters, total, nil
}

// Join enforces the gender restriction before touching the store; the store
// itself serializes the capacity check.
func (s *RideService) Join(ctx context.Context, clusterID, userID, gender string, pickup geo.Point, pickupAddr string) (*domain.RideCluster, error) {
	existing, err := s.store.GetByID(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if existing.FemaleOnly && gender != "female" {
		clusterMutations.WithLabelValues("ride", "join", "forbidden").Inc()
		return nil, xerrors.ErrFemaleOnly
	}

	c, prev, err := s.store.AddMember(ctx, clusterID, domain.RideMember{
		UserID:      userID,
		PickupPoint: pickup,
		PickupAddr:  pickupAddr,
	})
	if err != nil {
		clusterMutations.WithLabelValues("ride", "join", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("ride", "join", "ok").Inc()

	s.broadcast(domain.ClusterRoom(c.ID), domain.EventMemberJoined, map[string]any{
		"cluster_id": c.ID,
		"user_id":    userID,
	})
	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

func (s *RideService) Leave(ctx context.Context, clusterID, userID string) (*domain.RideCluster, error) {
	c, prev, err := s.store.RemoveMember(ctx, clusterID, userID)
	if err != nil {
		clusterMutations.WithLabelValues("ride", "leave", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("ride", "leave", "ok").Inc()

	s.broadcast(domain.ClusterRoom(c.ID), domain.EventMemberLeft, map[string]any{
		"cluster_id": c.ID,
		"user_id":    userID,
	})
	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

func (s *RideService) UpdatePickup(ctx context.Context, clusterID, userID string, p geo.Point, addr string) (*domain.RideCluster, error) {
	c, prev, err := s.store.UpdatePickup(ctx, clusterID, userID, p, addr)
	if err != nil {
		clusterMutations.WithLabelValues("ride", "update_pickup", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("ride", "update_pickup", "ok").Inc()

	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

func (s *RideService) Advance(ctx context.Context, clusterID, actorID string, isAdmin bool, to domain.RideStatus) (*domain.RideCluster, error) {
	c, prev, err := s.store.UpdateStatus(ctx, clusterID, actorID, isAdmin, to)
	if err != nil {
		clusterMutations.WithLabelValues("ride", "advance", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("ride", "advance", "ok").Inc()

	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

func (s *RideService) Cancel(ctx context.Context, clusterID, actorID string, isAdmin bool) (*domain.RideCluster, error) {
	c, prev, err := s.store.Cancel(ctx, clusterID, actorID, isAdmin)
	if err != nil {
		clusterMutations.WithLabelValues("ride", "cancel", "error").Inc()
		return nil, err
	}
	clusterMutations.WithLabelValues("ride", "cancel", "ok").Inc()

	s.emitUpdated(c)
	s.emitStatus(c.ID, prev, c)
	return c, nil
}

func (s *RideService) broadcast(room, event string, payload interface{}) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(room, event, payload)
	eventsBroadcast.WithLabelValues(event).Inc()
}

func (s *RideService) emitUpdated(c *domain.RideCluster) {
	s.broadcast(domain.ClusterRoom(c.ID), domain.EventClusterUpdated, c)
}

func (s *RideService) emitStatus(clusterID string, prev domain.RideStatus, c *domain.RideCluster) {
	if prev == c.Status {
		return
	}
	s.broadcast(domain.ClusterRoom(clusterID), domain.EventOrderStatus, map[string]any{
		"cluster_id": clusterID,
		"status":     c.Status,
	})
}
