package service

import (
	"context"
	"time"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
)

// FoodStore is the persistence surface the food lifecycle drives. Mutations
// are atomic per cluster and return the aggregate's pre-mutation status so
// automatic transitions can be detected.
type FoodStore interface {
	Create(ctx context.Context, c *domain.FoodCluster) error
	GetByID(ctx context.Context, id string) (*domain.FoodCluster, error)
	List(ctx context.Context, status string, limit, offset int) ([]domain.FoodCluster, int, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.FoodCluster, int, error)
	Nearby(ctx context.Context, p geo.Point, radiusKm float64, limit, offset int) ([]domain.FoodCluster, int, error)
	AddMember(ctx context.Context, clusterID string, m domain.FoodMember) (*domain.FoodCluster, domain.FoodStatus, error)
	RemoveMember(ctx context.Context, clusterID, userID string) (*domain.FoodCluster, domain.FoodStatus, error)
	UpdateMemberOrder(ctx context.Context, clusterID, userID string, amount float64, items string) (*domain.FoodCluster, domain.FoodStatus, error)
	UpdateStatus(ctx context.Context, clusterID, actorID string, isAdmin bool, to domain.FoodStatus) (*domain.FoodCluster, domain.FoodStatus, error)
	Cancel(ctx context.Context, clusterID, actorID string, isAdmin bool) (*domain.FoodCluster, domain.FoodStatus, error)
	MarkCollected(ctx context.Context, clusterID, userID string) (*domain.FoodCluster, domain.FoodStatus, error)
}

type RideStore interface {
	Create(ctx context.Context, c *domain.RideCluster) error
	GetByID(ctx context.Context, id string) (*domain.RideCluster, error)
	List(ctx context.Context, status string, femaleOnly *bool, limit, offset int) ([]domain.RideCluster, int, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.RideCluster, int, error)
	Nearby(ctx context.Context, p geo.Point, radiusKm float64, limit, offset int) ([]domain.RideCluster, int, error)
	AddMember(ctx context.Context, clusterID string, m domain.RideMember) (*domain.RideCluster, domain.RideStatus, error)
	RemoveMember(ctx context.Context, clusterID, userID string) (*domain.RideCluster, domain.RideStatus, error)
	UpdatePickup(ctx context.Context, clusterID, userID string, p geo.Point, addr string) (*domain.RideCluster, domain.RideStatus, error)
	UpdateStatus(ctx context.Context, clusterID, actorID string, isAdmin bool, to domain.RideStatus) (*domain.RideCluster, domain.RideStatus, error)
	Cancel(ctx context.Context, clusterID, actorID string, isAdmin bool) (*domain.RideCluster, domain.RideStatus, error)
}

type DeliveryStore interface {
	Create(ctx context.Context, d *domain.Delivery) error
	GetByID(ctx context.Context, id string) (*domain.Delivery, error)
	Start(ctx context.Context, id string) (*domain.Delivery, error)
	MarkVerified(ctx context.Context, id string, kind domain.OTPKind) (*domain.Delivery, error)
	Cancel(ctx context.Context, id string) (*domain.Delivery, error)
}

// OTPAudit is the durable trail behind the live Redis codes.
type OTPAudit interface {
	Create(ctx context.Context, o *domain.UserOTP) error
	DeactivatePrior(ctx context.Context, userID string, purpose domain.OTPKind, scope string) error
	MarkVerified(ctx context.Context, userID string, purpose domain.OTPKind, scope, code string) error
}

// CodeCache is the TTL'd live-code store (Redis in production).
type CodeCache interface {
	Set(ctx context.Context, namespace, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, namespace, key string) (string, error)
	GetDel(ctx context.Context, namespace, key string) (string, error)
	Delete(ctx context.Context, namespace, key string) error
}

// Broadcaster fans lifecycle events out to live connections.
type Broadcaster interface {
	Broadcast(room, event string, payload interface{}) int
}

// IssuanceLimiter gates user-triggered OTP requests.
type IssuanceLimiter interface {
	CanRequest(ctx context.Context, userID, purpose string) error
}
