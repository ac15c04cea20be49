package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

// fakeFoodStore serializes mutations on a mutex the way the Postgres repo
// serializes them on the row lock.
type fakeFoodStore struct {
	mu       sync.Mutex
	clusters map[string]*domain.FoodCluster
}

func newFakeFoodStore() *fakeFoodStore {
	return &fakeFoodStore{clusters: map[string]*domain.FoodCluster{}}
}

func cloneFood(c *domain.FoodCluster) *domain.FoodCluster {
	cp := *c
	cp.Members = append([]domain.FoodMember(nil), c.Members...)
	return &cp
}

func (s *fakeFoodStore) Create(_ context.Context, c *domain.FoodCluster) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.Status = domain.FoodOpen
	c.CreatedAt = now
	c.UpdatedAt = now
	s.clusters[c.ID] = cloneFood(c)
	return nil
}

func (s *fakeFoodStore) GetByID(_ context.Context, id string) (*domain.FoodCluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, xerrors.ErrClusterNotFound
	}
	return cloneFood(c), nil
}

func (s *fakeFoodStore) List(_ context.Context, status string, _, _ int) ([]domain.FoodCluster, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FoodCluster
	for _, c := range s.clusters {
		if status == "" || string(c.Status) == status {
			out = append(out, *cloneFood(c))
		}
	}
	return out, len(out), nil
}

func (s *fakeFoodStore) ListByUser(_ context.Context, userID string, _, _ int) ([]domain.FoodCluster, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FoodCluster
	for _, c := range s.clusters {
		if c.CreatorID == userID || c.Member(userID) != nil {
			out = append(out, *cloneFood(c))
		}
	}
	return out, len(out), nil
}

func (s *fakeFoodStore) Nearby(_ context.Context, p geo.Point, radiusKm float64, _, _ int) ([]domain.FoodCluster, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FoodCluster
	for _, c := range s.clusters {
		if !c.Joinable() {
			continue
		}
		if geo.DistanceKm(p, c.DeliveryLocation) <= radiusKm {
			out = append(out, *cloneFood(c))
		}
	}
	return out, len(out), nil
}

func (s *fakeFoodStore) mutate(id string, fn func(c *domain.FoodCluster) error) (*domain.FoodCluster, domain.FoodStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, "", xerrors.ErrClusterNotFound
	}
	prev := c.Status
	work := cloneFood(c)
	if err := fn(work); err != nil {
		return nil, "", err
	}
	work.Recompute()
	work.UpdatedAt = time.Now()
	s.clusters[id] = work
	return cloneFood(work), prev, nil
}

func (s *fakeFoodStore) AddMember(_ context.Context, clusterID string, m domain.FoodMember) (*domain.FoodCluster, domain.FoodStatus, error) {
	if m.OrderAmount < 0 {
		return nil, "", xerrors.Validation("order amount must be >= 0")
	}
	return s.mutate(clusterID, func(c *domain.FoodCluster) error {
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
		c.Members = append(c.Members, m)
		return nil
	})
}

func (s *fakeFoodStore) RemoveMember(_ context.Context, clusterID, userID string) (*domain.FoodCluster, domain.FoodStatus, error) {
	return s.mutate(clusterID, func(c *domain.FoodCluster) error {
		if !c.Editable() {
			return xerrors.ErrNotEditable
		}
		if c.Member(userID) == nil {
			return xerrors.ErrMemberNotFound
		}
		if userID == c.CreatorID && len(c.Members) > 1 {
			return xerrors.ErrCreatorCannotLeave
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

func (s *fakeFoodStore) UpdateMemberOrder(_ context.Context, clusterID, userID string, amount float64, items string) (*domain.FoodCluster, domain.FoodStatus, error) {
	return s.mutate(clusterID, func(c *domain.FoodCluster) error {
		if !c.Editable() {
			return xerrors.ErrNotEditable
		}
		m := c.Member(userID)
		if m == nil {
			return xerrors.ErrMemberNotFound
		}
		m.OrderAmount = amount
		m.Items = items
		return nil
	})
}

func (s *fakeFoodStore) UpdateStatus(_ context.Context, clusterID, actorID string, isAdmin bool, to domain.FoodStatus) (*domain.FoodCluster, domain.FoodStatus, error) {
	return s.mutate(clusterID, func(c *domain.FoodCluster) error {
		role := fakeRoleFor(actorID, c.CreatorID, isAdmin)
		if err := domain.CheckFoodTransition(c.Status, role, to); err != nil {
			return err
		}
		c.Status = to
		return nil
	})
}

func (s *fakeFoodStore) Cancel(_ context.Context, clusterID, actorID string, isAdmin bool) (*domain.FoodCluster, domain.FoodStatus, error) {
	return s.mutate(clusterID, func(c *domain.FoodCluster) error {
		if err := domain.CanCancelFood(c.Status, fakeRoleFor(actorID, c.CreatorID, isAdmin)); err != nil {
			return err
		}
		c.Status = domain.FoodCancelled
		return nil
	})
}

func (s *fakeFoodStore) MarkCollected(_ context.Context, clusterID, userID string) (*domain.FoodCluster, domain.FoodStatus, error) {
	return s.mutate(clusterID, func(c *domain.FoodCluster) error {
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
		m.HasCollected = true
		m.CollectedAt = &now
		if c.AllCollected() {
			c.Status = domain.FoodCompleted
		}
		return nil
	})
}

type fakeRideStore struct {
	mu       sync.Mutex
	clusters map[string]*domain.RideCluster
}

func newFakeRideStore() *fakeRideStore {
	return &fakeRideStore{clusters: map[string]*domain.RideCluster{}}
}

func cloneRide(c *domain.RideCluster) *domain.RideCluster {
	cp := *c
	cp.Members = append([]domain.RideMember(nil), c.Members...)
	cp.Stops = append([]domain.Stop(nil), c.Stops...)
	return &cp
}

func (s *fakeRideStore) Create(_ context.Context, c *domain.RideCluster) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	c.Status = domain.RideOpen
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Recompute()
	s.clusters[c.ID] = cloneRide(c)
	return nil
}

func (s *fakeRideStore) GetByID(_ context.Context, id string) (*domain.RideCluster, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, xerrors.ErrClusterNotFound
	}
	return cloneRide(c), nil
}

func (s *fakeRideStore) List(_ context.Context, status string, femaleOnly *bool, _, _ int) ([]domain.RideCluster, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RideCluster
	for _, c := range s.clusters {
		if status != "" && string(c.Status) != status {
			continue
		}
		if femaleOnly != nil && c.FemaleOnly != *femaleOnly {
			continue
		}
		out = append(out, *cloneRide(c))
	}
	return out, len(out), nil
}

func (s *fakeRideStore) ListByUser(_ context.Context, userID string, _, _ int) ([]domain.RideCluster, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RideCluster
	for _, c := range s.clusters {
		if c.CreatorID == userID || c.Member(userID) != nil {
			out = append(out, *cloneRide(c))
		}
	}
	return out, len(out), nil
}

func (s *fakeRideStore) Nearby(_ context.Context, p geo.Point, radiusKm float64, _, _ int) ([]domain.RideCluster, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RideCluster
	for _, c := range s.clusters {
		if !c.Joinable() {
			continue
		}
		if geo.DistanceKm(p, c.StartPoint) <= radiusKm {
			out = append(out, *cloneRide(c))
		}
	}
	return out, len(out), nil
}

func (s *fakeRideStore) mutate(id string, fn func(c *domain.RideCluster) error) (*domain.RideCluster, domain.RideStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clusters[id]
	if !ok {
		return nil, "", xerrors.ErrClusterNotFound
	}
	prev := c.Status
	work := cloneRide(c)
	if err := fn(work); err != nil {
		return nil, "", err
	}
	work.Recompute()
	work.UpdatedAt = time.Now()
	s.clusters[id] = work
	return cloneRide(work), prev, nil
}

func (s *fakeRideStore) AddMember(_ context.Context, clusterID string, m domain.RideMember) (*domain.RideCluster, domain.RideStatus, error) {
	if !m.PickupPoint.Valid() {
		return nil, "", xerrors.Validation("pickup coordinates are out of range")
	}
	return s.mutate(clusterID, func(c *domain.RideCluster) error {
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
		c.Members = append(c.Members, m)
		return nil
	})
}

func (s *fakeRideStore) RemoveMember(_ context.Context, clusterID, userID string) (*domain.RideCluster, domain.RideStatus, error) {
	return s.mutate(clusterID, func(c *domain.RideCluster) error {
		if c.Status != domain.RideOpen {
			return xerrors.ErrNotEditable
		}
		if c.Member(userID) == nil {
			return xerrors.ErrMemberNotFound
		}
		if userID == c.CreatorID && len(c.Members) > 1 {
			return xerrors.ErrCreatorCannotLeave
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

func (s *fakeRideStore) UpdatePickup(_ context.Context, clusterID, userID string, p geo.Point, addr string) (*domain.RideCluster, domain.RideStatus, error) {
	return s.mutate(clusterID, func(c *domain.RideCluster) error {
		if c.Status != domain.RideOpen && c.Status != domain.RideFilled {
			return xerrors.ErrNotEditable
		}
		m := c.Member(userID)
		if m == nil {
			return xerrors.ErrMemberNotFound
		}
		m.PickupPoint = p
		m.PickupAddr = addr
		return nil
	})
}

func (s *fakeRideStore) UpdateStatus(_ context.Context, clusterID, actorID string, isAdmin bool, to domain.RideStatus) (*domain.RideCluster, domain.RideStatus, error) {
	return s.mutate(clusterID, func(c *domain.RideCluster) error {
		role := fakeRoleFor(actorID, c.CreatorID, isAdmin)
		if err := domain.CheckRideTransition(c.Status, role, to); err != nil {
			return err
		}
		c.Status = to
		return nil
	})
}

func (s *fakeRideStore) Cancel(_ context.Context, clusterID, actorID string, isAdmin bool) (*domain.RideCluster, domain.RideStatus, error) {
	return s.mutate(clusterID, func(c *domain.RideCluster) error {
		if err := domain.CanCancelRide(c.Status, fakeRoleFor(actorID, c.CreatorID, isAdmin)); err != nil {
			return err
		}
		c.Status = domain.RideCancelled
		return nil
	})
}

type fakeDeliveryStore struct {
	mu         sync.Mutex
	deliveries map[string]*domain.Delivery
}

func newFakeDeliveryStore() *fakeDeliveryStore {
	return &fakeDeliveryStore{deliveries: map[string]*domain.Delivery{}}
}

func (s *fakeDeliveryStore) Create(_ context.Context, d *domain.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	d.Status = domain.DeliveryPending
	d.CreatedAt = now
	d.UpdatedAt = now
	cp := *d
	s.deliveries[d.ID] = &cp
	return nil
}

func (s *fakeDeliveryStore) GetByID(_ context.Context, id string) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, xerrors.ErrDeliveryNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeDeliveryStore) Start(_ context.Context, id string) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, xerrors.ErrDeliveryNotFound
	}
	if d.Status != domain.DeliveryPending {
		return nil, xerrors.ErrDeliveryStarted
	}
	now := time.Now()
	d.Status = domain.DeliveryInTransit
	d.StartedAt = &now
	d.UpdatedAt = now
	cp := *d
	return &cp, nil
}

func (s *fakeDeliveryStore) MarkVerified(_ context.Context, id string, kind domain.OTPKind) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, xerrors.ErrDeliveryNotFound
	}
	if d.Status != domain.DeliveryInTransit {
		return nil, xerrors.ErrInvalidTransition
	}
	switch kind {
	case domain.OTPDeliverySender:
		d.SenderVerified = true
	case domain.OTPDeliveryReceiver:
		d.ReceiverVerified = true
	}
	now := time.Now()
	if d.HandoffComplete() {
		d.Status = domain.DeliveryDelivered
		d.DeliveredAt = &now
	}
	d.UpdatedAt = now
	cp := *d
	return &cp, nil
}

func (s *fakeDeliveryStore) Cancel(_ context.Context, id string) (*domain.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[id]
	if !ok {
		return nil, xerrors.ErrDeliveryNotFound
	}
	if d.Status.Terminal() {
		return nil, xerrors.ErrInvalidTransition
	}
	d.Status = domain.DeliveryCancelled
	d.UpdatedAt = time.Now()
	cp := *d
	return &cp, nil
}

// fakeCache mimics the Redis live-code store, including redis.Nil on misses
// and TTL-driven expiry. advance skews the fake clock so tests can observe
// expiry without sleeping; setErr simulates a write failure.
type fakeCache struct {
	mu     sync.Mutex
	data   map[string]cacheEntry
	offset time.Duration
	setErr error
}

type cacheEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]cacheEntry{}}
}

func (f *fakeCache) now() time.Time {
	return time.Now().Add(f.offset)
}

func (f *fakeCache) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offset += d
}

func (f *fakeCache) Set(_ context.Context, ns, key string, value interface{}, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	e := cacheEntry{value: value.(string)}
	if ttl > 0 {
		e.expiresAt = f.now().Add(ttl)
	}
	f.data[ns+":"+key] = e
	return nil
}

func (f *fakeCache) live(k string) (cacheEntry, bool) {
	e, ok := f.data[k]
	if !ok {
		return cacheEntry{}, false
	}
	if !e.expiresAt.IsZero() && !f.now().Before(e.expiresAt) {
		delete(f.data, k)
		return cacheEntry{}, false
	}
	return e, true
}

func (f *fakeCache) Get(_ context.Context, ns, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.live(ns + ":" + key)
	if !ok {
		return "", redis.Nil
	}
	return e.value, nil
}

func (f *fakeCache) GetDel(_ context.Context, ns, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.live(ns + ":" + key)
	if !ok {
		return "", redis.Nil
	}
	delete(f.data, ns+":"+key)
	return e.value, nil
}

func (f *fakeCache) Delete(_ context.Context, ns, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, ns+":"+key)
	return nil
}

type fakeAudit struct {
	mu       sync.Mutex
	created  []domain.UserOTP
	verified []string
}

func (a *fakeAudit) Create(_ context.Context, o *domain.UserOTP) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.created = append(a.created, *o)
	return nil
}

func (a *fakeAudit) DeactivatePrior(_ context.Context, _ string, _ domain.OTPKind, _ string) error {
	return nil
}

func (a *fakeAudit) MarkVerified(_ context.Context, userID string, _ domain.OTPKind, _ string, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.verified = append(a.verified, userID+":"+code)
	return nil
}

type hubEvent struct {
	Room    string
	Name    string
	Payload interface{}
}

type fakeHub struct {
	mu     sync.Mutex
	events []hubEvent
}

func (h *fakeHub) Broadcast(room, event string, payload interface{}) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, hubEvent{Room: room, Name: event, Payload: payload})
	return 1
}

func (h *fakeHub) named(name string) []hubEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hubEvent
	for _, e := range h.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeLimiter struct {
	err   error
	calls int
}

func (l *fakeLimiter) CanRequest(_ context.Context, _, _ string) error {
	l.calls++
	return l.err
}

func fakeRoleFor(actorID, creatorID string, isAdmin bool) domain.Role {
	switch {
	case isAdmin:
		return domain.RoleAdmin
	case actorID == creatorID:
		return domain.RoleCreator
	default:
		return domain.RoleMember
	}
}
