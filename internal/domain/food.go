package domain

import (
	"time"

	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

type FoodStatus string

const (
	FoodOpen       FoodStatus = "open"
	FoodFilled     FoodStatus = "filled"
	FoodOrdered    FoodStatus = "ordered"
	FoodReady      FoodStatus = "ready"
	FoodCollecting FoodStatus = "collecting"
	FoodCompleted  FoodStatus = "completed"
	FoodCancelled  FoodStatus = "cancelled"
)

// FoodMember is one participant's share of a pooled food order.
type FoodMember struct {
	UserID       string     `json:"user_id"`
	OrderAmount  float64    `json:"order_amount"`
	Items        string     `json:"items"`
	JoinedAt     time.Time  `json:"joined_at"`
	HasCollected bool       `json:"has_collected"`
	CollectedAt  *time.Time `json:"collected_at,omitempty"`
}

// FoodCluster pools member orders toward a restaurant's minimum basket.
type FoodCluster struct {
	ID               string       `json:"id"`
	CreatorID        string       `json:"creator_id"`
	RestaurantName   string       `json:"restaurant_name"`
	RestaurantAddr   string       `json:"restaurant_address"`
	MinimumBasket    float64      `json:"minimum_basket"`
	CurrentTotal     float64      `json:"current_total"`
	MaxMembers       int          `json:"max_members"`
	Members          []FoodMember `json:"members"`
	DeliveryLocation geo.Point    `json:"delivery_location"`
	DeliveryAddress  string       `json:"delivery_address"`
	DeliveryTime     *time.Time   `json:"delivery_time,omitempty"`
	Status           FoodStatus   `json:"status"`
	Notes            string       `json:"notes,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Validate checks creation bounds.
func (c *FoodCluster) Validate() error {
	if c.RestaurantName == "" {
		return xerrors.Validation("restaurant name is required")
	}
	if c.MinimumBasket < 0 {
		return xerrors.Validation("minimum basket must be >= 0")
	}
	if c.MaxMembers < 2 || c.MaxMembers > 20 {
		return xerrors.Validation("max members must be between 2 and 20")
	}
	if !c.DeliveryLocation.Valid() {
		return xerrors.Validation("delivery location is out of range")
	}
	return nil
}

// Recompute rebuilds every derived field from the membership list and applies
// the automatic open->filled transition. Must run inside the same mutation
// that changed membership, never afterwards.
func (c *FoodCluster) Recompute() {
	total := 0.0
	for _, m := range c.Members {
		total += m.OrderAmount
	}
	c.CurrentTotal = total

	if c.Status == FoodOpen && c.CurrentTotal >= c.MinimumBasket && len(c.Members) > 0 {
		c.Status = FoodFilled
	}
}

// AllCollected reports whether every member has picked up their share.
func (c *FoodCluster) AllCollected() bool {
	if len(c.Members) == 0 {
		return false
	}
	for _, m := range c.Members {
		if !m.HasCollected {
			return false
		}
	}
	return true
}

// Member returns the membership entry for userID, or nil.
func (c *FoodCluster) Member(userID string) *FoodMember {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}

// Joinable reports whether a new member may enter right now. The basket may
// keep growing while filled: joining is closed once the order is placed.
func (c *FoodCluster) Joinable() bool {
	return c.Status == FoodOpen || c.Status == FoodFilled
}

// Editable reports whether members may still change their order lines.
func (c *FoodCluster) Editable() bool {
	return c.Status == FoodOpen || c.Status == FoodFilled
}

func (s FoodStatus) Terminal() bool {
	return s == FoodCompleted || s == FoodCancelled
}
