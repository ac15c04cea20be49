package domain

import (
	"time"

	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

type RideStatus string

const (
	RideOpen       RideStatus = "open"
	RideFilled     RideStatus = "filled"
	RideInProgress RideStatus = "in_progress"
	RideCompleted  RideStatus = "completed"
	RideCancelled  RideStatus = "cancelled"
)

type VehicleType string

const (
	VehicleCar  VehicleType = "car"
	VehicleAuto VehicleType = "auto"
	VehicleBike VehicleType = "bike"
)

// Stop is an ordered waypoint on a shared ride.
type Stop struct {
	Point    geo.Point `json:"point"`
	Address  string    `json:"address"`
	Sequence int       `json:"sequence"`
	UserID   string    `json:"user_id,omitempty"`
}

// RideMember is one passenger sharing the ride.
type RideMember struct {
	UserID      string    `json:"user_id"`
	PickupPoint geo.Point `json:"pickup_point"`
	PickupAddr  string    `json:"pickup_address"`
	JoinedAt    time.Time `json:"joined_at"`
}

// RideCluster pools passengers toward a shared fare.
type RideCluster struct {
	ID             string       `json:"id"`
	CreatorID      string       `json:"creator_id"`
	StartPoint     geo.Point    `json:"start_point"`
	StartAddress   string       `json:"start_address"`
	EndPoint       geo.Point    `json:"end_point"`
	EndAddress     string       `json:"end_address"`
	Stops          []Stop       `json:"stops,omitempty"`
	Members        []RideMember `json:"members"`
	SeatsRequired  int          `json:"seats_required"`
	SeatsAvailable int          `json:"seats_available"`
	TotalFare      float64      `json:"total_fare"`
	FarePerPerson  float64      `json:"fare_per_person"`
	DepartureTime  *time.Time   `json:"departure_time,omitempty"`
	VehicleType    VehicleType  `json:"vehicle_type"`
	FemaleOnly     bool         `json:"female_only"`
	Status         RideStatus   `json:"status"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

func (c *RideCluster) Validate() error {
	if c.SeatsRequired < 1 || c.SeatsRequired > 6 {
		return xerrors.Validation("seats required must be between 1 and 6")
	}
	if c.TotalFare < 0 {
		return xerrors.Validation("total fare must be >= 0")
	}
	if !c.StartPoint.Valid() || !c.EndPoint.Valid() {
		return xerrors.Validation("ride coordinates are out of range")
	}
	for _, s := range c.Stops {
		if !s.Point.Valid() {
			return xerrors.Validation("stop %d coordinates are out of range", s.Sequence)
		}
	}
	return nil
}

// Recompute rebuilds seatsAvailable and farePerPerson and applies the
// automatic open->filled transition when the last seat is taken.
func (c *RideCluster) Recompute() {
	c.SeatsAvailable = c.SeatsRequired - len(c.Members)
	c.FarePerPerson = geo.FarePerPerson(c.TotalFare, c.SeatsRequired)

	if c.Status == RideOpen && c.SeatsAvailable <= 0 {
		c.Status = RideFilled
	}
}

func (c *RideCluster) Member(userID string) *RideMember {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}

func (c *RideCluster) Joinable() bool {
	return c.Status == RideOpen
}

func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}
