package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

func validRideCluster() *RideCluster {
	return &RideCluster{
		ID:            "rc1",
		CreatorID:     "u1",
		StartPoint:    geo.Point{Lat: 12.97, Lng: 77.59},
		EndPoint:      geo.Point{Lat: 12.93, Lng: 77.62},
		SeatsRequired: 4,
		TotalFare:     400,
		VehicleType:   VehicleCar,
		Status:        RideOpen,
	}
}

func TestRideClusterValidate(t *testing.T) {
	c := validRideCluster()
	require.NoError(t, c.Validate())

	c = validRideCluster()
	c.SeatsRequired = 0
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)

	c = validRideCluster()
	c.SeatsRequired = 7
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)

	c = validRideCluster()
	c.TotalFare = -5
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)

	c = validRideCluster()
	c.Stops = []Stop{{Point: geo.Point{Lat: 95, Lng: 0}, Sequence: 1}}
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)
}

func TestRideRecomputeSeatsAndFare(t *testing.T) {
	c := validRideCluster()
	c.Members = []RideMember{{UserID: "u1"}}
	c.Recompute()
	assert.Equal(t, 3, c.SeatsAvailable)
	assert.Equal(t, 100.0, c.FarePerPerson)
	assert.Equal(t, RideOpen, c.Status)
}

func TestRideRecomputeFillsAtLastSeat(t *testing.T) {
	c := validRideCluster()
	c.Members = []RideMember{
		{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}, {UserID: "u4"},
	}
	c.Recompute()
	assert.Equal(t, 0, c.SeatsAvailable)
	assert.Equal(t, RideFilled, c.Status)
}

func TestRideFarePerPersonRoundsUp(t *testing.T) {
	c := validRideCluster()
	c.SeatsRequired = 3
	c.TotalFare = 400
	c.Recompute()
	assert.Equal(t, 134.0, c.FarePerPerson)
}

func TestRideJoinable(t *testing.T) {
	c := validRideCluster()
	assert.True(t, c.Joinable())
	for _, s := range []RideStatus{RideFilled, RideInProgress, RideCompleted, RideCancelled} {
		c.Status = s
		assert.False(t, c.Joinable(), string(s))
	}
}
