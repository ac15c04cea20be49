package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

func validFoodCluster() *FoodCluster {
	return &FoodCluster{
		ID:               "fc1",
		CreatorID:        "u1",
		RestaurantName:   "Biryani House",
		MinimumBasket:    500,
		MaxMembers:       5,
		DeliveryLocation: geo.Point{Lat: 12.97, Lng: 77.59},
		Status:           FoodOpen,
	}
}

func TestFoodClusterValidate(t *testing.T) {
	c := validFoodCluster()
	require.NoError(t, c.Validate())

	c = validFoodCluster()
	c.RestaurantName = ""
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)

	c = validFoodCluster()
	c.MinimumBasket = -1
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)

	c = validFoodCluster()
	c.MaxMembers = 1
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)

	c = validFoodCluster()
	c.MaxMembers = 21
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)

	c = validFoodCluster()
	c.DeliveryLocation = geo.Point{Lat: 99, Lng: 0}
	assert.ErrorIs(t, c.Validate(), xerrors.ErrValidation)
}

func TestFoodRecomputeFillsAtMinimumBasket(t *testing.T) {
	c := validFoodCluster()
	c.Members = []FoodMember{{UserID: "u1", OrderAmount: 300}}
	c.Recompute()
	assert.Equal(t, 300.0, c.CurrentTotal)
	assert.Equal(t, FoodOpen, c.Status)

	c.Members = append(c.Members, FoodMember{UserID: "u2", OrderAmount: 250})
	c.Recompute()
	assert.Equal(t, 550.0, c.CurrentTotal)
	assert.Equal(t, FoodFilled, c.Status)
}

func TestFoodRecomputeDoesNotRegress(t *testing.T) {
	c := validFoodCluster()
	c.Members = []FoodMember{
		{UserID: "u1", OrderAmount: 300},
		{UserID: "u2", OrderAmount: 250},
	}
	c.Recompute()
	require.Equal(t, FoodFilled, c.Status)

	// dropping back under the minimum never reopens the cluster
	c.Members = c.Members[:1]
	c.Recompute()
	assert.Equal(t, 300.0, c.CurrentTotal)
	assert.Equal(t, FoodFilled, c.Status)
}

func TestFoodRecomputeEmptyClusterStaysOpen(t *testing.T) {
	c := validFoodCluster()
	c.MinimumBasket = 0
	c.Recompute()
	assert.Equal(t, FoodOpen, c.Status)
}

func TestFoodAllCollected(t *testing.T) {
	c := validFoodCluster()
	assert.False(t, c.AllCollected())

	c.Members = []FoodMember{
		{UserID: "u1", HasCollected: true},
		{UserID: "u2", HasCollected: false},
	}
	assert.False(t, c.AllCollected())

	c.Members[1].HasCollected = true
	assert.True(t, c.AllCollected())
}

func TestFoodJoinableAndEditable(t *testing.T) {
	c := validFoodCluster()
	for _, s := range []FoodStatus{FoodOpen, FoodFilled} {
		c.Status = s
		assert.True(t, c.Joinable(), string(s))
		assert.True(t, c.Editable(), string(s))
	}
	for _, s := range []FoodStatus{FoodOrdered, FoodReady, FoodCollecting, FoodCompleted, FoodCancelled} {
		c.Status = s
		assert.False(t, c.Joinable(), string(s))
		assert.False(t, c.Editable(), string(s))
	}
}

func TestFoodStatusTerminal(t *testing.T) {
	assert.True(t, FoodCompleted.Terminal())
	assert.True(t, FoodCancelled.Terminal())
	assert.False(t, FoodCollecting.Terminal())
}
