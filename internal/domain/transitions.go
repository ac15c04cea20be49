package domain

import xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"

// Role of the actor attempting a transition.
type Role string

const (
	RoleCreator Role = "creator"
	RoleMember  Role = "member"
	RoleAdmin   Role = "admin"
)

type foodEdge struct {
	from FoodStatus
	role Role
}

type rideEdge struct {
	from RideStatus
	role Role
}

// Explicit status advances: (currentState, actorRole) -> allowed next states.
// Automatic transitions (open->filled, collecting->completed) are applied by
// Recompute / collection handling and are deliberately absent here. Cancel is
// handled separately because it is legal from every non-terminal state.
var foodTransitions = map[foodEdge][]FoodStatus{
	{FoodFilled, RoleCreator}:  {FoodOrdered},
	{FoodFilled, RoleAdmin}:    {FoodOrdered},
	{FoodOrdered, RoleCreator}: {FoodReady},
	{FoodOrdered, RoleAdmin}:   {FoodReady},
	{FoodReady, RoleCreator}:   {FoodCollecting},
	{FoodReady, RoleAdmin}:     {FoodCollecting},
}

var rideTransitions = map[rideEdge][]RideStatus{
	{RideFilled, RoleCreator}:     {RideInProgress},
	{RideFilled, RoleAdmin}:       {RideInProgress},
	{RideInProgress, RoleCreator}: {RideCompleted},
	{RideInProgress, RoleAdmin}:   {RideCompleted},
}

// CheckFoodTransition validates an explicit advance request. Wrong target for
// the current state is Conflict; a state/role pair with no legal moves at all
// is Forbidden for non-privileged roles.
func CheckFoodTransition(from FoodStatus, role Role, to FoodStatus) error {
	if from.Terminal() {
		return xerrors.ErrInvalidTransition
	}
	allowed, ok := foodTransitions[foodEdge{from, role}]
	if !ok {
		if _, anyRole := foodTransitions[foodEdge{from, RoleCreator}]; anyRole {
			return xerrors.ErrNotCreator
		}
		return xerrors.ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return xerrors.ErrInvalidTransition
}

func CheckRideTransition(from RideStatus, role Role, to RideStatus) error {
	if from.Terminal() {
		return xerrors.ErrInvalidTransition
	}
	allowed, ok := rideTransitions[rideEdge{from, role}]
	if !ok {
		if _, anyRole := rideTransitions[rideEdge{from, RoleCreator}]; anyRole {
			return xerrors.ErrNotCreator
		}
		return xerrors.ErrInvalidTransition
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return xerrors.ErrInvalidTransition
}

// CanCancel: creator or admin, any non-terminal state.
func CanCancelFood(from FoodStatus, role Role) error {
	if from.Terminal() {
		return xerrors.ErrInvalidTransition
	}
	if role != RoleCreator && role != RoleAdmin {
		return xerrors.ErrNotCreator
	}
	return nil
}

func CanCancelRide(from RideStatus, role Role) error {
	if from.Terminal() {
		return xerrors.ErrInvalidTransition
	}
	if role != RoleCreator && role != RoleAdmin {
		return xerrors.ErrNotCreator
	}
	return nil
}
