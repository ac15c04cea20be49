package domain

import "time"

type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryInTransit  DeliveryStatus = "delivering"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

// Delivery tracks the rider handoff for an ordered food cluster. Both the
// sender and the receiver code must verify before the delivery is done; the
// order of the two verifications does not matter.
type Delivery struct {
	ID               string         `json:"id"`
	ClusterID        string         `json:"cluster_id"`
	RiderID          string         `json:"rider_id"`
	Status           DeliveryStatus `json:"status"`
	SenderVerified   bool           `json:"sender_verified"`
	ReceiverVerified bool           `json:"receiver_verified"`
	StartedAt        *time.Time     `json:"started_at,omitempty"`
	DeliveredAt      *time.Time     `json:"delivered_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HandoffComplete reports whether both legs of the AND-join have verified.
func (d *Delivery) HandoffComplete() bool {
	return d.SenderVerified && d.ReceiverVerified
}

func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryCancelled
}
