package domain

// Server->client event names pushed through the websocket fanout.
const (
	EventClusterUpdated = "cluster:updated"
	EventMemberJoined   = "cluster:member:joined"
	EventMemberLeft     = "cluster:member:left"
	EventOrderStatus    = "order:status"
	EventDeliveryStart  = "delivery:started"
)

// Client->server message events.
const (
	MsgJoinCluster    = "join:cluster"
	MsgLeaveCluster   = "leave:cluster"
	MsgJoinVendor     = "join:vendor"
	MsgJoinRider      = "join:rider"
	MsgLocationUpdate = "location:update"
)

// Room keys.
func UserRoom(userID string) string       { return "user:" + userID }
func ClusterRoom(clusterID string) string { return "cluster:" + clusterID }
func VendorRoom(vendorID string) string   { return "vendor:" + vendorID }
func RiderRoom(riderID string) string     { return "rider:" + riderID }

// RiderLocationEvent is the per-rider location stream name.
func RiderLocationEvent(riderID string) string { return "rider:location:" + riderID }
