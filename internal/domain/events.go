package domain

// EventBus topics. Payloads are documented per topic.
const (
	// EventNetworkConnected fires on the offline-to-online edge. Payload: bool (true).
	EventNetworkConnected = "network:connected"
	// EventNetworkDisconnected fires on the online-to-offline edge. Payload: bool (false).
	EventNetworkDisconnected = "network:disconnected"
	// EventSyncCompleted fires after every non-skipped queue drain. Payload: *SyncReport.
	EventSyncCompleted = "sync:completed"
	// EventQueueUpdated fires after every queue mutation. Payload: int (pending+failed count).
	EventQueueUpdated = "queue:updated"
	// EventAuthLogin fires after credentials are stored. Payload: none.
	EventAuthLogin = "auth:login"
	// EventAuthLogout fires after credentials and caches are cleared. Payload: none.
	EventAuthLogout = "auth:logout"
	// EventSessionExpired fires when a request still gets 401 after a token
	// refresh. Payload: none. Subscribers are expected to log the user out.
	EventSessionExpired = "auth:session_expired"
)

// NetworkStatus is the monitor's view of connectivity.
type NetworkStatus struct {
	Connected bool `json:"connected"`
	Reachable bool `json:"reachable"`
}
