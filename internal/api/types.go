package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a pending capture without its payload.
type QueueItem struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	DeviceTS  string `json:"deviceTs,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	SizeBytes int    `json:"sizeBytes"`
}

// QueueListResponse wraps a queue listing.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueCountResponse reports the number of pending captures.
type QueueCountResponse struct {
	Pending int `json:"pending"`
}

// CaptureRequest asks the daemon to stamp and submit one photo. Photo is the
// raw image; encoding/json carries it as base64.
type CaptureRequest struct {
	Photo       []byte   `json:"photo"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	TakenAt     string   `json:"takenAt,omitempty"`
	Brand       string   `json:"brand,omitempty"`
	NoWatermark bool     `json:"noWatermark,omitempty"`
}

// SubmitResponse reports where a capture ended up.
type SubmitResponse struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	Reason  string `json:"reason,omitempty"`
	Address string `json:"address,omitempty"`
	Message string `json:"message"`
}

// RetryItem is the per-capture result of a retry pass.
type RetryItem struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// RetryResponse summarizes one retry pass.
type RetryResponse struct {
	Attempted  int         `json:"attempted"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Skipped    string      `json:"skipped,omitempty"`
	Items      []RetryItem `json:"items,omitempty"`
	StartedAt  string      `json:"startedAt,omitempty"`
	FinishedAt string      `json:"finishedAt,omitempty"`
	Message    string      `json:"message"`
}

// SessionInfo is the operator session without its token.
type SessionInfo struct {
	Unlocked   bool   `json:"unlocked"`
	TenantID   string `json:"tenantId,omitempty"`
	OperatorID string `json:"operatorId,omitempty"`
	Label      string `json:"label,omitempty"`
	LinkedAt   string `json:"linkedAt,omitempty"`
}

// LoginRequest carries the one-time operator code.
type LoginRequest struct {
	Code string `json:"code"`
}

// DaemonStatus aggregates runtime information.
type DaemonStatus struct {
	Running           bool           `json:"running"`
	PID               int            `json:"pid"`
	Online            bool           `json:"online"`
	ConnectivityMode  string         `json:"connectivityMode"`
	Pending           int            `json:"pending"`
	Message           string         `json:"message"`
	RetryRunning      bool           `json:"retryRunning"`
	Current           string         `json:"current,omitempty"`
	LastRetry         *RetryResponse `json:"lastRetry,omitempty"`
	Session           SessionInfo    `json:"session"`
	UploadsConfigured bool           `json:"uploadsConfigured"`
	QueueDBPath       string         `json:"queueDbPath"`
	LockPath          string         `json:"lockPath"`
}
