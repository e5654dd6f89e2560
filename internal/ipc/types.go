package ipc

import "checkproof/internal/api"

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops the daemon and ends the process.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueItem mirrors the HTTP API queue DTO for internal IPC callers.
type QueueItem = api.QueueItem

// SessionInfo mirrors the HTTP API session DTO.
type SessionInfo = api.SessionInfo

// StatusResponse represents combined daemon and queue status information.
type StatusResponse = api.DaemonStatus

// SubmitRequest carries one photo to stamp and submit.
type SubmitRequest = api.CaptureRequest

// SubmitResponse reports where the capture ended up.
type SubmitResponse = api.SubmitResponse

// RetryRequest runs one retry pass.
type RetryRequest struct{}

// RetryResponse summarizes the pass.
type RetryResponse = api.RetryResponse

// QueueListRequest lists pending captures.
type QueueListRequest struct{}

// QueueListResponse contains pending captures in insertion order.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueCountRequest counts pending captures.
type QueueCountRequest struct{}

// QueueCountResponse reports the pending count.
type QueueCountResponse struct {
	Pending int `json:"pending"`
}

// QueueDescribeRequest fetches a single pending capture by id.
type QueueDescribeRequest struct {
	ID string `json:"id"`
}

// QueueDescribeResponse wraps a single capture summary.
type QueueDescribeResponse struct {
	Item QueueItem `json:"item"`
}

// LoginRequest exchanges an operator code for a session.
type LoginRequest struct {
	Code string `json:"code"`
}

// LoginResponse reports the linked session.
type LoginResponse struct {
	Session SessionInfo `json:"session"`
}

// LogoutRequest clears the operator session.
type LogoutRequest struct{}

// LogoutResponse confirms the session was cleared.
type LogoutResponse struct {
	Cleared bool `json:"cleared"`
}

// WhoamiRequest fetches the operator session.
type WhoamiRequest struct{}

// WhoamiResponse reports the operator session.
type WhoamiResponse struct {
	Session SessionInfo `json:"session"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether a notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
