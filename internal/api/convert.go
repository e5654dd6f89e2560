package api

import (
	"time"

	"checkproof/internal/evidence"
	"checkproof/internal/manager"
	"checkproof/internal/session"
)

// FromSummary converts a queue summary to its API representation.
func FromSummary(summary evidence.Summary) QueueItem {
	return QueueItem{
		ID:        summary.ID,
		Address:   summary.Address,
		DeviceTS:  formatTime(summary.DeviceTS),
		CreatedAt: formatTime(summary.CreatedAt),
		SizeBytes: summary.SizeBytes,
	}
}

// FromSummaries converts a slice of summaries, never returning nil.
func FromSummaries(summaries []evidence.Summary) []QueueItem {
	out := make([]QueueItem, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, FromSummary(s))
	}
	return out
}

// FromOutcome converts a manager submit outcome.
func FromOutcome(outcome manager.Outcome, address string) SubmitResponse {
	resp := SubmitResponse{
		ID:      outcome.ID,
		State:   string(outcome.State),
		Reason:  outcome.Reason,
		Address: address,
	}
	switch outcome.State {
	case manager.StateDone:
		resp.Message = manager.MsgUploaded
	case manager.StateQueued:
		if outcome.Reason == manager.SkipOffline {
			resp.Message = manager.MsgQueuedOffline
		} else {
			resp.Message = manager.MsgQueuedFailed
		}
	default:
		resp.Message = string(outcome.State)
	}
	return resp
}

// FromRetryResult converts a retry pass summary.
func FromRetryResult(result manager.RetryResult) RetryResponse {
	resp := RetryResponse{
		Attempted:  result.Attempted,
		Succeeded:  result.Succeeded,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
		StartedAt:  formatTime(result.StartedAt),
		FinishedAt: formatTime(result.FinishedAt),
		Message:    RetryMessage(result),
	}
	for _, item := range result.Items {
		dto := RetryItem{ID: item.ID}
		if item.Err != nil {
			dto.Error = item.Err.Error()
		}
		resp.Items = append(resp.Items, dto)
	}
	return resp
}

// RetryMessage renders the operator-facing line for a retry pass.
func RetryMessage(result manager.RetryResult) string {
	switch {
	case result.Skipped == manager.SkipOffline:
		return manager.MsgOffline
	case result.Attempted == 0:
		return manager.MsgNoPending
	default:
		return manager.MsgRetryFinished
	}
}

// FromSessionInfo converts the session view.
func FromSessionInfo(info session.Info) SessionInfo {
	return SessionInfo{
		Unlocked:   info.Unlocked,
		TenantID:   info.TenantID,
		OperatorID: info.OperatorID,
		Label:      info.Label,
		LinkedAt:   formatTime(info.LinkedAt),
	}
}

// FromManagerStatus fills the manager-owned fields of a daemon status.
func FromManagerStatus(dst *DaemonStatus, status manager.Status) {
	if dst == nil {
		return
	}
	dst.Pending = status.Pending
	dst.Online = status.Online
	dst.Message = status.Message
	dst.RetryRunning = status.Running
	dst.Current = status.Current
	if status.LastRetry != nil {
		last := FromRetryResult(*status.LastRetry)
		dst.LastRetry = &last
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
