package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"checkproof/internal/api"
	"checkproof/internal/ipc"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// statusLines renders the daemon, connectivity, session and queue sections.
func statusLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
	}
	if status.UploadsConfigured {
		lines = append(lines, renderStatusLine("Uploads", statusOK, "Backend configured", colorize))
	} else {
		lines = append(lines, renderStatusLine("Uploads", statusWarn, "No backend configured; captures stay queued", colorize))
	}
	lines = append(lines, connectivityLine(status, colorize))
	lines = append(lines, sessionLine(status.Session, colorize))
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Queue", colorize)...)
	pendingKind := statusOK
	if status.Pending > 0 {
		pendingKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Pending", pendingKind, strconv.Itoa(status.Pending), colorize))
	if status.RetryRunning {
		detail := "In progress"
		if status.Current != "" {
			detail = fmt.Sprintf("Uploading %s", api.ShortID(status.Current))
		}
		lines = append(lines, renderStatusLine("Retry", statusInfo, detail, colorize))
	}
	if last := status.LastRetry; last != nil {
		kind := statusOK
		if last.Failed > 0 {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Last retry", kind, last.Message, colorize))
	}
	if status.QueueDBPath != "" {
		lines = append(lines, renderStatusLine("Database", statusInfo, status.QueueDBPath, colorize))
	}
	if !status.Running && status.Message != "" {
		lines = append(lines, renderStatusLine("Note", statusInfo, status.Message, colorize))
	}
	return lines
}

func connectivityLine(status *ipc.StatusResponse, colorize bool) string {
	mode := status.ConnectivityMode
	if !status.Running {
		return renderStatusLine("Connectivity", statusInfo, fmt.Sprintf("Unknown (mode %s)", mode), colorize)
	}
	if status.Online {
		return renderStatusLine("Connectivity", statusOK, fmt.Sprintf("Online (mode %s)", mode), colorize)
	}
	return renderStatusLine("Connectivity", statusWarn, fmt.Sprintf("Offline (mode %s)", mode), colorize)
}

func sessionLine(session ipc.SessionInfo, colorize bool) string {
	if !session.Unlocked {
		return renderStatusLine("Session", statusWarn, "Locked; run `checkproof login <code>`", colorize)
	}
	label := session.Label
	if label == "" {
		label = session.OperatorID
	}
	return renderStatusLine("Session", statusOK, fmt.Sprintf("%s (tenant %s)", label, session.TenantID), colorize)
}
