package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"checkproof/internal/config"
	"checkproof/internal/logging"
	"checkproof/internal/services/panel"
)

// ErrSessionInvalid is returned when an operation needs an unlocked session.
var ErrSessionInvalid = errors.New("session not valid")

// Exchanger trades an operator code for a session grant.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (panel.Grant, error)
}

// Info is the caller-facing view of the session, without the token.
type Info struct {
	Unlocked   bool      `json:"unlocked"`
	TenantID   string    `json:"tenantId,omitempty"`
	OperatorID string    `json:"operatorId,omitempty"`
	Label      string    `json:"label,omitempty"`
	LinkedAt   time.Time `json:"linkedAt,omitzero"`
}

// Option customizes Manager construction.
type Option func(*Manager)

// WithStore injects a custom persistence layer.
func WithStore(store Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithExchanger injects the code exchange client.
func WithExchanger(exchanger Exchanger) Option {
	return func(m *Manager) {
		if exchanger != nil {
			m.exchanger = exchanger
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logging.NewComponentLogger(logger, "session")
	}
}

// Manager owns the operator session: login by code, logout, and the unlock check.
type Manager struct {
	store     Store
	exchanger Exchanger
	logger    *slog.Logger

	mu    sync.RWMutex
	state State
}

// NewManager loads any persisted session.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	m := &Manager{
		store:  NewFileStore(cfg.SessionPath()),
		logger: logging.NewComponentLogger(nil, "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.exchanger == nil {
		m.exchanger = panel.New(cfg.Session.PanelURL, time.Duration(cfg.Session.TimeoutSeconds)*time.Second, nil)
	}
	state, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	m.state = state
	return m, nil
}

// Login exchanges the code and persists the resulting session.
func (m *Manager) Login(ctx context.Context, code string) (Info, error) {
	grant, err := m.exchanger.Exchange(ctx, code)
	if err != nil {
		return Info{}, err
	}
	state := State{
		CustomToken: grant.CustomToken,
		UID:         TokenUID(grant.CustomToken),
		TenantID:    strings.TrimSpace(grant.TenantID),
		OperatorID:  strings.TrimSpace(grant.OperatorID),
		Label:       strings.TrimSpace(grant.Label),
		LinkedAt:    time.Now().UTC(),
	}
	if err := m.store.Save(state); err != nil {
		return Info{}, err
	}
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()

	info := Describe(state)
	if info.Unlocked {
		m.logger.Info("operator session linked",
			logging.String("tenant_id", state.TenantID),
			logging.String("operator_id", state.OperatorID),
			logging.String(logging.FieldEventType, "session_linked"),
		)
	} else {
		logging.WarnWithContext(m.logger, "session stored but locked", "session_locked",
			logging.String("operator_id", state.OperatorID),
			logging.String(logging.FieldErrorHint, "request a new code from the panel"),
			logging.String(logging.FieldImpact, "uploads stay queued until a valid session exists"),
		)
	}
	return info, nil
}

// Logout clears the session.
func (m *Manager) Logout() error {
	if err := m.store.Clear(); err != nil {
		return err
	}
	m.mu.Lock()
	m.state = State{}
	m.mu.Unlock()
	m.logger.Info("operator session cleared", logging.String(logging.FieldEventType, "session_cleared"))
	return nil
}

// Info reports the current session.
func (m *Manager) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Describe(m.state)
}

// Require returns the session state when it is unlocked, or ErrSessionInvalid.
func (m *Manager) Require() (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !unlocked(m.state) {
		return State{}, ErrSessionInvalid
	}
	return m.state, nil
}

// Describe summarizes a persisted session without exposing its token.
func Describe(state State) Info {
	return Info{
		Unlocked:   unlocked(state),
		TenantID:   state.TenantID,
		OperatorID: state.OperatorID,
		Label:      state.Label,
		LinkedAt:   state.LinkedAt,
	}
}

// unlocked holds iff the token identity matches the operator and a tenant is known.
func unlocked(state State) bool {
	return state.UID != "" && state.UID == state.OperatorID && state.TenantID != ""
}

// TokenUID extracts the uid claim from a JWT-shaped custom token. The
// signature is not verified; the backend does that when the token is used.
func TokenUID(token string) string {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 {
		return ""
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return ""
	}
	var claims struct {
		UID string `json:"uid"`
	}
	if err := json.Unmarshal(raw, &claims); err != nil {
		return ""
	}
	return strings.TrimSpace(claims.UID)
}
