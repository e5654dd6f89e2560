package queueaccess

import (
	"errors"
	"fmt"

	"checkproof/internal/ipc"
	"checkproof/internal/queue"
)

// Session is an open queue view. DaemonErr holds the dial failure when the
// view fell back to the queue database.
type Session struct {
	Access    Access
	DaemonErr error
	close     func() error
}

// Close releases the IPC connection or the store.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback asks the running daemon first and reads queue.db directly
// when the daemon does not answer.
func OpenWithFallback(
	dial func() (*ipc.Client, error),
	openStore func() (*queue.Store, error),
) (Session, error) {
	var daemonErr error
	if dial != nil {
		client, err := dial()
		if err == nil && client != nil {
			return Session{Access: NewIPCAccess(client), close: client.Close}, nil
		}
		daemonErr = err
	}

	if openStore == nil {
		return Session{}, errors.Join(daemonErr, errors.New("open queue store: no store opener configured"))
	}
	store, err := openStore()
	if err != nil {
		return Session{}, errors.Join(daemonErr, fmt.Errorf("open queue store: %w", err))
	}
	return Session{
		Access:    NewStoreAccess(store),
		DaemonErr: daemonErr,
		close:     store.Close,
	}, nil
}
