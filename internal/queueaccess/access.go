package queueaccess

import (
	"context"

	"checkproof/internal/api"
	"checkproof/internal/ipc"
	"checkproof/internal/queue"
)

// Access provides read-only queue operations regardless of IPC or direct store backing.
type Access interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]api.QueueItem, error)
	Describe(ctx context.Context, id string) (*api.QueueItem, error)
	// Live reports whether the daemon answered; direct access cannot retry.
	Live() bool
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{service: api.NewQueueService(store)}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Count(_ context.Context) (int, error) {
	resp, err := a.client.QueueCount()
	if err != nil {
		return 0, err
	}
	return resp.Pending, nil
}

func (a *ipcAccess) List(_ context.Context) ([]api.QueueItem, error) {
	resp, err := a.client.QueueList()
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id string) (*api.QueueItem, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		return nil, err
	}
	item := resp.Item
	return &item, nil
}

func (a *ipcAccess) Live() bool { return true }

type storeAccess struct {
	service *api.QueueService
}

func (a *storeAccess) Count(ctx context.Context) (int, error) {
	return a.service.Count(ctx)
}

func (a *storeAccess) List(ctx context.Context) ([]api.QueueItem, error) {
	return a.service.List(ctx)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.QueueItem, error) {
	return a.service.Describe(ctx, id)
}

func (a *storeAccess) Live() bool { return false }
