package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"github.com/google/uuid"

	"checkproof/internal/daemon"
	"checkproof/internal/logging"
	"checkproof/internal/services"
)

// ServerOption customizes the IPC server.
type ServerOption func(*Server)

// WithShutdown registers a callback run after a Stop request has stopped the
// daemon, so the hosting process can exit.
func WithShutdown(fn func()) ServerOption {
	return func(s *Server) {
		s.shutdown = fn
	}
}

// WithSocketMode sets the permission bits applied to the socket file.
func WithSocketMode(mode os.FileMode) ServerOption {
	return func(s *Server) {
		s.mode = mode
	}
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	shutdown  func()
	mode      os.FileMode

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...ServerOption) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{path: path, daemon: d, logger: logger, mode: 0o600}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := restrictSocket(path, s.mode); err != nil {
		listener.Close()
		return nil, err
	}

	serverCtx, cancel := context.WithCancel(ctx)
	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: serverCtx, shutdown: s.shutdown}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	s.listener = listener
	s.rpcServer = rpcServer
	s.ctx = serverCtx
	s.cancel = cancel
	return s, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun checkproof stop"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String("component", "ipc"))
}

// request tags a call with a correlation id so daemon logs for one CLI
// command can be grouped.
func (s *service) request(operation string) (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	ctx = services.WithOperation(ctx, operation)
	return ctx, logging.WithContext(ctx, s.log())
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	if s.shutdown != nil {
		s.shutdown()
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	ctx, logger := s.request("submit")
	logger.Debug("capture submitted via IPC", logging.Int("photo_bytes", len(req.Photo)))
	result, err := s.daemon.Submit(ctx, req)
	if err != nil {
		logger.Info("capture rejected",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_submit_failed"))
		return err
	}
	*resp = result
	return nil
}

func (s *service) Retry(_ RetryRequest, resp *RetryResponse) error {
	ctx, logger := s.request("retry")
	logger.Debug("retry requested via IPC")
	result, err := s.daemon.Retry(ctx)
	if err != nil {
		return err
	}
	*resp = result
	logger.Info("retry pass requested via IPC finished",
		logging.Int("attempted", result.Attempted),
		logging.Int("succeeded", result.Succeeded),
		logging.String(logging.FieldEventType, "ipc_retry"))
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	items, err := s.daemon.ListQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) QueueCount(_ QueueCountRequest, resp *QueueCountResponse) error {
	pending, err := s.daemon.QueueCount(s.ctx)
	if err != nil {
		return err
	}
	resp.Pending = pending
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	if req.ID == "" {
		return errors.New("capture id is required")
	}
	items, err := s.daemon.ListQueue(s.ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.ID == req.ID {
			resp.Item = item
			return nil
		}
	}
	return fmt.Errorf("capture %s not queued", req.ID)
}

func (s *service) Login(req LoginRequest, resp *LoginResponse) error {
	ctx, logger := s.request("login")
	info, err := s.daemon.Login(ctx, req.Code)
	if err != nil {
		logger.Info("operator login failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_login_failed"))
		return err
	}
	resp.Session = info
	return nil
}

func (s *service) Logout(_ LogoutRequest, resp *LogoutResponse) error {
	if err := s.daemon.Logout(); err != nil {
		return err
	}
	resp.Cleared = true
	return nil
}

func (s *service) Whoami(_ WhoamiRequest, resp *WhoamiResponse) error {
	resp.Session = s.daemon.Session()
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
