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

	"torrdrop/internal/daemon"
	"torrdrop/internal/inbox"
	"torrdrop/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger.With(logging.String(logging.FieldComponent, "ipc")), ctx: ctx}
	if err := rpcServer.RegisterName("Torrdrop", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
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
				s.logger.Warn("accept failed", logging.Error(err))
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
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.Counts = make(map[string]int, len(status.Counts))
	for k, v := range status.Counts {
		resp.Counts[string(k)] = v
	}
	resp.LastCycleAt = status.Loop.LastCycleAt
	resp.LastError = status.Loop.LastError
	resp.InboxDBPath = status.InboxDBPath
	resp.LockPath = status.LockFilePath
	resp.PID = status.PID
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	statuses := make([]inbox.Status, 0, len(req.Statuses))
	for _, raw := range req.Statuses {
		parsed, ok := inbox.ParseStatus(raw)
		if !ok {
			return fmt.Errorf("unknown status %q", raw)
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.daemon.ListInbox(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = make([]InboxItem, 0, len(items))
	for _, item := range items {
		resp.Items = append(resp.Items, fromInboxItem(item))
	}
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid inbox item id %d", req.ID)
	}
	item, err := s.daemon.GetItem(s.ctx, req.ID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("inbox item %d not found", req.ID)
	}
	resp.Item = fromInboxItem(item)
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	if req.ID <= 0 {
		return fmt.Errorf("invalid inbox item id %d", req.ID)
	}
	s.logger.Debug("retry requested", logging.Int64("id", req.ID))
	item, err := s.daemon.Retry(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Item = fromInboxItem(item)
	s.logger.Info("quarantined item retried via IPC", logging.Int64("id", req.ID))
	return nil
}

func (s *service) Prune(_ PruneRequest, resp *PruneResponse) error {
	s.logger.Debug("prune requested")
	removed, err := s.daemon.PruneArchived(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("archived records pruned", logging.Int64("removed_count", removed))
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "test notification sent"
	return nil
}
