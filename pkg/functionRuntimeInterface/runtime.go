package functionRuntimeInterface

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/3s-rg-codes/openruntimes-go/pkg/stats"
	"github.com/3s-rg-codes/openruntimes-go/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Execution is the outcome of running the handler once.
type Execution struct {
	ID       string
	Response *Response
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Runtime hosts a single Handler behind the executor protocol.
type Runtime struct {
	settings Settings
	handler  Handler
	logger   *slog.Logger
	recorder *stats.Recorder

	lastActivity time.Time
	activityMu   sync.RWMutex
}

func New(settings Settings, handler Handler, logger *slog.Logger, recorder *stats.Recorder) *Runtime {
	if handler == nil {
		panic("functionRuntimeInterface: handler must not be nil")
	}
	if recorder == nil {
		recorder = stats.NewRecorder(logger, stats.DefaultWindow)
	}
	defaults := DefaultSettings()
	if settings.ShutdownTimeout <= 0 {
		settings.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if settings.MaxBodyBytes <= 0 {
		settings.MaxBodyBytes = defaults.MaxBodyBytes
	}
	return &Runtime{
		settings:     settings,
		handler:      handler,
		logger:       logger.With("component", "runtime"),
		recorder:     recorder,
		lastActivity: time.Now(),
	}
}

// Execute runs the handler for req. On failure both the execution (with its captured
// logs, the error appended to Stderr) and the error are returned.
func (r *Runtime) Execute(ctx context.Context, req *Request) (*Execution, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Variables == nil {
		req.Variables = map[string]string{}
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}

	r.updateActivity()
	defer r.updateActivity()

	if r.settings.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.settings.ExecutionTimeout)
		defer cancel()
	}

	fc := NewContext(req, r.logger)

	r.recorder.Start()
	start := time.Now()
	res, err := r.invoke(ctx, fc)
	duration := time.Since(start)
	r.recorder.Finish(duration, err)

	if err != nil {
		fc.Error(err.Error())
		r.logger.Warn("execution failed", "execution_id", req.ID, "duration", duration, "error", err)
	} else {
		r.logger.Debug("execution finished", "execution_id", req.ID, "duration", duration)
	}

	exec := &Execution{
		ID:       req.ID,
		Response: res,
		Stdout:   fc.Logs(),
		Stderr:   fc.Errors(),
		Duration: duration,
	}
	return exec, err
}

func (r *Runtime) invoke(ctx context.Context, fc *Context) (res *Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, &HandlerPanicError{ExecutionID: fc.Req.ID, Value: p}
		}
	}()

	res, err = r.handler(ctx, fc)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = fc.Res.Empty()
	}
	return res, nil
}

// Stats returns the current execution statistics.
func (r *Runtime) Stats(ctx context.Context) stats.Snapshot {
	return r.recorder.Snapshot(ctx)
}

// Serve listens on the configured addresses and blocks until ctx is cancelled,
// the idle timeout is reached or a server fails.
func (r *Runtime) Serve(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", r.settings.HTTPAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.settings.HTTPAddress, err)
	}

	var grpcLis net.Listener
	if r.settings.GRPCAddress != "" {
		grpcLis, err = net.Listen("tcp", r.settings.GRPCAddress)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("failed to listen on %s: %w", r.settings.GRPCAddress, err)
		}
	}

	return r.ServeListeners(ctx, httpLis, grpcLis)
}

// ServeListeners is Serve on listeners owned by the caller. grpcLis may be nil.
func (r *Runtime) ServeListeners(ctx context.Context, httpLis, grpcLis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Handler:           r.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		r.logger.Info("HTTP server starting", "address", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	var grpcServer *grpc.Server
	var healthServer *health.Server
	if grpcLis != nil {
		grpcServer, healthServer = r.GRPCServer()
		g.Go(func() error {
			r.logger.Info("gRPC server starting", "address", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	if r.settings.IdleTimeout > 0 {
		g.Go(func() error {
			r.monitorIdle(gctx, cancel)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		r.logger.Info("Shutting down runtime")

		shutdownCtx, stop := context.WithTimeout(context.Background(), r.settings.ShutdownTimeout)
		defer stop()

		if grpcServer != nil {
			healthServer.Shutdown()
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// GRPCServer builds the gRPC server carrying the runtime service and the standard health service.
func (r *Runtime) GRPCServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		utils.InterceptorLogger(r.logger),
		r.unaryActivityInterceptor,
	))

	RegisterRuntimeServer(server, &grpcRuntime{runtime: r})

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(RuntimeServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	return server, healthServer
}

func (r *Runtime) unaryActivityInterceptor(
	ctx context.Context,
	req any,
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	r.updateActivity()
	return handler(ctx, req)
}

func (r *Runtime) updateActivity() {
	r.activityMu.Lock()
	r.lastActivity = time.Now()
	r.activityMu.Unlock()
}

func (r *Runtime) idleFor() time.Duration {
	r.activityMu.RLock()
	defer r.activityMu.RUnlock()
	return time.Since(r.lastActivity)
}

func (r *Runtime) monitorIdle(ctx context.Context, stop context.CancelFunc) {
	interval := max(min(time.Second, r.settings.IdleTimeout/2), time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inactive := r.idleFor()
			if inactive >= r.settings.IdleTimeout && r.recorder.InFlight() == 0 {
				r.logger.Info("Idle timeout reached, shutting down",
					"timeout", r.settings.IdleTimeout,
					"last_activity", inactive)
				stop()
				return
			}
		}
	}
}
