package server

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-cache/types"
	"github.com/saiset-co/sai-cache/utils"
)

type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// HTTPServer exposes the cache operations, health report and metrics
// scrape endpoint over fasthttp.
type HTTPServer struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger types.Logger

	cache   types.CacheManager
	health  types.HealthManager
	metrics types.MetricsManager

	server          *fasthttp.Server
	listener        net.Listener
	serverConfig    *types.ServerConfig
	state           atomic.Value
	shutdownTimeout time.Duration
}

func NewHTTPServer(
	ctx context.Context,
	config types.ConfigManager,
	logger types.Logger,
	cache types.CacheManager,
	health types.HealthManager,
	metrics types.MetricsManager) (*HTTPServer, error) {
	serverCtx, cancel := context.WithCancel(ctx)

	server := &HTTPServer{
		ctx:             serverCtx,
		cancel:          cancel,
		logger:          logger,
		cache:           cache,
		health:          health,
		metrics:         metrics,
		serverConfig:    config.GetConfig().Server,
		shutdownTimeout: 5 * time.Second,
	}

	server.state.Store(StateStopped)

	return server, nil
}

func (h *HTTPServer) Start() error {
	if !h.transitionState(StateStopped, StateStarting) {
		return types.ErrAlreadyRunning
	}

	defer func() {
		if h.getState() == StateStarting {
			h.setState(StateRunning)
		}
	}()

	h.server = &fasthttp.Server{
		Handler:      h.route,
		ReadTimeout:  time.Duration(h.serverConfig.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(h.serverConfig.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(h.serverConfig.IdleTimeout) * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", h.serverConfig.Host, h.serverConfig.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		h.setState(StateStopped)
		return types.WrapError(err, "failed to bind admin listener")
	}
	h.listener = listener

	go func() {
		if err := h.server.Serve(h.listener); err != nil {
			h.logger.Error("HTTP server failed", zap.Error(err))
			h.setState(StateStopped)
		}
	}()

	h.logger.Info("HTTP server started", zap.String("address", addr))

	return nil
}

func (h *HTTPServer) Stop() error {
	if !h.transitionState(StateRunning, StateStopping) &&
		!h.transitionState(StateStarting, StateStopping) {
		return types.ErrNotRunning
	}

	defer func() {
		h.setState(StateStopped)
		h.cancel()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.ShutdownWithContext(ctx); err != nil {
		h.logger.Warn("HTTP server shutdown timeout", zap.Error(err))
		return err
	}

	h.logger.Info("HTTP server stopped gracefully")
	return nil
}

func (h *HTTPServer) IsRunning() bool {
	return h.getState() == StateRunning
}

func (h *HTTPServer) getState() State {
	return h.state.Load().(State)
}

func (h *HTTPServer) setState(newState State) bool {
	return h.state.CompareAndSwap(h.getState(), newState)
}

func (h *HTTPServer) transitionState(from, to State) bool {
	return h.state.CompareAndSwap(from, to)
}

func (h *HTTPServer) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case path == "/health" && method == fasthttp.MethodGet:
		h.handleHealth(ctx)
	case path == "/metrics" && method == fasthttp.MethodGet:
		h.handleMetrics(ctx)
	case path == "/cache/entry" && method == fasthttp.MethodPost:
		h.handleSetEntry(ctx)
	case path == "/cache/entry" && method == fasthttp.MethodGet:
		h.handleGetEntry(ctx)
	case path == "/cache/sweep" && method == fasthttp.MethodPost:
		h.handleSweep(ctx)
	case path == "/cache/flush" && method == fasthttp.MethodPost:
		h.handleFlushAll(ctx)
	case path == "/cache/flush-pattern" && method == fasthttp.MethodPost:
		h.handleFlushByPattern(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (h *HTTPServer) handleHealth(ctx *fasthttp.RequestCtx) {
	if h.health == nil {
		ctx.Error("health manager disabled", fasthttp.StatusServiceUnavailable)
		return
	}

	report := h.health.Check(ctx)

	status := fasthttp.StatusOK
	if report.Status == types.StatusUnhealthy {
		status = fasthttp.StatusServiceUnavailable
	}

	h.writeJSON(ctx, status, report)
}

func (h *HTTPServer) handleMetrics(ctx *fasthttp.RequestCtx) {
	if h.metrics == nil {
		ctx.Error("metrics manager disabled", fasthttp.StatusServiceUnavailable)
		return
	}

	h.metrics.HTTPHandler()(ctx)
}

type setEntryRequest struct {
	Prefix  string      `json:"prefix,omitempty"`
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`

	// TTLSeconds follows the engine convention: 0 applies the configured
	// default, negative values disable expiration.
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

func (h *HTTPServer) handleSetEntry(ctx *fasthttp.RequestCtx) {
	var req setEntryRequest
	if err := utils.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.Error("invalid request body", fasthttp.StatusBadRequest)
		return
	}

	ttl := types.DefaultExpiration
	if req.TTLSeconds < 0 {
		ttl = types.NoExpiration
	} else if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	location, err := h.cache.Set(types.SetParams{
		Prefix:  req.Prefix,
		Name:    req.Name,
		Payload: req.Payload,
		TTL:     ttl,
	})
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, map[string]string{"location": location})
}

func (h *HTTPServer) handleGetEntry(ctx *fasthttp.RequestCtx) {
	params := types.GetParams{
		Prefix: string(ctx.QueryArgs().Peek("prefix")),
		Name:   string(ctx.QueryArgs().Peek("name")),
	}

	payload, err := h.cache.Get(params)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{"payload": payload})
}

func (h *HTTPServer) handleSweep(ctx *fasthttp.RequestCtx) {
	report, err := h.cache.InvalidateExpired()
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, report)
}

func (h *HTTPServer) handleFlushAll(ctx *fasthttp.RequestCtx) {
	report, err := h.cache.FlushAll()
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, report)
}

type flushByPatternRequest struct {
	OrgPattern string `json:"org_pattern"`
	Pattern    string `json:"pattern,omitempty"`
}

func (h *HTTPServer) handleFlushByPattern(ctx *fasthttp.RequestCtx) {
	var req flushByPatternRequest
	if err := utils.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.Error("invalid request body", fasthttp.StatusBadRequest)
		return
	}

	report, err := h.cache.FlushByPattern(req.OrgPattern, req.Pattern)
	if err != nil {
		h.writeError(ctx, err)
		return
	}

	h.writeJSON(ctx, fasthttp.StatusOK, report)
}

func (h *HTTPServer) writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	data, err := utils.Marshal(body)
	if err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(data)
}

func (h *HTTPServer) writeError(ctx *fasthttp.RequestCtx, err error) {
	status := fasthttp.StatusInternalServerError

	switch {
	case types.IsError(err, types.ErrCacheEntryNotFound):
		status = fasthttp.StatusNotFound
	case types.IsError(err, types.ErrCacheKeyEmpty),
		types.IsError(err, types.ErrCachePatternInvalid):
		status = fasthttp.StatusBadRequest
	case types.IsError(err, types.ErrCacheEntryMalformed):
		status = fasthttp.StatusUnprocessableEntity
	}

	h.writeJSON(ctx, status, map[string]string{"error": err.Error()})
}
