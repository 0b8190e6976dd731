package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/defistate/ammquote-go/chains/ethereum"
	"github.com/defistate/ammquote-go/quoter"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	APIVersion = "v1"

	shutdownTimeout = 5 * time.Second
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Quoter is the quote service the API exposes.
type Quoter interface {
	QuoteExactIn(ctx context.Context, req quoter.QuoteRequest) (quoter.Quote, error)
	QuoteExactOut(ctx context.Context, req quoter.QuoteRequest) (quoter.Quote, error)
	PreviewZap(ctx context.Context, req quoter.ZapRequest) (quoter.ZapPreview, error)
	PreviewAddLiquidity(ctx context.Context, req quoter.AddLiquidityRequest) (quoter.AddLiquidityPreview, error)
	PreviewRemoveLiquidity(ctx context.Context, req quoter.RemoveLiquidityRequest) (quoter.RemoveLiquidityPreview, error)
	Defaults() quoter.Defaults
	State() *ethereum.State
}

// handler is a group of routes mounted under /api/v1/<Root()>.
type handler interface {
	Root() string
	SetRoutes(group *gin.RouterGroup)
}

type Config struct {
	Addr   string
	Quoter Quoter
	Logger Logger
	// Registerer receives the request metrics; Gatherer backs /metrics.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	// AllowOrigins lists the CORS origins; empty allows all.
	AllowOrigins []string
}

func (c *Config) validate() error {
	if c.Quoter == nil {
		return errors.New("config: Quoter is required")
	}
	if c.Logger == nil {
		return errors.New("config: Logger is required")
	}
	if c.Registerer == nil {
		return errors.New("config: Registerer is required")
	}
	if c.Gatherer == nil {
		return errors.New("config: Gatherer is required")
	}
	return nil
}

// Server serves the quote API over HTTP.
type Server struct {
	quoter  Quoter
	logger  Logger
	engine  *gin.Engine
	server  *http.Server
	metrics *httpMetrics
}

func NewServer(cfg Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Server{
		quoter:  cfg.Quoter,
		logger:  cfg.Logger,
		metrics: newHTTPMetrics(cfg.Registerer),
	}

	r := gin.New()
	r.Use(gin.Recovery())

	corsConf := cors.DefaultConfig()
	if len(cfg.AllowOrigins) == 0 {
		corsConf.AllowAllOrigins = true
	} else {
		corsConf.AllowOrigins = cfg.AllowOrigins
	}
	r.Use(cors.New(corsConf))
	r.Use(s.metrics.middleware())

	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("api").Group(APIVersion)
	for _, h := range []handler{
		&quoteHandler{server: s},
		&zapHandler{server: s},
		&liquidityHandler{server: s},
		&slippageHandler{server: s},
	} {
		h.SetRoutes(v1.Group(h.Root()))
	}

	s.engine = r
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// Handler returns the routed gin engine.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server started", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to stop HTTP server", "error", err)
		return err
	}
	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

type healthResponse struct {
	Status string            `json:"status"`
	Block  uint64            `json:"block,omitempty"`
	Stale  map[string]string `json:"stale,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	state := s.quoter.State()
	if state == nil {
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "waiting"})
		return
	}
	resp := healthResponse{Status: "ok", Stale: state.Errors}
	if state.Block.Number != nil {
		resp.Block = state.Block.Number.Uint64()
	}
	if len(state.Errors) > 0 {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}
