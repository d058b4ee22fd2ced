package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"sogif-site/internal/cache"
	"sogif-site/internal/leads"
	"sogif-site/internal/logging"
	"sogif-site/internal/metrics"
	"sogif-site/internal/storage"
)

// ConstantsCache is what the HTTP layer needs from the constants cache.
type ConstantsCache interface {
	Scoped() *cache.Scoped
	FetchedAt() (time.Time, bool)
	Window() time.Duration
}

// LeadSubmitter accepts lead-form submissions.
type LeadSubmitter interface {
	Submit(ctx context.Context, sub leads.Submission, client leads.Client) (storage.Lead, error)
}

// Options tune the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TrustedProxies  []string
	ReleaseMode     bool
	// Now overrides the clock used for download names and health ages.
	Now func() time.Time
}

// Server serves the site API.
type Server struct {
	cache   ConstantsCache
	leads   LeadSubmitter
	metrics *metrics.Registry
	opts    Options
	now     func() time.Time
	engine  *gin.Engine
	logger  zerolog.Logger
}

// New builds the router. leads and reg may be nil, which leaves out
// the lead endpoint and /metrics respectively.
func New(c ConstantsCache, leadSvc LeadSubmitter, reg *metrics.Registry, opts Options, logger zerolog.Logger) (*Server, error) {
	if c == nil {
		return nil, errors.New("server: constants cache is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cache:   c,
		leads:   leadSvc,
		metrics: reg,
		opts:    opts,
		now:     now,
		logger:  logger.With().Str("component", "server").Logger(),
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(recovery(s.logger), logging.AccessLog(logger), corsHandler(opts.AllowedOrigins))
	s.routes(engine)
	s.engine = engine
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/healthz", s.health)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	api := r.Group("/api/v1")
	{
		data := api.Group("", s.withConstants)
		data.GET("/constants", s.getConstants)
		data.GET("/page", s.getPage)
		data.GET("/sections/:name", s.getSection)
		data.GET("/performance.csv", s.getPerformanceCSV)

		if s.leads != nil {
			api.POST("/leads", s.postLead)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("NOT_FOUND", "Not found"))
	})
}
