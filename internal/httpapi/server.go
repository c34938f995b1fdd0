// Package httpapi exposes the dashboard over HTTP: notices, regions, refresh
// tasks, preferences, forms, shortcuts, charts, a server-sent event stream and
// the Prometheus endpoint.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"edgeadmin/internal/board"
	"edgeadmin/internal/chart"
	"edgeadmin/internal/eventbus"
	"edgeadmin/internal/notice"
	"edgeadmin/internal/refresh"
	"edgeadmin/internal/storage"
	logx "edgeadmin/pkg/logx"
)

// Deps are the components the handlers operate on. Metrics may be nil.
type Deps struct {
	Notices *notice.Manager
	Board   *board.Board
	Refresh *refresh.Scheduler
	Prefs   *storage.Prefs
	Charts  *chart.Registry
	Bus     eventbus.Bus
	Metrics http.Handler
	Log     logx.Logger
	Started time.Time
}

// Options controls the listener and optional debug routes.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	Pprof      bool
	PprofToken string
}

type Server struct {
	d      Deps
	opts   Options
	log    logx.Logger
	engine *gin.Engine
}

func New(d Deps, opts Options) *Server {
	if d.Bus == nil {
		d.Bus = eventbus.Nop{}
	}
	if d.Charts == nil {
		d.Charts = chart.NewRegistry()
	}
	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	if strings.TrimSpace(opts.Addr) == "" {
		opts.Addr = "127.0.0.1:8080"
	}
	s := &Server{d: d, opts: opts, log: d.Log.With(logx.String("comp", "http"))}

	r := gin.New()
	r.Use(s.recovery(), s.accessLog())
	s.routes(r)
	s.engine = r
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)
	if s.d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.d.Metrics))
	}
	if s.opts.Pprof {
		s.mountPprof(r)
	}

	api := r.Group("/api")
	{
		api.GET("/events", s.handleEvents)

		api.GET("/notices", s.handleListNotices)
		api.POST("/notices", s.handlePublishNotice)
		api.DELETE("/notices/:id", s.handleDismissNotice)

		api.GET("/regions", s.handleListRegions)
		api.PUT("/regions/:id", s.handleDeclareRegion)
		api.GET("/regions/:id", s.handleGetRegion)
		api.DELETE("/regions/:id", s.handleDropRegion)

		api.GET("/refresh", s.handleListRefresh)
		api.POST("/refresh", s.handleStartRefresh)
		api.PUT("/refresh/enabled", s.handleSetRefreshEnabled)
		api.POST("/refresh/toggle", s.handleToggleRefresh)
		api.DELETE("/refresh/:key", s.handleStopRefresh)

		api.POST("/visibility", s.handleVisibility)

		api.GET("/prefs/:key", s.handleGetPref)
		api.PUT("/prefs/:key", s.handleSetPref)
		api.DELETE("/prefs/:key", s.handleRemovePref)
		api.DELETE("/prefs", s.handleClearPrefs)

		api.POST("/forms/validate", s.handleValidateForm)

		api.GET("/shortcuts", s.handleListShortcuts)
		api.POST("/shortcuts/dispatch", s.handleDispatchShortcut)

		api.GET("/charts", s.handleListCharts)
		api.GET("/charts/:id", s.handleGetChart)
		api.DELETE("/charts/:id", s.handleDeleteChart)
		api.PUT("/charts/:id", s.handlePutChart)
		api.POST("/charts/:id/data", s.handleChartData)
	}
}

// Serve listens on opts.Addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.opts.WriteTimeout,
		IdleTimeout:       s.opts.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Event streams outlive the grace period; cut them.
		_ = srv.Close()
	}
	<-errCh
	s.log.Info("http stopped")
	return nil
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("http handler panic",
					logx.String("method", c.Request.Method),
					logx.String("path", c.Request.URL.Path),
					logx.Any("panic", r),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			}
		}()
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)),
		)
	}
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func notFound(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": what + " not found"})
}
