// Package server exposes the admin HTTP surface of a running sniffer:
// health, Prometheus metrics and live decode statistics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	logs "github.com/danmuck/thriftsniff/internal/logging"
	"github.com/danmuck/thriftsniff/internal/observability"
	"github.com/danmuck/thriftsniff/internal/report"
)

const shutdownTimeout = 5 * time.Second

// StatsFunc returns the current run summary.
type StatsFunc func() report.Summary

type Options struct {
	Addr    string
	Version string
	// CORSOrigins lists browser origins allowed to read the JSON
	// endpoints; empty means http://localhost:3000.
	CORSOrigins []string
	// Token, when set, is required as a bearer token on /stats.
	Token string
	Stats StatsFunc
}

type Admin struct {
	opts    Options
	started time.Time
	router  *gin.Engine
}

func NewAdmin(opts Options) *Admin {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.RequestLogger(observability.ComponentLogger("admin")))
	router.Use(observability.RequestMetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = router.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	a := &Admin{
		opts:    opts,
		started: time.Now(),
		router:  router,
	}
	a.registerRoutes()
	return a
}

func (a *Admin) Handler() http.Handler {
	return a.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *Admin) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.opts.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logs.Infof("server.Admin.Run listening addr=%s", a.opts.Addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logs.Warnf("server.Admin.Run shutdown err=%v", err)
		return err
	}
	logs.Infof("server.Admin.Run stopped addr=%s", a.opts.Addr)
	return nil
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
