package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/thriftsniff/internal/auth"
	"github.com/danmuck/thriftsniff/internal/report"
)

func (a *Admin) registerRoutes() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(a.started).Round(time.Second).String(),
			"service": "thriftsniff",
			"version": a.opts.Version,
		})
	})

	a.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	stats := a.router.Group("/stats")
	if a.opts.Token != "" {
		stats.Use(auth.RequireBearer(auth.StaticToken{Token: a.opts.Token}))
	}
	stats.GET("", func(c *gin.Context) {
		if a.opts.Stats == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "no sniffer running"})
			return
		}
		c.JSON(http.StatusOK, statsBody(a.opts.Stats()))
	})
}

func statsBody(s report.Summary) gin.H {
	return gin.H{
		"payloads": s.Payloads,
		"decoded":  s.Decoded,
		"failed":   s.Failed,
		"methods":  s.Methods,
		"kinds":    s.Kinds,
		"errors":   s.Errors,
	}
}
