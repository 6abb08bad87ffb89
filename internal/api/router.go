package api

import (
	"go-fastq-summary/internal/api/handler"
	"go-fastq-summary/pkg/router"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(r *router.Router, h *handler.RunHandler, reg *prometheus.Registry) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.GET("/api/v1/runs/*/counters", h.GetRunCounters)
	r.PATCH("/api/v1/runs/*/cancel", h.CancelRun)
	// Generic run routes last
	r.GET("/api/v1/runs/*", h.GetRun)
	r.DELETE("/api/v1/runs/*", h.DeleteRun)

	r.GET("/api/v1/download/*/*", h.DownloadSummary)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
}
