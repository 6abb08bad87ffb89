package main

import (
	"os"
	"os/signal"
	"syscall"

	"go-fastq-summary/internal/api"
	"go-fastq-summary/internal/api/handler"
	"go-fastq-summary/internal/config"
	"go-fastq-summary/internal/logging"
	"go-fastq-summary/internal/pipeline"
	"go-fastq-summary/internal/store"
	"go-fastq-summary/pkg/router"
	"go-fastq-summary/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadOrDefault()
	logCfg := logging.DefaultConfig(max(cfg.Log.Verbosity, 1))
	log := logging.Must(logCfg)
	defer log.Sync()

	// Init DB
	if err := store.InitDB(cfg.Server.DB); err != nil {
		log.Fatal("Failed to open run ledger", zap.String("db", cfg.Server.DB), zap.Error(err))
	}
	defer store.CloseDB()

	outputs := utils.NewOutputManager(cfg.Server.OutputDir)
	if err := outputs.EnsureOutputDirExists(); err != nil {
		log.Fatal("Failed to create output directory", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	runs := handler.NewRunHandler(log, pipeline.NewMetrics(reg), outputs, cfg)

	// Create router
	r := router.New(log, logCfg.Console)

	// Register API routes
	api.RegisterRoutes(r, runs, reg)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Warn("Shutting down, cancelling active runs")
		runs.Shutdown()
		store.CloseDB()
		os.Exit(0)
	}()

	// Start server
	if err := r.Start(cfg.Server.Addr); err != nil {
		log.Fatal("Server stopped", zap.Error(err))
	}
}
