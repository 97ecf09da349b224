package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/qfeng2015/speech-harvester/internal/app"
	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/worker"
)

func main() {
	var (
		configPath  = flag.String("config", "config/config.yaml", "path to config file")
		concurrency = flag.Int("concurrency", 2, "concurrent ingest tasks")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.FromConfig(&cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("can't build pipeline", logger.Error(err))
	}
	defer p.Close(context.Background())

	w := worker.NewIngestWorker(&worker.Config{
		RedisAddr:   cfg.Redis.Addr,
		RedisDB:     cfg.Redis.DB,
		Concurrency: *concurrency,
	}, p.Coordinator, log)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutting down worker")
		cancel()
	}()

	if err := w.Start(ctx); err != nil {
		log.Error("worker stopped", logger.Error(err))
		os.Exit(1)
	}
}
