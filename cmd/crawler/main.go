package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/qfeng2015/speech-harvester/internal/app"
	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "path to config file")
		force      = flag.Bool("force", false, "re-crawl partitions already marked complete")
		cronSpec   = flag.String("cron", "", "cron expression; empty runs once and exits")
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

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutdown signal received, finishing current partition")
		cancel()
	}()

	p, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal("can't build pipeline", logger.Error(err))
	}
	defer p.Close(context.Background())

	runOnce := func() {
		report, err := p.Coordinator.Run(ctx, *force)
		if err != nil {
			log.Error("run aborted", logger.Error(err))
			return
		}
		log.Info("run complete",
			logger.Int64("persisted", report.Persisted),
			logger.Int64("duplicates", report.Duplicates),
			logger.Int64("failed", report.Failed),
		)
	}

	if *cronSpec == "" {
		runOnce()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*cronSpec, runOnce); err != nil {
		log.Fatal("invalid cron expression", logger.String("spec", *cronSpec), logger.Error(err))
	}
	log.Info("scheduler started", logger.String("spec", *cronSpec))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
}
