package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qfeng2015/speech-harvester/api/handlers"
	"github.com/qfeng2015/speech-harvester/api/routes"
	"github.com/qfeng2015/speech-harvester/internal/config"
	"github.com/qfeng2015/speech-harvester/internal/service/speech"
	"github.com/qfeng2015/speech-harvester/internal/store"
	"github.com/qfeng2015/speech-harvester/pkg/logger"
	"github.com/qfeng2015/speech-harvester/pkg/queue"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
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

	ctx := context.Background()
	st, err := store.NewStore(ctx, cfg.Mongo, log)
	if err != nil {
		log.Fatal("can't reach document store", logger.Error(err))
	}
	defer st.Close(ctx)

	q := queue.NewClient(cfg.Redis.Addr, cfg.Redis.DB)
	defer q.Close()

	svc := speech.NewService(st, log)
	h := handlers.NewHandlers(svc, q, log)

	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: r}

	go func() {
		log.Info("query service listening", logger.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", logger.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", logger.Error(err))
	}
}
