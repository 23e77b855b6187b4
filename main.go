package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"chatrelay/data/mgo"
	"chatrelay/global/config"
	"chatrelay/logger"
	"chatrelay/service/relay"
	"chatrelay/service/relay/handlers"
	"chatrelay/service/storage"
	redisx "chatrelay/service/storage/redis"
	"chatrelay/tools/ids"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("[main] config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	ids.SetNodeID(cfg.NodeID)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcli, err := mgo.Open(ctx, mgo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
	if err != nil {
		logger.Errorf("[main] mongo: %v", err)
		os.Exit(1)
	}
	defer func() { _ = mcli.Close(context.Background()) }()

	store := storage.NewMongoStore(mcli.DB())
	bridge := storage.NewBridge(store, cfg.StoreTimeout)

	var presence *storage.Presence
	if cfg.RedisAddr != "" {
		rdb, rerr := redisx.Open(redisx.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if rerr != nil {
			logger.Warnf("[main] redis unavailable, presence mirror disabled: %v", rerr)
		} else {
			defer func() { _ = rdb.Close() }()
			presence = storage.NewPresence(rdb, cfg.PresenceTTL)
		}
	}

	srv := relay.NewServer(relay.Options{
		SendQueueSize: cfg.SendQueueSize,
		ReadLimit:     cfg.ReadLimit,
		WriteWait:     cfg.WriteWait,
		PongWait:      cfg.PongWait,
		PingPeriod:    cfg.PingPeriod,
		JoinTimeout:   cfg.JoinTimeout,
		MessageRate:   cfg.MessageRate,
		MessageBurst:  cfg.MessageBurst,
		FanoutWorkers: cfg.FanoutWorkers,
		FanoutQueue:   cfg.FanoutQueue,
	}, bridge, presence)
	handlers.RegisterAll(srv)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", srv.HandleWS)
	r.GET("/api/presence/:companyId", srv.HandlePresence)
	r.GET("/healthz", func(c *gin.Context) {
		pctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if perr := store.Ping(pctx); perr != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "store": perr.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	go func() {
		if serr := httpSrv.ListenAndServe(); serr != nil && !stderrors.Is(serr, http.ErrServerClosed) {
			logger.Errorf("[main] http server: %v", serr)
			stop()
		}
	}()
	logger.Infof("[main] relay listening on :%d", cfg.Port)

	<-ctx.Done()
	logger.Infof("[main] shutting down")

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)
}
