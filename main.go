package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ChatWave/global"
	"ChatWave/logger"
	"ChatWave/middleware"
	"ChatWave/service/chat"
	"ChatWave/service/relay"
	"ChatWave/service/storage"
	"ChatWave/tools/ids"
	"ChatWave/tools/safe"
)

func main() {
	var confPath string
	flag.StringVar(&confPath, "config", "", "path to config json (optional)")
	flag.Parse()

	cfg, err := global.Load(confPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	ids.SetNodeID(cfg.Gateway.NodeID)

	ctx := context.Background()

	// persistence collaborators
	var (
		store   chat.MessageStore
		members chat.MembershipChecker
	)
	if cfg.Mongo.URI != "" {
		db, err := storage.NewMongo(ctx, storage.MongoConfig{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			MaxPoolSize: 20,
		})
		if err != nil {
			logger.Errorf("mongo init: %v", err)
			os.Exit(1)
		}
		store = storage.NewMongoMessages(db)
		members = storage.NewMongoMembership(db)
	} else {
		logger.Warnf("no mongo uri configured, using in-memory store (dev mode)")
		store = storage.NewMemStore()
		members = storage.NewMemMembership()
	}

	nodeID := fmt.Sprintf("gw-%d", cfg.Gateway.NodeID)
	var opts []chat.Option

	if cfg.Redis.Addr != "" {
		rdb, err := storage.NewRedis(storage.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Errorf("redis init: %v", err)
			os.Exit(1)
		}
		opts = append(opts, chat.WithPresenceMirror(
			storage.NewRedisPresence(rdb, nodeID, cfg.Redis.PresenceTTL())))
	}

	if cfg.Nats.URL != "" {
		rl, err := relay.New(relay.Config{
			URL:           cfg.Nats.URL,
			Name:          nodeID,
			SubjectPrefix: cfg.Nats.SubjectPrefix,
		})
		if err != nil {
			logger.Errorf("nats init: %v", err)
			os.Exit(1)
		}
		defer rl.Close()
		opts = append(opts, chat.WithEventRelay(rl))
	}

	srv := chat.NewServer(chat.Config{
		NodeID:           nodeID,
		SendQueueSize:    cfg.Gateway.SendQueueSize,
		FanoutWorkers:    cfg.Gateway.FanoutWorkers,
		FanoutQueue:      cfg.Gateway.FanoutQueue,
		HandshakeTimeout: cfg.Auth.HandshakeTimeout(),
		PingInterval:     cfg.Gateway.PingInterval(),
		PongTimeout:      cfg.Gateway.PongTimeout(),
	}, chat.NewJWTVerifier([]byte(cfg.Auth.Secret)), members, store, opts...)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", middleware.Origin(cfg.Server.AllowedOrigins), srv.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"online_users": len(srv.Registry().ListOnline())})
	})

	httpSrv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	safe.Go(func() {
		logger.Infof("gateway listening on %s node=%s", cfg.Server.Addr, nodeID)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("listen: %v", err)
			os.Exit(1)
		}
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("http shutdown: %v", err)
	}
	srv.Close()
}
