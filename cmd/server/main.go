package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	adminhandler "coopmarket/internal/admin/handler"
	adminservice "coopmarket/internal/admin/service"
	"coopmarket/internal/audit"
	auctionhandler "coopmarket/internal/auction/handler"
	auctionservice "coopmarket/internal/auction/service"
	auctionstore "coopmarket/internal/auction/store"
	"coopmarket/internal/identity"
	"coopmarket/internal/identity/provider"
	"coopmarket/internal/jwttoken"
	orderhandler "coopmarket/internal/order/handler"
	orderservice "coopmarket/internal/order/service"
	orderstore "coopmarket/internal/order/store"
	"coopmarket/internal/platform/config"
	"coopmarket/internal/platform/httpserver"
	"coopmarket/internal/platform/logger"
	"coopmarket/internal/platform/metrics"
	"coopmarket/internal/platform/postgres"
	platformredis "coopmarket/internal/platform/redis"
	producthandler "coopmarket/internal/product/handler"
	productservice "coopmarket/internal/product/service"
	productstore "coopmarket/internal/product/store"
	"coopmarket/internal/relay"
	httptransport "coopmarket/internal/transport/http"
	useradapters "coopmarket/internal/user/adapters"
	userhandler "coopmarket/internal/user/handler"
	userservice "coopmarket/internal/user/service"
	userstore "coopmarket/internal/user/store"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	appMetrics := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Single database handle shared by every store; nil means in-memory mode.
	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Stores.
	var (
		users    userstore.Store
		products productstore.Store
		auctions auctionstore.Store
		orders   orderstore.Store
		audits   audit.Store
	)
	if db != nil {
		users = userstore.NewPostgres(db)
		products = productstore.NewPostgres(db)
		auctions = auctionstore.NewPostgres(db)
		orders = orderstore.NewPostgres(db)
		audits = audit.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		users = userstore.NewInMemory()
		products = productstore.NewInMemory()
		auctions = auctionstore.NewInMemory()
		orders = orderstore.NewInMemory()
		audits = audit.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Audit pipeline.
	auditor := audit.NewPublisher(cfg.AuditBuffer, log)
	auditWorker := audit.NewWorker(audits, auditor.Inbox(), log)

	// Identity: token services, verification strategies, per-group resolvers.
	tokens := jwttoken.NewService(cfg.JWTSigningKey, "coopmarket", cfg.SessionTokenTTL, cfg.ResetTokenTTL)
	directory := useradapters.NewDirectory(users)

	var strategies []identity.Strategy
	if cfg.Provider.Configured() {
		verifier, err := provider.NewTokenVerifier(cfg.Provider.PublicKeyPEM, cfg.Provider.Issuer, cfg.Provider.Audience)
		if err != nil {
			return err
		}
		strategies = []identity.Strategy{
			identity.NewProviderStrategy(verifier, directory),
			identity.NewSelfIssuedStrategy(tokens, directory),
		}
	}

	providerFirst := identity.NewResolver(strategies, cfg.IsDevelopment(), log, appMetrics)
	selfFirst := providerFirst
	if len(strategies) == 2 {
		selfFirst = identity.NewResolver(
			[]identity.Strategy{strategies[1], strategies[0]},
			cfg.IsDevelopment(), log, appMetrics,
		)
	}

	// Domain services.
	userSvc := userservice.New(users, tokens, auditor, appMetrics)
	productSvc := productservice.New(products, users, auditor, appMetrics)
	auctionSvc := auctionservice.New(auctions, products, users, auditor, appMetrics)
	orderSvc := orderservice.New(orders, products, users, auditor, appMetrics)
	adminSvc := adminservice.New(users, adminservice.Counters{
		Users:    users,
		Products: products,
		Auctions: auctions,
		Orders:   orders,
	}, audits, auditor)

	// Relay: in-process hub, optionally bridged across instances via Redis.
	hub := relay.NewHub(log, appMetrics)
	auctionSvc.SetEvents(hub)
	var bridge *relay.RedisBridge
	if redisClient != nil {
		bridge = relay.NewRedisBridge(redisClient, hub, log)
		hub.SetBridge(bridge)
	}

	lifecycle := auctionservice.NewLifecycle(auctionSvc, 0, log)

	router := httptransport.New(httptransport.Options{
		Logger:  log,
		Metrics: appMetrics,
		API: []httptransport.Registrar{
			userhandler.New(userSvc, selfFirst, log),
			producthandler.New(productSvc, providerFirst, log),
			auctionhandler.New(auctionSvc, providerFirst, log),
			orderhandler.New(orderSvc, providerFirst, log),
			adminhandler.New(adminSvc, providerFirst, log),
		},
		Raw: []httptransport.Registrar{
			relay.NewHandler(hub, auctionSvc, providerFirst, log, appMetrics),
		},
		Health: []func() error{
			func() error {
				if db == nil {
					return nil
				}
				return db.PingContext(ctx)
			},
			func() error {
				if redisClient == nil {
					return nil
				}
				return redisClient.Health(ctx)
			},
		},
	})

	server := httpserver.New(httpserver.Options{
		Addr:              cfg.Addr,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return auditWorker.Run(gctx) })
	g.Go(func() error { return lifecycle.Run(gctx) })
	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
