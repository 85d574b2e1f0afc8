package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/mithaiwala/sweetshop/internal/auth"
	"github.com/mithaiwala/sweetshop/internal/catalog"
	"github.com/mithaiwala/sweetshop/internal/config"
	"github.com/mithaiwala/sweetshop/internal/httpx"
	kafkax "github.com/mithaiwala/sweetshop/internal/kafka"
	"github.com/mithaiwala/sweetshop/internal/logging"
	"github.com/mithaiwala/sweetshop/internal/orders"
	"github.com/mithaiwala/sweetshop/internal/payment"
	"github.com/mithaiwala/sweetshop/internal/postgres"
	"github.com/mithaiwala/sweetshop/internal/purchase"
	"github.com/mithaiwala/sweetshop/internal/redisx"
	"github.com/mithaiwala/sweetshop/internal/users"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.MustNewLogger(cfg.ServiceName, cfg.Env)
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer for order events
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
	prod.Start(ctx)

	// Repos & services
	store := &catalog.Store{DB: db}
	ledger := &orders.Ledger{DB: db}
	userRepo := &users.Repo{DB: db}
	gateway := payment.NewClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	if gateway.Simulated() {
		log.Warn("razorpay keys missing, payment orders will be simulated")
	}
	events := &orders.EventPublisher{Producer: prod, Service: cfg.ServiceName}
	purchases := purchase.NewService(store, ledger, gateway, events)

	if err := users.SeedAdmin(ctx, userRepo, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword, log); err != nil {
		log.Fatal("seed admin", zap.Error(err))
	}

	// Auth
	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	blacklist := &auth.Blacklist{RDB: rdb}
	authMW := httpx.Authenticator(tokens, blacklist)

	// Router & handlers
	router := httpx.NewRouter(log)
	(&httpx.SweetsHandler{
		Catalog:   store,
		Purchases: purchases,
		Redis:     rdb,
		Auth:      authMW,
	}).Register(router)
	(&httpx.UsersHandler{
		Store:     userRepo,
		Tokens:    tokens,
		Blacklist: blacklist,
		Auth:      authMW,
	}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox -> flush & close writer
	prod.WaitClosed()
}
