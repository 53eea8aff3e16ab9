package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go_trial/foodhub/auth"
	"go_trial/foodhub/config"
	"go_trial/foodhub/handlers"
	"go_trial/foodhub/middleware"
	"go_trial/foodhub/middleware/logkafka"
	"go_trial/foodhub/notify"
	"go_trial/foodhub/orders"
	"go_trial/foodhub/payments"
	"go_trial/foodhub/store"
	"go_trial/foodhub/telem"
	"go_trial/foodhub/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

const serviceName = "foodhub-api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := telem.InitMetrics(ctx, serviceName)
	if err != nil {
		return err
	}
	defer shutdownMetrics(context.Background())
	shutdownTracing, err := telem.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	events, err := openNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer events.Close()

	var gateway payments.Gateway = payments.Unconfigured{}
	if cfg.StripeSecretKey != "" {
		gateway = payments.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set, payment endpoints are disabled")
	}

	handlers.Init(prometheus.DefaultRegisterer)
	middleware.RegisterMetrics(prometheus.DefaultRegisterer)

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	h := handlers.New(handlers.Deps{
		Store:       st,
		Orders:      orders.NewService(st, events, utils.Component(log, "orders")),
		Payments:    gateway,
		Tokens:      tokens,
		Events:      events,
		Log:         utils.Component(log, "http"),
		Development: cfg.IsDevelopment(),
	})
	var handler http.Handler = h.Routes(middleware.NewAuthenticator(tokens, st, log))

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		handler = middleware.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateWindow, log).Middleware(handler)
	}
	if cfg.NotifyBackend == "kafka" {
		sink := logkafka.NewSink(cfg.KafkaBrokers, cfg.KafkaLogsTopic, cfg.Env, log)
		defer sink.Close()
		handler = sink.Middleware(handler)
	}
	handler = cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "token"},
		AllowCredentials: true,
	}).Handler(handler)

	srv := &http.Server{
		Handler:      handler,
		Addr:         ":" + cfg.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Env, "store", cfg.StoreBackend, "notify", cfg.NotifyBackend)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.StoreBackend == "memory" {
		log.Warn("using in-memory store, data is lost on exit")
		return store.NewMemory(), nil
	}
	client, err := utils.InitMongoClient(ctx, cfg.MongoURI)
	if err != nil {
		return nil, err
	}
	m := store.NewMongo(client, cfg.MongoDB)
	if err := m.EnsureIndexes(ctx); err != nil {
		_ = m.Close(context.Background())
		return nil, err
	}
	log.Info("connected to mongo", "db", cfg.MongoDB)
	return m, nil
}

func openNotifier(cfg *config.Config, log *slog.Logger) (notify.Broadcaster, error) {
	switch cfg.NotifyBackend {
	case "kafka":
		return notify.NewKafka(cfg.KafkaBrokers, cfg.KafkaEventsTopic, utils.Component(log, "notify")), nil
	case "amqp":
		return notify.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, utils.Component(log, "notify"))
	case "log":
		return notify.Log{Logger: utils.Component(log, "notify")}, nil
	}
	return notify.Nop{}, nil
}
