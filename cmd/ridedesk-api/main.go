// README: Entry point; loads config, wires stores and services, serves HTTP until signalled.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"ridedesk/internal/config"
	httptransport "ridedesk/internal/http"
	"ridedesk/internal/infra"
	"ridedesk/internal/logging"
	"ridedesk/internal/modules/matching"
	"ridedesk/internal/modules/notify"
	"ridedesk/internal/modules/offer"
	"ridedesk/internal/modules/presence"
	"ridedesk/internal/modules/pricing"
	"ridedesk/internal/modules/trip"
	"ridedesk/migrations"
)

type stores struct {
	trips    trip.Repository
	offers   offer.Ledger
	presence presence.Repository
	rates    pricing.RateSource
	recorder matching.DispatchRecorder
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logging.NewLogger(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ridedesk exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	verifier, err := infra.NewJWTVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}

	var st stores
	switch cfg.Storage {
	case "memory":
		log.Warn("using in-memory storage; state is lost on exit")
		st = stores{
			trips:    trip.NewMemoryStore(),
			offers:   offer.NewMemoryStore(),
			presence: presence.NewMemoryStore(),
		}
	default:
		dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			return err
		}
		defer dbPool.Close()
		if err := infra.Migrate(ctx, dbPool, migrations.FS); err != nil {
			return err
		}
		redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		st = stores{
			trips:    trip.NewStore(dbPool),
			offers:   offer.NewStore(dbPool),
			presence: presence.NewStore(redisClient),
			rates:    pricing.NewStore(dbPool),
			recorder: matching.NewStore(redisClient),
		}
	}

	hub := notify.NewHub(log)
	sinks := notify.Multi{hub, notify.NewLogSink(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		writer := infra.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer writer.Close()
		sinks = append(sinks, notify.NewKafkaSink(writer))
		log.Info("kafka notifications enabled", "topic", cfg.Kafka.Topic)
	}

	pricingSvc := pricing.NewService(st.rates)
	tripSvc := trip.NewService(st.trips, pricingSvc, st.offers, log)
	presenceSvc := presence.NewService(st.presence, log)
	offerSvc := offer.NewService(st.trips, st.offers, presenceSvc, sinks, log)
	matchingSvc := matching.NewService(tripSvc, presenceSvc, st.offers, sinks, st.recorder, cfg.Matching, log)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Trips:    tripSvc,
		Offers:   offerSvc,
		Presence: presenceSvc,
		Matching: matchingSvc,
		Pricing:  pricingSvc,
		Hub:      hub,
		Verifier: verifier,
		Log:      log,
	})
	return httptransport.NewServer(cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout, log).Run(ctx)
}
