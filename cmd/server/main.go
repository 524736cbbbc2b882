package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	commenthandler "unitedhelp/internal/comment/handler"
	commentservice "unitedhelp/internal/comment/service"
	commentstore "unitedhelp/internal/comment/store"
	eventhandler "unitedhelp/internal/event/handler"
	eventmetrics "unitedhelp/internal/event/metrics"
	eventservice "unitedhelp/internal/event/service"
	eventstore "unitedhelp/internal/event/store"
	httpapi "unitedhelp/internal/http"
	"unitedhelp/internal/jwttoken"
	"unitedhelp/internal/location"
	geocache "unitedhelp/internal/location/cache"
	"unitedhelp/internal/location/geocoder"
	"unitedhelp/internal/notification"
	"unitedhelp/internal/notification/gateway"
	notificationmetrics "unitedhelp/internal/notification/metrics"
	"unitedhelp/internal/platform/config"
	"unitedhelp/internal/platform/httpserver"
	"unitedhelp/internal/platform/logger"
	"unitedhelp/internal/platform/otel"
	"unitedhelp/internal/platform/postgres"
	"unitedhelp/internal/platform/redis"
	profilehandler "unitedhelp/internal/profile/handler"
	profilemetrics "unitedhelp/internal/profile/metrics"
	profileservice "unitedhelp/internal/profile/service"
	profilestore "unitedhelp/internal/profile/store"
	ratinghandler "unitedhelp/internal/rating/handler"
	ratingmetrics "unitedhelp/internal/rating/metrics"
	ratingservice "unitedhelp/internal/rating/service"
	ratingstore "unitedhelp/internal/rating/store"
	skillhandler "unitedhelp/internal/skill/handler"
	skillservice "unitedhelp/internal/skill/service"
	skillstore "unitedhelp/internal/skill/store"
	"unitedhelp/pkg/platform/audit"
	"unitedhelp/pkg/platform/audit/kafka"
	"unitedhelp/pkg/platform/audit/publisher"
	auditmemory "unitedhelp/pkg/platform/audit/store/memory"
	auditpostgres "unitedhelp/pkg/platform/audit/store/postgres"
	"unitedhelp/pkg/platform/circuit"
)

// userStore and profileStore serve both the profile and event services.
type userStore interface {
	profileservice.UserStore
	eventservice.UserReader
}

type profileStore interface {
	profileservice.ProfileStore
	eventservice.ProfileReader
}

// stores groups the repositories chosen by UH_DATABASE_URL.
type stores struct {
	events   eventstore.TxStore
	users    userStore
	profiles profileStore
	votes    ratingservice.VotingStore
	comments commentstore.Store
	skills   skillstore.Store
	audit    audit.Store
	// ping is nil for in-memory stores.
	ping func(context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("trace shutdown failed", "error", err)
		}
	}()

	st, closeStores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	auditPublisher, closeAudit, err := buildAuditPublisher(ctx, cfg, st.audit, log)
	if err != nil {
		return err
	}
	defer closeAudit()

	checks := map[string]func(context.Context) error{}
	if st.ping != nil {
		checks["postgres"] = st.ping
	}

	resolver, closeResolver, err := buildResolver(ctx, cfg, checks, log)
	if err != nil {
		return err
	}
	defer closeResolver()

	ratings, err := ratingservice.New(st.votes, st.events, st.profiles,
		ratingservice.WithLogger(log),
		ratingservice.WithAuditPublisher(auditPublisher),
		ratingservice.WithMetrics(ratingmetrics.New()),
	)
	if err != nil {
		return err
	}
	profiles, err := profileservice.New(st.users, st.profiles,
		profileservice.WithLogger(log),
		profileservice.WithAuditPublisher(auditPublisher),
		profileservice.WithMetrics(profilemetrics.New()),
		profileservice.WithRatingSource(ratings),
	)
	if err != nil {
		return err
	}
	comments, err := commentservice.New(st.comments, st.events, commentservice.WithLogger(log))
	if err != nil {
		return err
	}
	skills, err := skillservice.New(st.skills, skillservice.WithLogger(log))
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}

	eventOpts := []eventservice.Option{
		eventservice.WithLogger(log),
		eventservice.WithAuditPublisher(auditPublisher),
		eventservice.WithMetrics(eventmetrics.New()),
		eventservice.WithNotifier(notifier),
		eventservice.WithRatingSource(ratings),
		eventservice.WithCommentCounter(comments),
		eventservice.WithSkillReader(st.skills),
		eventservice.WithPublicBaseURL(cfg.PublicBaseURL),
	}
	if resolver != nil {
		eventOpts = append(eventOpts, eventservice.WithLocationResolver(resolver))
	}
	events, err := eventservice.New(st.events, st.users, st.profiles, eventOpts...)
	if err != nil {
		return err
	}

	eventHandler := eventhandler.New(events, log)
	skillHandler := skillhandler.New(skills, log)
	router := httpapi.NewRouter(httpapi.Config{
		CORSOrigins: cfg.CORSOrigins,
		AdminToken:  cfg.Auth.AdminToken,
		Validator:   jwttoken.NewMiddlewareAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)),
		Logger:      log,
		ReadyChecks: checks,
	}, []httpapi.Registrar{
		profilehandler.New(profiles, log),
		eventHandler,
		commenthandler.New(comments, log),
		ratinghandler.New(ratings, log),
		skillHandler,
	}, []httpapi.AdminRegistrar{
		eventHandler,
		skillHandler,
	})

	log.Info("starting unitedhelp", "addr", cfg.Addr, "postgres", cfg.DatabaseURL != "")
	if err := httpserver.Run(ctx, httpserver.New(cfg.Addr, router), 15*time.Second); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("UH_DATABASE_URL not set, using in-memory stores")
		return &stores{
			events:   eventstore.NewInMemoryEventStore().WithTxTimeout(cfg.TxTimeout),
			users:    profilestore.NewInMemoryUserStore(),
			profiles: profilestore.NewInMemoryProfileStore(),
			votes:    ratingstore.NewInMemoryVotingStore(),
			comments: commentstore.NewInMemoryCommentStore(),
			skills:   skillstore.NewInMemorySkillStore(),
			audit:    auditmemory.NewInMemoryStore(),
		}, func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	st := postgresStores(db, cfg.TxTimeout)
	st.ping = db.PingContext
	return st, func() { _ = db.Close() }, nil
}

func postgresStores(db *sql.DB, txTimeout time.Duration) *stores {
	return &stores{
		events:   eventstore.NewPostgresEventStore(db, txTimeout),
		users:    profilestore.NewPostgresUserStore(db),
		profiles: profilestore.NewPostgresProfileStore(db),
		votes:    ratingstore.NewPostgresVotingStore(db),
		comments: commentstore.NewPostgresCommentStore(db),
		skills:   skillstore.NewPostgresSkillStore(db),
		audit:    auditpostgres.New(db),
	}
}

// buildAuditPublisher persists audit events and mirrors them to Kafka when
// brokers are configured.
func buildAuditPublisher(ctx context.Context, cfg config.Config, store audit.Store, log *slog.Logger) (*publisher.Publisher, func(), error) {
	opts := []publisher.Option{publisher.WithLogger(log), publisher.WithAsyncBuffer(1024)}
	closeClient := func() {}
	if len(cfg.Kafka.Brokers) > 0 {
		client, err := kafka.NewClient(cfg.Kafka.Brokers)
		if err != nil {
			return nil, nil, err
		}
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.AuditTopic, 3, 1); err != nil {
			client.Close()
			return nil, nil, err
		}
		opts = append(opts, publisher.WithSink(kafka.NewSink(client, cfg.Kafka.AuditTopic)))
		closeClient = client.Close
	}
	p := publisher.NewPublisher(store, opts...)
	return p, func() {
		p.Close()
		closeClient()
	}, nil
}

// buildResolver returns nil when no geocoder is configured. Results are cached
// in Redis, falling back to process memory while Redis is failing. The Redis
// health check is registered in checks.
func buildResolver(ctx context.Context, cfg config.Config, checks map[string]func(context.Context) error, log *slog.Logger) (*location.CachingResolver, func(), error) {
	if cfg.Geo.URL == "" {
		return nil, func() {}, nil
	}
	upstream := geocoder.New(cfg.Geo.URL, geocoder.WithTimeout(cfg.Geo.Timeout))
	fallback := geocache.NewMemoryCache(cfg.Redis.CacheTTL)

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if rc == nil {
		return location.NewCachingResolver(upstream, fallback, log), func() {}, nil
	}
	checks["redis"] = rc.Health
	cache := geocache.NewFailoverCache(
		geocache.NewRedisCache(rc.Client, cfg.Redis.CacheTTL),
		fallback,
		circuit.New("geocode-cache"),
		log,
	)
	return location.NewCachingResolver(upstream, cache, log), func() { _ = rc.Close() }, nil
}

// buildNotifier picks FCM when credentials are configured, then the HTTP push
// gateway, and otherwise only logs payloads.
func buildNotifier(ctx context.Context, cfg config.Config, log *slog.Logger) (*notification.Notifier, error) {
	var gw notification.Gateway
	switch {
	case cfg.Push.FCMCredentialsFile != "":
		client, err := gateway.NewFCMClient(ctx, cfg.Push.FCMCredentialsFile, cfg.Push.FCMProjectID)
		if err != nil {
			return nil, err
		}
		gw = gateway.NewFCMGateway(client)
	case cfg.Push.GatewayURL != "":
		gw = gateway.NewHTTPGateway(cfg.Push.GatewayURL, cfg.Push.GatewayKey, &http.Client{})
	default:
		log.Warn("no push gateway configured, notifications are logged only")
		gw = gateway.NewLogGateway(log)
	}
	return notification.New(gw,
		notification.WithLogger(log),
		notification.WithMetrics(notificationmetrics.New()),
		notification.WithBatchSize(cfg.Push.BatchSize),
		notification.WithBatchTimeout(cfg.Push.BatchTimeout),
		notification.WithConcurrency(cfg.Push.Concurrency),
	), nil
}
