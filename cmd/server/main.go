package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/callgate/internal/adapters/http"
	wssignal "github.com/dkeye/callgate/internal/adapters/signal"
	"github.com/dkeye/callgate/internal/app"
	"github.com/dkeye/callgate/internal/app/orch"
	"github.com/dkeye/callgate/internal/auth"
	"github.com/dkeye/callgate/internal/booking"
	"github.com/dkeye/callgate/internal/config"
	"github.com/dkeye/callgate/internal/presence"
	"github.com/dkeye/callgate/internal/session"
	"github.com/dkeye/callgate/internal/turn"
)

const shutdownTimeout = 5 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	dir, beaconStore, closeStores, err := buildStores(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up stores")
	}
	defer closeStores()

	issuer, err := auth.NewIssuer(cfg.SignalingSecret, cfg.JoinTokenTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create join token issuer")
	}
	relays := turn.NewClient(turn.Config{
		AccountSID: cfg.TURNAccountSID,
		AuthToken:  cfg.TURNAuthToken,
		APIBase:    cfg.TURNAPIBase,
		TTL:        cfg.TURNTTL(),
		Timeout:    cfg.TURNTimeout,
	})
	if !relays.Configured() {
		log.Warn().Msg("TURN provider not configured; /turn will answer 503")
	}
	sessions := session.NewService(dir, issuer, relays, session.Config{
		Secret:         cfg.SignalingSecret,
		ICEServersJSON: cfg.ICEServersJSON,
		DevMode:        cfg.DevMode,
		Location:       cfg.Location(),
		Margin:         cfg.JoinWindowMargin,
	})

	slowPeer, err := app.ParseBackpressureAction(cfg.SlowPeer)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid slow_peer_action")
	}
	reg := app.NewRegistry()
	o := &orch.Orchestrator{
		Registry: reg,
		Policy:   app.SimplePolicy{Action: slowPeer},
		Verifier: auth.NewJWTVerifier(cfg.SignalingSecret),
	}
	ws := wssignal.NewSignalWSController(o, wssignal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
	handlers := &router.Handlers{
		Sessions: sessions,
		Bookings: dir,
		Beacon:   presence.NewBeacon(beaconStore, cfg.WaitingTTL()),
		Registry: reg,
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.SetupRouter(ctx, cfg, handlers, ws),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("callgate server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		err := srv.Shutdown(shutdownCtx)
		// hijacked websockets are not tracked by http.Server
		reg.CloseAll()
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

// buildStores picks Redis when redis_addr is set, otherwise in-memory stores
// seeded from bookings_file.
func buildStores(ctx context.Context, cfg *config.Config) (booking.Directory, presence.Store, func(), error) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis stores")
		closeFn := func() { _ = client.Close() }
		return booking.NewRedisDirectory(client, cfg.RedisPrefix),
			presence.NewRedisStore(client, cfg.RedisPrefix, cfg.WaitingTTL()),
			closeFn, nil
	}

	dir := booking.NewMemoryDirectory()
	if cfg.BookingsFile != "" {
		loaded, err := booking.LoadFile(cfg.BookingsFile)
		if err != nil {
			return nil, nil, nil, err
		}
		dir = loaded
		log.Info().Str("file", cfg.BookingsFile).Msg("loaded booking fixtures")
	} else {
		log.Warn().Msg("no redis_addr or bookings_file; booking directory is empty")
	}
	return dir, presence.NewMemoryStore(), func() {}, nil
}
