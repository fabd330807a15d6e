package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arhyth/bankhub"
	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfp := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()
	cfgfl, err := os.Open(*cfp)
	if err != nil {
		logger.Fatal().Err(err).Msg("error opening config file")
	}
	cfg, err := bankhub.LoadConfig(cfgfl)
	cfgfl.Close()
	if err != nil {
		logger.Fatal().Err(err).Msg("error decoding config file")
	}

	lvl, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("error parsing log level")
	}
	zerolog.SetGlobalLevel(lvl)

	node, err := snowflake.NewNode(cfg.Ledger.NodeID)
	if err != nil {
		logger.Fatal().Err(err).Int64("node_id", cfg.Ledger.NodeID).Msg("error creating ID node")
	}
	ledger, err := bankhub.NewService(
		bankhub.NewMemoryRepository[bankhub.Account](),
		bankhub.NewMemoryRepository[bankhub.Transaction](),
		node,
		&logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("error starting service")
	}
	if n := bankhub.Seed(ledger, cfg.Ledger.Seed, &logger); n > 0 {
		logger.Info().Int("accounts", n).Msg("seeded accounts")
	}

	svc := bankhub.Chain(ledger,
		bankhub.NewCircuitBreakMiddleware(bankhub.NewServiceBreaker(cfg.Breaker.ConsecutiveFailures, cfg.Breaker.OpenTimeout)),
		bankhub.NewlimitMiddleware(bankhub.NewServiceLimits(cfg.Limits.InFlight, cfg.Limits.AcquireTimeout)),
		bankhub.NewValidationMiddleware(),
	)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: bankhub.NewHTTPHandler(svc, &logger),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err = g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server stopped")
}
