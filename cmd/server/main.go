// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/wizard/internal/cache"
	"github.com/jason-s-yu/wizard/internal/config"
	"github.com/jason-s-yu/wizard/internal/game"
	"github.com/jason-s-yu/wizard/internal/server"
	"github.com/jason-s-yu/wizard/internal/session"
	"github.com/jason-s-yu/wizard/internal/transport"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:], config.FromEnv(), os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(cfg.LogLevel())

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	handshake, err := session.ParseHandshake(cfg.Handshake)
	if err != nil {
		logger.WithError(err).Error("invalid handshake")
		return 1
	}
	rules, err := game.NewRules(cfg.Players, cfg.Rounds, logger)
	if err != nil {
		logger.WithError(err).Error("invalid rules")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journal cache.Journal = cache.NopJournal{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.WithError(err).Error("journal unavailable")
			return 1
		}
		defer rdb.Close()
		rj := cache.NewRedisJournal(rdb, cfg.Redis, logger)
		defer rj.Close()
		journal = rj
		logger.WithField("queue", cfg.Redis.Queue).Info("journaling actions to Redis")
	}

	srv := server.New(server.Options{
		Rules:     rules,
		Handshake: handshake,
		Rand:      rng,
		Journal:   journal,
	}, logger)

	tcp := transport.NewTCPServer(fmt.Sprintf(":%d", cfg.Port), srv, logger)
	if err := tcp.Listen(); err != nil {
		logger.WithError(err).Error("cannot start server")
		return 1
	}

	logger.WithFields(logrus.Fields{
		"players": rules.NumPlayers,
		"rounds":  rules.MaxRounds,
		"seed":    seed,
	}).Info("waiting for players")

	// errgroup only cancels on error, so the end of the match cancels explicitly.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	var matchErr error
	g.Go(func() error {
		defer cancel()
		matchErr = srv.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return tcp.Serve(ctx)
	})
	if cfg.WSPort > 0 {
		ws := transport.NewWSGateway(srv, logger)
		g.Go(func() error {
			return ws.Serve(ctx, fmt.Sprintf(":%d", cfg.WSPort))
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited")
		return 1
	}
	if matchErr != nil {
		logger.WithError(matchErr).Error("match did not finish")
		return 1
	}
	logger.Info("match finished, shutting down")
	return 0
}
