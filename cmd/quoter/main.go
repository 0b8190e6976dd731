package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/defistate/ammquote-go/api"
	"github.com/defistate/ammquote-go/chains/ethereum"
	"github.com/defistate/ammquote-go/cmd/quoter/config"
	"github.com/defistate/ammquote-go/quoter"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, err := cfg.TokenList()
	if err != nil {
		return err
	}
	registry, err := cfg.PoolRegistry(tokens)
	if err != nil {
		return err
	}
	defaults, err := cfg.QuoterDefaults(tokens)
	if err != nil {
		return err
	}

	var source *ethereum.Client
	switch cfg.Mode {
	case config.ModeStream:
		source, err = ethereum.Dial(ctx, cfg.StreamURL, rootLogger.With("component", "stream-client"))
		if err != nil {
			return err
		}
	case config.ModePoll:
		chain, err := ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("failed to connect to ethereum node: %w", err)
		}
		defer chain.Close()

		source, err = ethereum.Poll(ctx, ethereum.PollerConfig{
			Chain:      chain,
			ChainID:    cfg.ChainID,
			Tokens:     tokens,
			Registry:   registry,
			Interval:   cfg.PollInterval,
			Logger:     rootLogger.With("component", "poller"),
			Registerer: prometheus.DefaultRegisterer,
		})
		if err != nil {
			return err
		}
	}

	service, err := quoter.NewService(quoter.Config{
		Defaults:   defaults,
		Logger:     rootLogger.With("component", "quoter"),
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize quoter: %w", err)
	}

	server, err := api.NewServer(api.Config{
		Addr:         cfg.HTTPAddr,
		Quoter:       service,
		Logger:       rootLogger.With("component", "http"),
		Registerer:   prometheus.DefaultRegisterer,
		Gatherer:     prometheus.DefaultGatherer,
		AllowOrigins: cfg.AllowOrigins,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize http server: %w", err)
	}

	rootLogger.Info("Quoter starting",
		"chain_id", cfg.ChainID,
		"mode", cfg.Mode,
		"tokens", len(tokens),
		"pools", len(registry.Pools),
		"addr", cfg.HTTPAddr,
	)

	go func() {
		if err := service.Run(ctx, source.State()); err != nil && !errors.Is(err, context.Canceled) {
			rootLogger.Error("Quoter stopped", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Run(ctx)
	}()

	select {
	case err, ok := <-source.Err():
		stop()
		<-serverErr
		if ok && err != nil {
			rootLogger.Error("Fatal snapshot source error", "error", err)
			return err
		}
		return nil
	case err := <-serverErr:
		stop()
		return err
	case <-ctx.Done():
		rootLogger.Info("Shutting down")
		err := <-serverErr
		source.Wait()
		return err
	}
}

func loadConfig() (*config.Config, error) {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file.")
	flag.Parse()
	log.Printf("Loading configuration from: %s", *configPath)
	return config.LoadConfig(*configPath)
}
