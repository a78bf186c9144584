package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"txmanager/internal/config"
	partyinfoRepo "txmanager/internal/repository/partyinfo"
	"txmanager/internal/service/client"
	"txmanager/internal/service/enclave"
	"txmanager/internal/service/partyinfo"
	"txmanager/internal/service/server"
	"txmanager/internal/service/transaction"
	"txmanager/internal/utils/log"
)

var (
	runConfigPath string
	runURL        string
	runListen     string
	runPeers      []string
	runStorage    string
	runLogLevel   string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Start the node",
		Long: `Starts the node API, the party info poller and the configured
payload store. Flags override values from the config file.

Examples:
  txmanager run --config config.yaml
  txmanager run -c config.yaml --peer http://node2:9000 --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := log.Init(cfg.LogLevel); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, cfg)
		},
	}
)

func init() {
	flags := runCmd.Flags()
	flags.StringVarP(&runConfigPath, "config", "c", "", "path to the YAML config file")
	flags.StringVar(&runURL, "url", "", "url advertised to peers")
	flags.StringVar(&runListen, "listen", "", "address to listen on")
	flags.StringSliceVar(&runPeers, "peer", nil, "peer url, repeatable")
	flags.StringVar(&runStorage, "storage", "", "payload store: memory, badger, redis or mongo")
	flags.StringVar(&runLogLevel, "log-level", "", "debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if runConfigPath != "" {
		var err error
		if cfg, err = config.Load(runConfigPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Server.Listen = runListen
		if !flags.Changed("url") && runConfigPath == "" {
			cfg.Server.URL = "http://" + runListen
		}
	}
	if flags.Changed("url") {
		cfg.Server.URL = runURL
	}
	for _, p := range runPeers {
		cfg.Peers = append(cfg.Peers, config.PeerConfig{URL: p})
	}
	if flags.Changed("storage") {
		cfg.Storage.Type = runStorage
		cfg.ApplyDefaults()
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = runLogLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runNode(ctx context.Context, cfg *config.Config) error {
	pairs := make([]enclave.KeyPair, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		kp, err := enclave.LoadKeyPair(k.PublicKeyPath, k.PrivateKeyPath, k.Password)
		if err != nil {
			return err
		}
		pairs = append(pairs, kp)
	}
	enc, err := enclave.New(pairs)
	if err != nil {
		return err
	}

	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	store, closeStore, err := openStore(openCtx, cfg.Storage)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("close payload store failed", zap.Error(err))
		}
	}()

	transport := client.New(client.DefaultTimeout)
	parties := partyinfo.NewService(partyinfoRepo.NewStore(cfg.Server.URL), enc, cfg.Server.URL, cfg.PeerURLs())
	poller := partyinfo.NewPoller(parties, transport, cfg.PartyInfoInterval)
	tx := transaction.NewService(enc, store, parties, transport)
	srv := server.NewHttpServer(tx, parties, poller, version)

	log.Info("node starting",
		zap.String("url", parties.OurURL()),
		zap.String("storage", cfg.Storage.Type),
		zap.Int("keys", len(pairs)),
		zap.Strings("peers", cfg.PeerURLs()),
	)
	for _, k := range enc.PublicKeys() {
		log.Info("managing key", zap.String("key", k.String()))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		poller.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return srv.Run(ctx, cfg.Server.Listen)
	})

	err = g.Wait()
	log.Info("node stopped")
	return err
}
