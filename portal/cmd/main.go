package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/config"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/history"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/metrics"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/rpc"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/transfer"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/wallet"
	xcmquery "github.com/Cogwheel-Validator/spectra-xcm-portal/portal/xcm_query"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var log zerolog.Logger

func init() {
	// Initialize zerolog with console writer
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	// Share the logger with the other packages
	rpc.SetLogger(log)
	assets.SetLogger(log)
	transfer.SetLogger(log)
	xcmquery.SetLogger(log)
	history.SetLogger(log)
	wallet.SetLogger(log)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "xcm-portal",
		Usage: "cross-chain transfer portal for the XCM routing service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "toml config file, PORTAL_* env vars are read when empty",
				EnvVars: []string{"PORTAL_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			chainsCommand(),
			assetsCommand(),
			transferCommand(),
			historyCommand(),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("xcm-portal failed")
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the portal server",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "static", Usage: "serve asset lists from the registry instead of the routing service"},
		},
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg, registry, err := loadRuntime(c)
			if err != nil {
				return err
			}

			client, err := newRouterClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			policy, err := assets.ParseDefaultPolicy(cfg.SourceDefault)
			if err != nil {
				return err
			}

			var lookup assets.Lookup = client
			if c.Bool("static") {
				lookup = registry.StaticLookup()
				log.Info().Msg("Serving asset lists from the registry")
			}

			wallets, err := loadWallets(cfg)
			if err != nil {
				return err
			}

			recorder, closeHistory, err := openHistory(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeHistory()

			if cfg.UsePrometheus {
				metrics.RegisterMetrics([]string{"resolver", "executor", "router_client", "stream"})
			}

			server, err := rpc.NewServer(ctx, buildServerConfig(cfg), rpc.Dependencies{
				Registry:     registry,
				Resolver:     assets.NewResolver(lookup),
				SourcePolicy: policy,
				Router:       client,
				Wallets:      wallets,
				Recorder:     recorder,
			})
			if err != nil {
				return fmt.Errorf("failed to create RPC server: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			select {
			case <-ctx.Done():
				log.Info().Msg("Received shutdown signal")
			case err := <-errCh:
				log.Error().Err(err).Msg("Server error")
			}

			// Graceful shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
}

func chainsCommand() *cli.Command {
	return &cli.Command{
		Name:  "chains",
		Usage: "print the chains and exchange venues of the registry",
		Action: func(c *cli.Context) error {
			_, registry, err := loadRuntime(c)
			if err != nil {
				return err
			}

			fmt.Println(registry.Summary())
			fmt.Println("\nChains:")
			for _, chain := range registry.Chains {
				role := "destination"
				if chain.Substrate {
					role = "origin, destination"
				}
				fmt.Printf("\t%s (%s), %d assets\n", chain.Name, role, len(chain.Assets))
			}
			fmt.Println("\nExchanges:")
			for _, v := range registry.Venues {
				fmt.Printf("\t%s: %s\n", v.Name, strings.Join(v.Symbols, ", "))
			}
			return nil
		},
	}
}

func endpointFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "from", Value: transfer.DefaultOrigin.String(), Usage: "origin chain"},
		&cli.StringSliceFlag{Name: "exchange", Value: cli.NewStringSlice(transfer.DefaultVenue), Usage: "exchange venue, repeat for an ordered list, Auto lets the router pick"},
		&cli.StringFlag{Name: "to", Value: transfer.DefaultDestination.String(), Usage: "destination chain"},
	}
}

func setEndpoints(c *cli.Context, form *assets.Form) error {
	return form.SetEndpoints(c.Context,
		assets.ChainRef(c.String("from")),
		venue.FromChoices(c.StringSlice("exchange")),
		assets.ChainRef(c.String("to")),
	)
}

func assetsCommand() *cli.Command {
	return &cli.Command{
		Name:  "assets",
		Usage: "list the source and destination assets for a route",
		Flags: append(endpointFlags(),
			&cli.BoolFlag{Name: "static", Usage: "read the assets from the registry instead of the routing service"},
		),
		Action: func(c *cli.Context) error {
			cfg, registry, err := loadRuntime(c)
			if err != nil {
				return err
			}
			policy, err := assets.ParseDefaultPolicy(cfg.SourceDefault)
			if err != nil {
				return err
			}

			var lookup assets.Lookup = registry.StaticLookup()
			if !c.Bool("static") {
				client, err := newRouterClient(cfg)
				if err != nil {
					return err
				}
				defer client.Close()
				lookup = client
			}

			form := assets.NewForm(assets.NewResolver(lookup), policy)
			if err := setEndpoints(c, form); err != nil {
				return fmt.Errorf("could not resolve assets: %w", err)
			}

			printSide("From "+form.Origin().String(), form.Source())
			printSide("To "+form.Destination().String(), form.Target())
			return nil
		},
	}
}

func printSide(title string, side assets.Side) {
	fmt.Printf("%s:\n", title)
	for _, opt := range side.Assets.Options() {
		marker := " "
		if opt.Value == side.Key {
			marker = "*"
		}
		fmt.Printf("\t%s %-24s %s\n", marker, opt.Value, opt.Label)
	}
}

func transferCommand() *cli.Command {
	return &cli.Command{
		Name:  "transfer",
		Usage: "execute a transfer with an account of the keyfile",
		Flags: append(endpointFlags(),
			&cli.StringFlag{Name: "currency-from", Usage: "source asset key, the default asset when empty"},
			&cli.StringFlag{Name: "currency-to", Usage: "destination asset key, the default asset when empty"},
			&cli.StringFlag{Name: "amount", Value: transfer.DefaultAmount, Usage: "amount in the smallest unit"},
			&cli.StringFlag{Name: "recipient", Value: transfer.DefaultRecipient, Usage: "recipient address"},
			&cli.StringFlag{Name: "slippage", Value: transfer.DefaultSlippagePct, Usage: "slippage tolerance in percent"},
			&cli.StringFlag{Name: "type", Usage: "FULL_TRANSFER, TO_EXCHANGE, SWAP or TO_DESTINATION"},
			&cli.StringFlag{Name: "extension", Usage: "keyfile extension, the first one when empty"},
			&cli.StringFlag{Name: "account", Required: true, Usage: "substrate sender address"},
			&cli.StringFlag{Name: "evm-account", Usage: "EVM sender address for routes that need one"},
		),
		Action: func(c *cli.Context) error {
			ctx := c.Context
			cfg, registry, err := loadRuntime(c)
			if err != nil {
				return err
			}
			if cfg.Keyfile == "" {
				return fmt.Errorf("a keyfile is required to sign transfers")
			}
			wallets, err := loadWallets(cfg)
			if err != nil {
				return err
			}
			policy, err := assets.ParseDefaultPolicy(cfg.SourceDefault)
			if err != nil {
				return err
			}
			txType, err := transfer.ParseTransactionType(c.String("type"))
			if err != nil {
				return err
			}

			client, err := newRouterClient(cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			recorder, closeHistory, err := openHistory(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeHistory()

			var opts []transfer.ExecutorOption
			if recorder != nil {
				opts = append(opts, transfer.WithRecorder(recorder))
			}
			form := assets.NewForm(assets.NewResolver(client), policy)
			session := transfer.NewSession(wallets, form, transfer.NewExecutor(client, opts...), transfer.WithCatalog(registry))

			names, err := session.ConnectWallet(ctx)
			if err != nil {
				return err
			}
			extension := c.String("extension")
			if extension == "" {
				extension = names[0]
			}
			if _, err := session.SelectExtension(ctx, extension); err != nil {
				return err
			}
			if err := session.SelectAccount(c.String("account")); err != nil {
				return err
			}
			if evm := c.String("evm-account"); evm != "" {
				if err := session.SelectEVMAccount(evm); err != nil {
					return err
				}
			}

			if err := setEndpoints(c, form); err != nil {
				return fmt.Errorf("could not resolve assets: %w", err)
			}
			if k := c.String("currency-from"); k != "" {
				form.SelectSource(assets.Key(k))
			}
			if k := c.String("currency-to"); k != "" {
				form.SelectDestination(assets.Key(k))
			}

			err = session.Submit(ctx, transfer.Submission{
				Recipient:   c.String("recipient"),
				Amount:      c.String("amount"),
				SlippagePct: c.String("slippage"),
				Type:        txType,
			}, func(ev transfer.ProgressEvent) {
				log.Info().Int("step", ev.Step).Str("kind", string(ev.Kind)).Msg(ev.Message())
			})
			if err != nil {
				return err
			}
			log.Info().Str("status", session.StatusMessage()).Msg("Transfer completed")
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "list the recorded transfers of a sender",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sender", Required: true, Usage: "sender address"},
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum number of transfers"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("database_url is required to read the transfer history")
			}
			pool, err := connectHistory(c.Context, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			entries, err := history.NewPgRepository(pool).ListBySender(c.Context, c.String("sender"), c.Int("limit"))
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s\t%s -> %s\t%s\t%s\tsteps=%d\t%s\n",
					e.StartedAt.Format(time.RFC3339), e.Origin, e.Destination, e.Amount.String(), e.State, e.Steps, e.Reason)
			}
			return nil
		},
	}
}

func loadConfig(c *cli.Context) (*config.RPCPortalConfig, error) {
	var path *string
	if p := c.String("config"); p != "" {
		path = &p
	}
	cfg, err := config.LoadRPCPortalConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadRuntime loads the config and the registry it points at.
func loadRuntime(c *cli.Context) (*config.RPCPortalConfig, *config.Registry, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	registry, err := config.LoadRegistry(c.Context, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load registry: %w", err)
	}
	log.Info().Str("registry", registry.Summary()).Msg("Loaded registry")
	return cfg, registry, nil
}

func newRouterClient(cfg *config.RPCPortalConfig) (*xcmquery.XcmQueryClient, error) {
	client, err := xcmquery.NewXcmQueryClientWithFailover(cfg.RouterURLs[0], cfg.RouterURLs[1:], xcmquery.DefaultFailoverConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create router client: %w", err)
	}
	log.Info().
		Str("primary", cfg.RouterURLs[0]).
		Int("backups", len(cfg.RouterURLs)-1).
		Msg("XCM router client initialized")
	return client, nil
}

// loadWallets serves the keyfile accounts, or no extension at all without a keyfile.
func loadWallets(cfg *config.RPCPortalConfig) (wallet.Provider, error) {
	if cfg.Keyfile == "" {
		provider, err := wallet.NewKeyfileProvider(wallet.Keyfile{})
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
	provider, err := wallet.LoadKeyfile(cfg.Keyfile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("keyfile", cfg.Keyfile).Msg("Loaded wallet keyfile")
	return provider, nil
}

func connectHistory(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := history.Connect(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := history.RunMigrations(ctx, pool, history.Migrations()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

// openHistory returns a nil recorder when no database is configured.
func openHistory(ctx context.Context, cfg *config.RPCPortalConfig) (transfer.Recorder, func(), error) {
	if cfg.DatabaseURL == "" {
		return nil, func() {}, nil
	}
	pool, err := connectHistory(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msg("Transfer history enabled")
	return history.NewPgRepository(pool), pool.Close, nil
}

// buildServerConfig converts the loaded RPCPortalConfig to rpc.ServerConfig
func buildServerConfig(cfg *config.RPCPortalConfig) *rpc.ServerConfig {
	serverConfig := &rpc.ServerConfig{
		Address:        net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		AllowedOrigins: cfg.AllowedOrigins,
		EnableMetrics:  cfg.UsePrometheus, // Enable metrics endpoint if prometheus is enabled
	}

	// Set rate limiting if configured
	if cfg.RatePerMinute > 0 {
		serverConfig.RatePerMinute = &cfg.RatePerMinute
	}
	if cfg.MaxConcurrentRequests > 0 {
		serverConfig.MaxConcurrentRequests = &cfg.MaxConcurrentRequests
	}

	// Set OpenTelemetry configuration if any telemetry is enabled
	if cfg.EnableTracing || cfg.EnableMetrics || cfg.EnableLogs || cfg.UsePrometheus {
		serverConfig.OTelConfig = &rpc.OTelConfig{
			ServiceName:     defaultString(cfg.ServiceName, "spectra-xcm-portal"),
			ServiceVersion:  defaultString(cfg.ServiceVersion, "0.1.0"),
			Environment:     defaultString(cfg.Environment, "development"),
			EnableTracing:   cfg.EnableTracing,
			UseOTLPTraces:   cfg.UseOTLPTraces,
			OTLPTracesURL:   cfg.OTLPTracesURL,
			EnableMetrics:   cfg.EnableMetrics,
			UsePrometheus:   cfg.UsePrometheus,
			UseOTLPMetrics:  cfg.UseOTLPMetrics,
			OTLPMetricsURL:  cfg.OTLPMetricsURL,
			EnableLogs:      cfg.EnableLogs,
			UseOTLPLogs:     cfg.UseOTLPLogs,
			OTLPLogsURL:     cfg.OTLPLogsURL,
			InsecureOTLP:    cfg.InsecureOTLP,
			OTLPCACertFile:  cfg.OTLPCACertFile,
			DevelopmentMode: cfg.DevelopmentMode,
		}
	}

	return serverConfig
}

// defaultString returns the default value if s is empty
func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
