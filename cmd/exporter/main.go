package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/burnt-labs/dao-dao-indexer/internal/adapter"
	"github.com/burnt-labs/dao-dao-indexer/internal/allowlist"
	"github.com/burnt-labs/dao-dao-indexer/internal/config"
	"github.com/burnt-labs/dao-dao-indexer/internal/domain"
	"github.com/burnt-labs/dao-dao-indexer/internal/exporter"
	"github.com/burnt-labs/dao-dao-indexer/internal/logger"
	"github.com/burnt-labs/dao-dao-indexer/internal/messaging"
	"github.com/burnt-labs/dao-dao-indexer/internal/providers/cosmos"
	"github.com/burnt-labs/dao-dao-indexer/internal/providers/jetstream"
	"github.com/burnt-labs/dao-dao-indexer/internal/registry"
	"github.com/burnt-labs/dao-dao-indexer/internal/resolver"
	"github.com/burnt-labs/dao-dao-indexer/internal/store"
	"github.com/burnt-labs/dao-dao-indexer/internal/transformer"
	"github.com/burnt-labs/dao-dao-indexer/internal/wasm"
)

var (
	configPath = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "", "Path to .env file")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadExporterConfig(*configPath, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.Info("Starting wasm exporter")

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	err = store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime)
	if err != nil {
		logger.Fatal("Failed to configure connection pool", zap.Error(err))
	}
	logger.Info("Connected to database")

	dataStore := store.NewPGStore(db)
	if err := dataStore.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	jsonAdapter := adapter.NewJSON()
	httpClient := adapter.NewHTTPClient(10*time.Second, adapter.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
	}, jsonAdapter)
	nodeClient := cosmos.NewClient(cfg.RPCEndpoint, httpClient)

	chainID, err := discoverChainID(ctx, cfg.ChainID, nodeClient, dataStore)
	if err != nil {
		logger.Fatal("Failed to determine chain ID", zap.Error(err))
	}
	logger.Info("Indexing chain", zap.String("chain_id", chainID))

	if _, err := dataStore.EnsureIndexerState(ctx, chainID); err != nil {
		logger.Fatal("Failed to initialize indexer state", zap.Error(err))
	}

	codeResolver, err := resolver.New(nodeClient)
	if err != nil {
		logger.Fatal("Failed to create resolver", zap.Error(err))
	}

	codeRegistry, err := registry.Load(ctx, dataStore, cfg.WasmCodes)
	if err != nil {
		logger.Fatal("Failed to load wasm code registry", zap.Error(err))
	}

	rules := transformer.NewRegistry(transformer.ContractInfoRule())
	engine := transformer.NewEngine(dataStore, rules, codeRegistry)

	var publisher messaging.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(jetstream.Config{
			URL:            cfg.NATS.URL,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
			ChainID:        chainID,
			PublishTimeout: cfg.NATS.PublishTimeout,
		}, jsonAdapter)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer publisher.Close()
		logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else if cfg.SendWebhooks {
		logger.Fatal("send_webhooks requires nats.url to be configured")
	}

	matcher := wasm.NewMatcher(chainID, cfg.Bech32Prefix)
	processor := exporter.NewProcessor(exporter.Config{
		ChainID:             chainID,
		SendWebhooks:        cfg.SendWebhooks,
		ResolverConcurrency: cfg.ResolverConcurrency,
		Allowlist:           allowlistRules(cfg.StateEventAllowlist[chainID]),
	}, dataStore, matcher, codeResolver, codeRegistry, engine, publisher)

	source := exporter.NewSource(exporter.SourceConfig{
		TraceFile:     cfg.Source.TraceFile,
		BatchSize:     cfg.Source.BatchSize,
		FlushInterval: cfg.Source.FlushInterval,
	}, func(ctx context.Context, records []domain.TraceRecord) error {
		// Pick up code-key mappings the tracker learned since the last batch.
		if err := codeRegistry.Refresh(ctx); err != nil {
			logger.WarnCtx(ctx, "failed to refresh wasm code registry", zap.Error(err))
		}
		return processor.ExportBatch(ctx, records)
	})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := source.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Exporter stopped", zap.Error(err))
	}
	logger.Info("Exporter shut down")
}

// discoverChainID resolves the chain ID from config, the node, or the stored
// indexer state, in that order
func discoverChainID(ctx context.Context, configured string, node cosmos.Client, st store.Store) (string, error) {
	if configured != "" {
		return configured, nil
	}

	chainID, err := node.ChainID(ctx)
	if err == nil && chainID != "" {
		return chainID, nil
	}
	logger.Warn("Failed to fetch chain ID from node, falling back to stored state", zap.Error(err))

	state, err := st.GetIndexerState(ctx)
	if err != nil {
		return "", domain.ErrChainIDMissing
	}
	if state.ChainID == "" {
		return "", domain.ErrChainIDMissing
	}
	return state.ChainID, nil
}

// allowlistRules maps config rules into the filter's form
func allowlistRules(rules []config.AllowlistRule) []allowlist.Rule {
	out := make([]allowlist.Rule, 0, len(rules))
	for _, r := range rules {
		out = append(out, allowlist.Rule{
			CodeIDsKeys: r.CodeIDsKeys,
			StateKeys:   r.StateKeys,
		})
	}
	return out
}
