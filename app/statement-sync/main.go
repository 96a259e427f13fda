package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/ardanlabs/conf"
	"github.com/jellydator/ttlcache/v3"
	"github.com/joho/godotenv"
	"github.com/monobank-sync/statement-sync/api"
	"github.com/monobank-sync/statement-sync/business/domain/statement"
	"github.com/monobank-sync/statement-sync/external/elastic"
	"github.com/monobank-sync/statement-sync/external/kafka"
	"github.com/monobank-sync/statement-sync/external/monobank"
	"github.com/monobank-sync/statement-sync/infrastructure/store/pebbledb"
	"github.com/monobank-sync/statement-sync/infrastructure/store/postgres"
	"github.com/monobank-sync/statement-sync/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kprom"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const prefix = "MONOBANK_SYNC"

type syncStore interface {
	statement.Store
	api.WatermarkProvider
	Close() error
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	config := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	// optional, the environment takes precedence
	err = godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env file: %v", err)
	}

	var cfg struct {
		Monobank struct {
			Tokens         []string      `conf:"noprint"` // separated by ; or ,
			BaseUrl        string        `conf:"default:https://api.monobank.ua/personal"`
			RequestTimeout time.Duration `conf:"default:30s"`
		}
		Sync struct {
			AllowedAccountTypes []string      `conf:"default:black;white"` // separated by ; or ,
			PageSize            int           `conf:"default:500"`
			MaxSpan             time.Duration `conf:"default:744h"`
			WaitTime            time.Duration `conf:"default:60s"`
			WaitJitter          time.Duration `conf:"default:5s"`
			StartTimestamp      int64         // defaults to the first day of the current month
			TimeZone            string        `conf:"default:Europe/Kyiv"`
			TokenWorkers        int           `conf:"default:1"`
			RunInterval         time.Duration `conf:"default:0s"` // 0 runs once
			MetricsNamespace    string        `conf:"default:monobank_sync"`
		}
		Store struct {
			Backend          string `conf:"default:pebble"`
			Folder           string `conf:"default:store"`
			PostgresDsn      string `conf:"noprint"`
			PostgresMaxConns int    `conf:"default:4"`
		}
		Kafka struct {
			Enabled          bool     `conf:"default:false"`
			BootstrapServers []string `conf:"default:localhost:9092"`
			StatementTopic   string   `conf:"default:monobank-statement-items"`
		}
		Elastic struct {
			Enabled   bool          `conf:"default:false"`
			Addresses []string      `conf:"default:http://127.0.0.1:9200"`
			Username  string
			Password  string        `conf:"noprint"`
			Index     string        `conf:"default:monobank-statement-items"`
			Timeout   time.Duration `conf:"default:30s"`
		}
		Server struct {
			ListenAddr     string        `conf:"default:0.0.0.0:8000"`
			MetricsPort    int           `conf:"default:9999"`
			StatusCacheTtl time.Duration `conf:"default:10s"`
		}
	}

	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %v", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %v", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %v", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %v", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	tokens := splitValues(cfg.Monobank.Tokens)
	if len(tokens) == 0 {
		return errors.New("no monobank tokens configured")
	}

	location, err := time.LoadLocation(cfg.Sync.TimeZone)
	if err != nil {
		return fmt.Errorf("loading time zone [%s]: %v", cfg.Sync.TimeZone, err)
	}

	startTimestamp := cfg.Sync.StartTimestamp
	if startTimestamp == 0 {
		now := time.Now().UTC()
		startTimestamp = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Unix()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg.Store.Backend, cfg.Store.Folder, cfg.Store.PostgresDsn, cfg.Store.PostgresMaxConns)
	if err != nil {
		return fmt.Errorf("creating store: %v", err)
	}
	defer store.Close()

	var publishers []statement.Publisher
	if cfg.Kafka.Enabled {
		kafkaMetrics := kprom.NewMetrics(cfg.Sync.MetricsNamespace,
			kprom.Registerer(prometheus.DefaultRegisterer),
			kprom.Gatherer(prometheus.DefaultGatherer))
		kcl, err := kgo.NewClient(
			kgo.WithHooks(kafkaMetrics),
			kgo.DefaultProduceTopic(cfg.Kafka.StatementTopic),
			kgo.SeedBrokers(cfg.Kafka.BootstrapServers...),
			kgo.ProducerBatchCompression(kgo.ZstdCompression()),
		)
		if err != nil {
			return fmt.Errorf("creating kafka client: %v", err)
		}
		defer kcl.Close()
		publishers = append(publishers, kafka.NewClient(kcl, sLogger))
	}
	if cfg.Elastic.Enabled {
		elasticClient, err := elastic.NewClient(cfg.Elastic.Addresses, cfg.Elastic.Username, cfg.Elastic.Password,
			cfg.Elastic.Index, cfg.Elastic.Timeout)
		if err != nil {
			return fmt.Errorf("creating elastic client: %v", err)
		}
		publishers = append(publishers, elasticClient)
	}

	monobankClient, err := monobank.NewClient(cfg.Monobank.BaseUrl, cfg.Monobank.RequestTimeout)
	if err != nil {
		return fmt.Errorf("creating monobank client: %v", err)
	}

	syncConfig := statement.SyncConfig{
		Tokens:              tokens,
		AllowedAccountTypes: splitValues(cfg.Sync.AllowedAccountTypes),
		SyncStartTimestamp:  startTimestamp,
		Location:            location,
		PageSize:            cfg.Sync.PageSize,
		MaxSpan:             cfg.Sync.MaxSpan,
		WaitTime:            cfg.Sync.WaitTime,
		WaitJitter:          cfg.Sync.WaitJitter,
		TokenWorkers:        cfg.Sync.TokenWorkers,
	}
	syncMetrics := metrics.NewSyncMetrics(cfg.Sync.MetricsNamespace)
	proc := statement.NewProcessor(monobankClient, store, publishers, syncConfig, syncMetrics, sLogger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	procErrors := make(chan error, 1)
	go func() {
		procErrors <- proc.Start(ctx, cfg.Sync.RunInterval)
	}()

	watermarksCache := ttlcache.New[string, map[string]int64](
		ttlcache.WithTTL[string, map[string]int64](cfg.Server.StatusCacheTtl),
		ttlcache.WithDisableTouchOnHit[string, map[string]int64](), // don't refresh ttl upon getting the item from cache
	)
	go watermarksCache.Start()
	defer watermarksCache.Stop()

	mux := http.NewServeMux()
	api.NewHandler(api.NewStatusCache(store, watermarksCache)).Routes(mux)

	serverErr := make(chan error, 1)
	go func() {
		sLogger.Infow("Starting api server", "address", cfg.Server.ListenAddr)
		serverErr <- http.ListenAndServe(cfg.Server.ListenAddr, mux)
	}()

	metricsErr := make(chan error, 1)
	go func() {
		sLogger.Infow("Starting metrics server", "port", cfg.Server.MetricsPort)
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsErr <- http.ListenAndServe(fmt.Sprintf(":%d", cfg.Server.MetricsPort), metricsMux)
	}()

	for {
		select {
		case <-shutdown:
			log.Println("main: Received shutdown signal, shutting down...")
			cancel()
			// the processor stores the watermark of the running window before returning
			<-procErrors
			return nil
		case err := <-procErrors:
			if err != nil {
				return fmt.Errorf("processing error: %v", err)
			}
			log.Println("main: Finished sync run.")
			return nil
		case err := <-serverErr:
			return fmt.Errorf("server error: %v", err)
		case err := <-metricsErr:
			return fmt.Errorf("metrics server error: %v", err)
		}
	}
}

// splitValues additionally splits list entries on ',' as conf only separates slices by ';'.
func splitValues(values []string) []string {
	var result []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				result = append(result, part)
			}
		}
	}
	return result
}

func openStore(ctx context.Context, backend, folder, dsn string, maxConns int) (syncStore, error) {
	switch backend {
	case "pebble":
		pebbleStore, err := pebbledb.NewStore(folder)
		if err != nil {
			return nil, err
		}
		return pebbleStore, nil
	case "postgres":
		pgStore, err := postgres.NewStore(ctx, dsn, maxConns)
		if err != nil {
			return nil, err
		}
		err = pgStore.Migrate(ctx)
		if err != nil {
			pgStore.Close()
			return nil, fmt.Errorf("migrating postgres schema: %v", err)
		}
		return pgStore, nil
	default:
		return nil, fmt.Errorf("unknown store backend [%s]", backend)
	}
}
