package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/maltedev/review-scraper/internal/api"
	"github.com/maltedev/review-scraper/internal/browser"
	"github.com/maltedev/review-scraper/internal/config"
	"github.com/maltedev/review-scraper/internal/database"
	"github.com/maltedev/review-scraper/internal/events"
	"github.com/maltedev/review-scraper/internal/input"
	"github.com/maltedev/review-scraper/internal/parser"
	"github.com/maltedev/review-scraper/internal/pool"
	"github.com/maltedev/review-scraper/internal/proxy"
	"github.com/maltedev/review-scraper/internal/queue"
	"github.com/maltedev/review-scraper/internal/storage"
	"github.com/maltedev/review-scraper/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "Path to a YAML or JSON config file")
		urlFile    = flag.String("urls", "", "File with product URLs, one per line")
		workers    = flag.Int("workers", 0, "Number of parallel workers (overrides scraper.worker_count)")
		outputDir  = flag.String("output", "", "Directory for result files (overrides output.dir)")
		headless   = flag.Bool("headless", false, "Run the browser headless (overrides browser.headless)")
		serverAddr = flag.String("addr", "", "Status server address, e.g. :8080 (overrides server.addr)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "workers":
			cfg.Scraper.WorkerCount = *workers
		case "output":
			cfg.Output.Dir = *outputDir
		case "headless":
			cfg.Browser.Headless = *headless
		case "addr":
			cfg.Server.Addr = *serverAddr
		}
	})

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	path := *urlFile
	if path == "" && flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	if path == "" {
		log.Error("no URL list given; pass -urls <file>")
		return 1
	}

	urls, err := input.ReadURLs(path, cfg.Input.Domain)
	if err != nil {
		log.Error("failed to read URL list", "error", err)
		return 1
	}
	log.Info("loaded product URLs", "count", len(urls), "file", path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	policy, err := cfg.ProxyPolicy()
	if err != nil {
		log.Error("invalid proxy configuration", "error", err)
		return 1
	}
	policy, err = checkProxies(ctx, cfg, policy, log)
	if err != nil {
		log.Error("proxy health check failed", "error", err)
		return 1
	}
	assigner, err := proxy.NewAssigner(policy)
	if err != nil {
		log.Error("invalid proxy configuration", "error", err)
		return 1
	}

	dir := cfg.Output.Dir
	if dir == "" {
		dir = filepath.Join(filepath.Dir(path), "results")
	}
	sink, err := storage.NewFileSink(dir)
	if err != nil {
		log.Error("failed to prepare output directory", "error", err)
		return 1
	}

	runID := uuid.NewString()
	log = log.With("run_id", runID)

	var recorders []pool.Recorder
	var ledger api.Ledger

	if cfg.Database.DSN != "" {
		db, err := database.ConnectWithRetry(ctx, database.DefaultConfig(cfg.Database.DSN), cfg.Database.ConnectTimeout, log)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			return 1
		}
		defer db.Close()

		repo := database.NewResultRepository(db, runID)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Error("failed to prepare database", "error", err)
			return 1
		}
		recorders = append(recorders, repo)
		ledger = repo
		log.Info("recording results to database")
	}

	var redisClient *redis.Client
	if cfg.Queue.Type == config.QueueRedis || cfg.Events.Enabled {
		redisClient, err = connectRedis(ctx, cfg.Redis, cfg.Database.ConnectTimeout, log)
		if err != nil {
			log.Error("failed to connect to Redis", "error", err)
			return 1
		}
		defer redisClient.Close()
	}

	if cfg.Events.Enabled {
		recorders = append(recorders, events.NewPublisher(redisClient, runID, events.PublisherConfig{
			Stream: cfg.Events.Stream,
			MaxLen: cfg.Events.MaxLen,
		}))
		log.Info("publishing results", "stream", cfg.Events.Stream)
	}

	var q queue.Queue
	if cfg.Queue.Type == config.QueueRedis {
		q = queue.NewRedisQueue(redisClient, cfg.Queue.Key)
	} else {
		q = queue.NewInMemoryQueue()
	}
	defer q.Close()

	provider, err := browser.NewProvider(browserOptions(cfg), parser.NewOzonParser(), log)
	if err != nil {
		log.Error("failed to start browser", "error", err)
		return 1
	}
	defer provider.Close()

	orch, err := pool.New(pool.Config{
		Workers:              cfg.Scraper.WorkerCount,
		QueueTimeout:         cfg.Scraper.QueueTimeout,
		PopRetryInterval:     cfg.Scraper.PopRetryInterval,
		ClearCookies:         cfg.Scraper.ClearCookiesAfterTask,
		RecycleOnRotation:    cfg.Scraper.RecycleOnRotation,
		ProfilePrefix:        cfg.Scraper.ProfilePrefix,
		TaskDelayMin:         cfg.Scraper.TaskDelayMin,
		TaskDelayMax:         cfg.Scraper.TaskDelayMax,
		NavigationsPerMinute: cfg.Scraper.NavigationsPerMinute,
		Paginator:            cfg.PaginatorOptions(),
	}, provider, assigner, q, sink, pool.NewAggregator(log, recorders...), log)
	if err != nil {
		log.Error("failed to create pool", "error", err)
		return 1
	}

	if _, err := orch.Submit(ctx, urls); err != nil {
		log.Error("failed to queue tasks", "error", err)
		return 1
	}

	log.Info("starting run",
		"workers", cfg.Scraper.WorkerCount,
		"proxy_mode", policy.Mode,
		"output", sink.Dir())

	var g errgroup.Group
	done := make(chan struct{})

	if cfg.Server.Addr != "" {
		handlers := api.NewHandlers(orch, log)
		if ledger != nil {
			handlers.WithLedger(ledger)
		}
		server := api.NewServer(cfg.Server.Addr, api.NewRouter(handlers))

		g.Go(func() error {
			log.Info("status server starting", "addr", cfg.Server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-done
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	tally, err := orch.Run(ctx)
	close(done)
	if err != nil {
		log.Error("pool failed", "error", err)
		return 1
	}
	if err := g.Wait(); err != nil {
		log.Error("status server failed", "error", err)
	}

	if err := pool.WriteSummary(os.Stdout, tally); err != nil {
		log.Error("failed to write summary", "error", err)
	}
	return 0
}

func browserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.Timeout = cfg.Browser.Timeout
	opts.ProfileRoot = cfg.Scraper.ProfileDir
	if cfg.Browser.Locale != "" {
		opts.Locale = cfg.Browser.Locale
	}
	if cfg.Browser.Timezone != "" {
		opts.TimezoneID = cfg.Browser.Timezone
	}
	if cfg.Browser.UserAgent != "" {
		opts.UserAgent = cfg.Browser.UserAgent
	}
	if cfg.Browser.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	}
	return opts
}

// checkProxies drops dead pool entries when a check URL is configured.
func checkProxies(ctx context.Context, cfg *config.Config, policy proxy.Policy, log *slog.Logger) (proxy.Policy, error) {
	if cfg.Proxy.CheckURL == "" {
		return policy, nil
	}
	checker := proxy.NewChecker(cfg.Proxy.CheckURL, cfg.Proxy.CheckTimeout, log)

	switch policy.Mode {
	case proxy.ModeSingle:
		if !checker.Check(ctx, policy.Single) {
			return policy, fmt.Errorf("proxy %s is not reachable", policy.Single)
		}
	case proxy.ModeRotation:
		alive := checker.Filter(ctx, policy.Pool)
		log.Info("proxy pool checked", "alive", len(alive), "total", len(policy.Pool))
		if len(alive) == 0 {
			return policy, proxy.ErrEmptyPool
		}
		policy.Pool = alive
	}
	return policy, nil
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, maxElapsed time.Duration, log *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = time.Second
	expBackoff.MaxElapsedTime = maxElapsed

	operation := func() error {
		err := client.Ping(ctx).Err()
		if err != nil {
			log.Warn("redis not ready", "addr", cfg.Addr, "error", err)
		}
		return err
	}
	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis after retries: %w", err)
	}
	return client, nil
}
