package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/maltedev/review-scraper/internal/proxy"
	"github.com/maltedev/review-scraper/internal/scraper"
)

const envPrefix = "REVIEWS"

const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Timings  TimingsConfig  `mapstructure:"timings"`
	Input    InputConfig    `mapstructure:"input"`
	Output   OutputConfig   `mapstructure:"output"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Events   EventsConfig   `mapstructure:"events"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

type ScraperConfig struct {
	WorkerCount           int           `mapstructure:"worker_count"`
	ClearCookiesAfterTask bool          `mapstructure:"clear_cookies_after_task"`
	RecycleOnRotation     bool          `mapstructure:"recycle_on_rotation"`
	MaxReviewsPerTask     int           `mapstructure:"max_reviews_per_task"`
	MaxAdvanceAttempts    int           `mapstructure:"max_advance_attempts"`
	QueueTimeout          time.Duration `mapstructure:"queue_timeout"`
	PopRetryInterval      time.Duration `mapstructure:"pop_retry_interval"`
	ProfileDir            string        `mapstructure:"profile_dir"`
	ProfilePrefix         string        `mapstructure:"profile_prefix"`
	TaskDelayMin          time.Duration `mapstructure:"task_delay_min"`
	TaskDelayMax          time.Duration `mapstructure:"task_delay_max"`
	NavigationsPerMinute  int           `mapstructure:"navigations_per_minute"`
}

type ProxyConfig struct {
	Mode             string        `mapstructure:"mode"`
	Single           string        `mapstructure:"single"`
	Pool             []string      `mapstructure:"pool"`
	RotationInterval int           `mapstructure:"rotation_interval"`
	RotationMode     string        `mapstructure:"rotation_mode"`
	CheckURL         string        `mapstructure:"check_url"`
	CheckTimeout     time.Duration `mapstructure:"check_timeout"`
}

type BrowserConfig struct {
	Headless       bool          `mapstructure:"headless"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Locale         string        `mapstructure:"locale"`
	Timezone       string        `mapstructure:"timezone"`
	UserAgent      string        `mapstructure:"user_agent"`
	AcceptLanguage string        `mapstructure:"accept_language"`
}

type TimingsConfig struct {
	AfterNavigate    time.Duration `mapstructure:"after_navigate"`
	AfterTab         time.Duration `mapstructure:"after_tab"`
	AfterOpen        time.Duration `mapstructure:"after_open"`
	BeforeExtract    time.Duration `mapstructure:"before_extract"`
	AdvanceSettle    time.Duration `mapstructure:"advance_settle"`
	AdvanceStabilize time.Duration `mapstructure:"advance_stabilize"`
}

type InputConfig struct {
	// Domain filters URL list lines; empty keeps every line.
	Domain string `mapstructure:"domain"`
}

type OutputConfig struct {
	// Dir defaults to a results directory next to the URL list.
	Dir string `mapstructure:"dir"`
}

type QueueConfig struct {
	Type string `mapstructure:"type"`
	Key  string `mapstructure:"key"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EventsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Stream  string `mapstructure:"stream"`
	MaxLen  int64  `mapstructure:"max_len"`
}

type DatabaseConfig struct {
	// DSN enables the run ledger when set.
	DSN            string        `mapstructure:"dsn"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type ServerConfig struct {
	// Addr enables the status server when set, e.g. ":8080".
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads defaults, then the optional config file at path, then
// REVIEWS_* environment overrides (REVIEWS_SCRAPER_WORKER_COUNT and so on).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	timings := scraper.DefaultTimings()
	paginator := scraper.DefaultPaginatorOptions()

	v.SetDefault("scraper.worker_count", 5)
	v.SetDefault("scraper.clear_cookies_after_task", true)
	v.SetDefault("scraper.recycle_on_rotation", false)
	v.SetDefault("scraper.max_reviews_per_task", paginator.MaxReviews)
	v.SetDefault("scraper.max_advance_attempts", paginator.MaxAdvanceAttempts)
	v.SetDefault("scraper.queue_timeout", time.Second)
	v.SetDefault("scraper.pop_retry_interval", 500*time.Millisecond)
	v.SetDefault("scraper.profile_dir", "profiles")
	v.SetDefault("scraper.profile_prefix", "pool")
	v.SetDefault("scraper.task_delay_min", time.Duration(0))
	v.SetDefault("scraper.task_delay_max", time.Duration(0))
	v.SetDefault("scraper.navigations_per_minute", 0)

	v.SetDefault("proxy.mode", string(proxy.ModeNone))
	v.SetDefault("proxy.single", "")
	v.SetDefault("proxy.pool", []string{})
	v.SetDefault("proxy.rotation_interval", 5)
	v.SetDefault("proxy.rotation_mode", string(proxy.RotationRandom))
	v.SetDefault("proxy.check_url", "")
	v.SetDefault("proxy.check_timeout", 10*time.Second)

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.timeout", 30*time.Second)
	v.SetDefault("browser.locale", "ru-RU")
	v.SetDefault("browser.timezone", "Europe/Moscow")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.accept_language", "ru-RU,ru;q=0.9,en;q=0.8")

	v.SetDefault("timings.after_navigate", timings.AfterNavigate)
	v.SetDefault("timings.after_tab", timings.AfterTab)
	v.SetDefault("timings.after_open", timings.AfterOpen)
	v.SetDefault("timings.before_extract", timings.BeforeExtract)
	v.SetDefault("timings.advance_settle", timings.AdvanceSettle)
	v.SetDefault("timings.advance_stabilize", timings.AdvanceStabilize)

	v.SetDefault("input.domain", "ozon.ru")
	v.SetDefault("output.dir", "")

	v.SetDefault("queue.type", QueueMemory)
	v.SetDefault("queue.key", "reviews:tasks")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.stream", "stream:review_tasks")
	v.SetDefault("events.max_len", 10000)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.connect_timeout", 30*time.Second)

	v.SetDefault("server.addr", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks every setting that would otherwise fail after workers have
// started.
func (c *Config) Validate() error {
	var errs []error

	if c.Scraper.WorkerCount < 1 {
		errs = append(errs, fmt.Errorf("scraper.worker_count must be at least 1, got %d", c.Scraper.WorkerCount))
	}
	if c.Scraper.MaxReviewsPerTask < 1 {
		errs = append(errs, fmt.Errorf("scraper.max_reviews_per_task must be at least 1, got %d", c.Scraper.MaxReviewsPerTask))
	}
	if c.Scraper.MaxAdvanceAttempts < 1 {
		errs = append(errs, fmt.Errorf("scraper.max_advance_attempts must be at least 1, got %d", c.Scraper.MaxAdvanceAttempts))
	}
	if c.Scraper.TaskDelayMin > c.Scraper.TaskDelayMax {
		errs = append(errs, fmt.Errorf("scraper.task_delay_min cannot be greater than scraper.task_delay_max"))
	}
	if c.Scraper.NavigationsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("scraper.navigations_per_minute cannot be negative"))
	}

	if _, err := c.ProxyPolicy(); err != nil {
		errs = append(errs, err)
	}

	switch c.Queue.Type {
	case QueueMemory, QueueRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown queue.type %q", c.Queue.Type))
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ProxyPolicy parses the proxy settings into an assignment policy.
func (c *Config) ProxyPolicy() (proxy.Policy, error) {
	policy := proxy.Policy{
		Mode:     proxy.Mode(strings.ToLower(c.Proxy.Mode)),
		Interval: c.Proxy.RotationInterval,
		Rotation: proxy.RotationMode(strings.ToLower(c.Proxy.RotationMode)),
	}

	switch policy.Mode {
	case proxy.ModeSingle:
		if strings.TrimSpace(c.Proxy.Single) == "" {
			return policy, fmt.Errorf("proxy.single is required in single mode")
		}
		spec, err := proxy.Parse(c.Proxy.Single)
		if err != nil {
			return policy, fmt.Errorf("proxy.single: %w", err)
		}
		policy.Single = spec
	case proxy.ModeRotation:
		pool, err := proxy.ParsePool(c.Proxy.Pool)
		if err != nil {
			return policy, fmt.Errorf("proxy.pool: %w", err)
		}
		policy.Pool = pool
	}

	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("proxy: %w", err)
	}
	return policy, nil
}

func (c *Config) PaginatorOptions() scraper.PaginatorOptions {
	return scraper.PaginatorOptions{
		MaxReviews:         c.Scraper.MaxReviewsPerTask,
		MaxAdvanceAttempts: c.Scraper.MaxAdvanceAttempts,
		Timings: scraper.Timings{
			AfterNavigate:    c.Timings.AfterNavigate,
			AfterTab:         c.Timings.AfterTab,
			AfterOpen:        c.Timings.AfterOpen,
			BeforeExtract:    c.Timings.BeforeExtract,
			AdvanceSettle:    c.Timings.AdvanceSettle,
			AdvanceStabilize: c.Timings.AdvanceStabilize,
		},
	}
}
