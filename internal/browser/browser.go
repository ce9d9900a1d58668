package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/review-scraper/internal/parser"
	"github.com/maltedev/review-scraper/internal/proxy"
	"github.com/maltedev/review-scraper/internal/scraper"
)

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	// ProfileRoot holds one persistent profile directory per worker.
	ProfileRoot  string
	ExtraHeaders map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       false,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "ru-RU,ru;q=0.9,en;q=0.8",
		TimezoneID:     "Europe/Moscow",
		Locale:         "ru-RU",
		ProfileRoot:    "profiles",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// Provider launches one persistent Chromium context per session. It satisfies
// scraper.SessionFactory.
type Provider struct {
	pw     *playwright.Playwright
	opts   *Options
	parser parser.Parser
	logger *slog.Logger
}

func NewProvider(opts *Options, p parser.Parser, logger *slog.Logger) (*Provider, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if p == nil {
		p = parser.NewOzonParser()
	}

	if err := os.MkdirAll(opts.ProfileRoot, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create profile root: %w", err)
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &Provider{
		pw:     pw,
		opts:   opts,
		parser: p,
		logger: logger.With("component", "browser"),
	}, nil
}

func (p *Provider) Create(_ context.Context, profileID string, spec *proxy.Spec) (scraper.Session, error) {
	profileDir := filepath.Join(p.opts.ProfileRoot, profileID)

	bctx, err := p.pw.Chromium.LaunchPersistentContext(profileDir, launchOptions(p.opts, spec))
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = bctx.NewPage()
		if err != nil {
			bctx.Close()
			return nil, fmt.Errorf("failed to create new page: %w", err)
		}
	}
	page.SetDefaultTimeout(float64(p.opts.Timeout.Milliseconds()))

	logger := p.logger.With("profile", profileID)
	if spec != nil {
		logger = logger.With("proxy", spec.Address())
	}
	logger.Info("browser session started")

	return &Session{
		bctx:    bctx,
		page:    page,
		parser:  p.parser,
		timeout: p.opts.Timeout,
		logger:  logger,
	}, nil
}

func (p *Provider) Close() error {
	if p.pw == nil {
		return nil
	}
	if err := p.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

func launchOptions(opts *Options, spec *proxy.Spec) playwright.BrowserTypeLaunchPersistentContextOptions {
	launch := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
			"--start-maximized",
		},
		UserAgent:         playwright.String(opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(opts.Locale),
		TimezoneId:        playwright.String(opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: extraHeaders(opts),
	}

	if spec != nil {
		launch.Proxy = &playwright.Proxy{
			Server: spec.Server(),
		}
		if spec.HasAuth() {
			launch.Proxy.Username = playwright.String(spec.Username)
			launch.Proxy.Password = playwright.String(spec.Password)
		}
	}

	return launch
}

func extraHeaders(opts *Options) map[string]string {
	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}
	return headers
}
