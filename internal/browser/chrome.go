package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/xyla-io/bot-google-play/internal/log"
	"github.com/xyla-io/bot-google-play/internal/utils"
)

// Config configures the Chrome session.
type Config struct {
	Headless  bool          `yaml:"headless" env:"BROWSER_HEADLESS"`
	UserAgent string        `yaml:"user_agent"`
	DebugDir  string        `yaml:"debug_dir" env-default:"debug"`
	Timeout   time.Duration `yaml:"timeout" env-default:"30s"`
	// DownloadDir is where Chrome saves downloads. It is set from the
	// staging directory of the scraper configuration.
	DownloadDir string `yaml:"-"`
}

// Chrome drives a local Chrome through the DevTools protocol.
type Chrome struct {
	cfg         Config
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

func NewChrome(cfg Config) (*Chrome, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(1920, 1080), // the console hides controls in narrow layouts
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx)

	actions := []chromedp.Action{}
	if cfg.DownloadDir != "" {
		dir, err := filepath.Abs(cfg.DownloadDir)
		if err != nil {
			rootCancel()
			allocCancel()
			return nil, err
		}
		actions = append(actions, cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true))
	}
	// starts the browser
	if err := chromedp.Run(rootCtx, actions...); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &Chrome{
		cfg:         cfg,
		allocCancel: allocCancel,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		tabCtx:      rootCtx,
	}, nil
}

// run executes actions on the current tab while still honouring ctx.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx := c.tabCtx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (c *Chrome) lookupError(ctx context.Context, selector string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		c.dumpDebug(ctx, selector)
		return &NotFoundError{Selector: selector, Timeout: c.cfg.Timeout}
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	log.LoggerFromContext(ctx).Debug("navigating", slog.String("url", url))
	return c.run(ctx, 0, chromedp.Navigate(url))
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := c.run(ctx, c.cfg.Timeout, chromedp.Location(&u))
	return u, err
}

func (c *Chrome) Click(ctx context.Context, selector string) error {
	log.LoggerFromContext(ctx).Debug("clicking", slog.String("selector", selector))
	err := c.run(ctx, c.cfg.Timeout, chromedp.Click(selector, chromedp.BySearch, chromedp.NodeVisible))
	return c.lookupError(ctx, selector, err)
}

func (c *Chrome) SendKeys(ctx context.Context, selector string, text string) error {
	err := c.run(ctx, c.cfg.Timeout,
		chromedp.Click(selector, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.SendKeys(selector, text, chromedp.BySearch, chromedp.NodeVisible),
	)
	return c.lookupError(ctx, selector, err)
}

func (c *Chrome) Source(ctx context.Context, selector string) (string, error) {
	var html string
	err := c.run(ctx, c.cfg.Timeout, chromedp.OuterHTML(selector, &html, chromedp.BySearch, chromedp.NodeVisible))
	if err != nil {
		return "", c.lookupError(ctx, selector, err)
	}
	log.LoggerFromContext(ctx).Debug(fmt.Sprintf("source of %s: %s", selector, utils.ShortenString(html, 200)))
	return html, nil
}

func (c *Chrome) Visible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := c.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.BySearch))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return false, nil
	}
	return false, err
}

func (c *Chrome) AdoptNewestTab(ctx context.Context) error {
	targets, err := chromedp.Targets(c.tabCtx)
	if err != nil {
		return err
	}
	current := chromedp.FromContext(c.tabCtx).Target
	var newest string
	for _, t := range targets {
		if t.Type != "page" || (current != nil && t.TargetID == current.TargetID) {
			continue
		}
		// targets are reported newest first
		newest = string(t.TargetID)
		break
	}
	if newest == "" {
		return errors.New("no other tab to switch to")
	}
	log.LoggerFromContext(ctx).Debug("switching tab", slog.String("target", newest))
	if err := c.run(ctx, c.cfg.Timeout, page.Close()); err != nil {
		return fmt.Errorf("failed to close current tab: %w", err)
	}
	for _, t := range targets {
		if string(t.TargetID) == newest {
			tabCtx, tabCancel := chromedp.NewContext(c.rootCtx, chromedp.WithTargetID(t.TargetID))
			if c.tabCancel != nil {
				c.tabCancel()
			}
			c.tabCtx, c.tabCancel = tabCtx, tabCancel
		}
	}
	return chromedp.Run(c.tabCtx)
}

func (c *Chrome) Close() error {
	if c.tabCancel != nil {
		c.tabCancel()
	}
	c.rootCancel()
	c.allocCancel()
	return nil
}

// dumpDebug writes a screenshot and the page html to the debug directory.
func (c *Chrome) dumpDebug(ctx context.Context, selector string) {
	if !log.Debug {
		return
	}
	logger := log.LoggerFromContext(ctx)
	if c.cfg.DebugDir != "" {
		if err := os.MkdirAll(c.cfg.DebugDir, os.ModePerm); err != nil {
			logger.Warn(fmt.Sprintf("failed to create debug directory: %v", err))
			return
		}
	}
	name, err := utils.RandomString(utils.SafeFileName(utils.ShortenString(selector, 40)))
	if err != nil {
		return
	}
	var buf []byte
	var body string
	err = c.run(context.Background(), c.cfg.Timeout,
		chromedp.CaptureScreenshot(&buf),
		chromedp.OuterHTML("html", &body, chromedp.ByQuery),
	)
	if err != nil {
		logger.Warn(fmt.Sprintf("failed to capture debug data: %v", err))
		return
	}
	for filename, data := range map[string][]byte{
		path.Join(c.cfg.DebugDir, name+".png"):  buf,
		path.Join(c.cfg.DebugDir, name+".html"): []byte(body),
	} {
		logger.Debug(fmt.Sprintf("writing debug file %s", filename))
		if err := os.WriteFile(filename, data, 0644); err != nil {
			logger.Warn(fmt.Sprintf("failed to write debug file: %v", err))
		}
	}
}
