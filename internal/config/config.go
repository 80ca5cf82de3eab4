// Package config loads the bot configuration from a yaml file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/xyla-io/bot-google-play/internal/browser"
	"github.com/xyla-io/bot-google-play/internal/interact"
	"github.com/xyla-io/bot-google-play/internal/output"
	"github.com/xyla-io/bot-google-play/internal/reconcile"
)

const redacted = "********"

// Waits are the fixed pauses and poll bounds used while driving the console.
// They compensate for rendering latency that cannot be observed.
type Waits struct {
	SignIn    time.Duration `yaml:"sign_in" env-default:"3s"`
	Company   time.Duration `yaml:"company" env-default:"5s"`
	Navigate  time.Duration `yaml:"navigate" env-default:"5s"`
	Redirect  time.Duration `yaml:"redirect" env-default:"10s"`
	Render    time.Duration `yaml:"render" env-default:"5s"`
	Accordion time.Duration `yaml:"accordion" env-default:"2s"`
	Export    time.Duration `yaml:"export" env-default:"60s"`
	Poll      time.Duration `yaml:"poll" env-default:"1s"`
}

// Config defines the overall structure of the bot configuration. Values
// are taken from a yaml file or environment variables or both.
type Config struct {
	Email       string `yaml:"email" env:"GPC_EMAIL"`
	Password    string `yaml:"password" env:"GPC_PASSWORD"`
	AppID       string `yaml:"app_id" env:"GPC_APP_ID"`
	CompanyName string `yaml:"company_name" env:"GPC_COMPANY_NAME"`
	// Days is the number of days scraped, counted back from the last
	// available date.
	Days                 int                    `yaml:"days" env-default:"15"`
	LookbackWindow       string                 `yaml:"lookback_window" env-default:"FIFTEEN_DAYS"`
	Locale               monday.Locale          `yaml:"locale" env-default:"en_US"`
	OutputDir            string                 `yaml:"output_dir" env-default:"output"`
	StagingDir           string                 `yaml:"staging_dir" env-default:"."`
	SkipClassicConsole   bool                   `yaml:"skip_classic_console"`
	MaxPanelPages        int                    `yaml:"max_panel_pages" env-default:"24"`
	CompanyMatchDistance int                    `yaml:"company_match_distance" env-default:"3"`
	ScrapePolicy         reconcile.ScrapePolicy `yaml:"scrape_policy" env-default:"skip"`
	Interact             interact.Type          `yaml:"interact" env-default:"tui"`
	Browser              browser.Config         `yaml:"browser"`
	Waits                Waits                  `yaml:"waits"`
	Delivery             output.DeliveryConfig  `yaml:"delivery"`
}

// Load reads the configuration file at path and applies environment
// overrides and defaults. Callers validate the result for their use.
func Load(path string) (*Config, error) {
	var c Config
	if err := cleanenv.ReadConfig(path, &c); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	c.Browser.DownloadDir = c.StagingDir
	return &c, nil
}

// FromEnv builds a configuration from the environment and defaults only.
func FromEnv() (*Config, error) {
	var c Config
	if err := cleanenv.ReadEnv(&c); err != nil {
		return nil, err
	}
	c.Browser.DownloadDir = c.StagingDir
	return &c, nil
}

// Validate checks everything a scrape run needs.
func (c *Config) Validate() error {
	errs := []error{}
	if c.Email == "" {
		errs = append(errs, errors.New("email is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	if c.AppID == "" {
		errs = append(errs, errors.New("app_id is required"))
	}
	if c.CompanyName == "" {
		errs = append(errs, errors.New("company_name is required"))
	}
	if c.Days <= 0 {
		errs = append(errs, fmt.Errorf("days must be positive but is %d", c.Days))
	}
	if c.LookbackWindow == "" {
		errs = append(errs, errors.New("lookback_window is required"))
	}
	if c.MaxPanelPages <= 0 {
		errs = append(errs, fmt.Errorf("max_panel_pages must be positive but is %d", c.MaxPanelPages))
	}
	if c.CompanyMatchDistance < 0 {
		errs = append(errs, fmt.Errorf("company_match_distance must not be negative but is %d", c.CompanyMatchDistance))
	}
	switch c.Interact {
	case interact.TUI, interact.LINE:
	default:
		errs = append(errs, fmt.Errorf("interact must be one of [%s, %s] but is '%s'", interact.TUI, interact.LINE, c.Interact))
	}
	if err := c.ValidateProcessing(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateProcessing checks what processing and delivering an existing run
// directory needs.
func (c *Config) ValidateProcessing() error {
	errs := []error{}
	switch c.ScrapePolicy {
	case reconcile.SkipScrape, reconcile.RequireScrape:
	default:
		errs = append(errs, fmt.Errorf("scrape_policy must be one of [%s, %s] but is '%s'", reconcile.SkipScrape, reconcile.RequireScrape, c.ScrapePolicy))
	}
	if !supportedLocale(c.Locale) {
		errs = append(errs, fmt.Errorf("locale '%s' is not supported", c.Locale))
	}
	if err := c.Delivery.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Redacted returns a copy of c that is safe to print.
func (c *Config) Redacted() Config {
	r := *c
	if r.Password != "" {
		r.Password = redacted
	}
	if r.Delivery.Token != "" {
		r.Delivery.Token = redacted
	}
	return r
}

func supportedLocale(l monday.Locale) bool {
	for _, s := range monday.ListLocales() {
		if strings.EqualFold(string(s), string(l)) {
			return true
		}
	}
	return false
}
