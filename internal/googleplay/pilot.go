// Package googleplay flies the Google Play Console: it signs in, walks the
// acquisition report one day at a time, downloads the bulk exports and
// hands them to the reconciliation.
package googleplay

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xyla-io/bot-google-play/internal/browser"
	"github.com/xyla-io/bot-google-play/internal/config"
	"github.com/xyla-io/bot-google-play/internal/interact"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
	"github.com/xyla-io/bot-google-play/internal/output"
)

// Stage is the progress of a run through the console.
type Stage int

const (
	SignedOut Stage = iota
	AwaitingManualStep
	Navigated
	PerDateScrape
	BulkExportRequested
	ExportsDownloaded
	Processed
	Delivered
)

var stageNames = []string{
	"signed out",
	"awaiting manual step",
	"navigated",
	"per date scrape",
	"bulk export requested",
	"exports downloaded",
	"processed",
	"delivered",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// ErrStageRegression is returned when a run tries to move back to an
// earlier stage.
var ErrStageRegression = errors.New("stage cannot move backwards")

const runDirLayout = "2006-01-02_15-04-05"

// Pilot is the state of one scrape run. It owns the browser session and the
// run directory; its ordnance is the scraped acquisition report.
type Pilot struct {
	maneuver.Ordnance[Report]

	Config    *config.Config
	browser   browser.Browser
	user      interact.Interactor
	deliverer output.Deliverer
	now       func() time.Time

	stage        Stage
	downloadPath string
}

func NewPilot(cfg *config.Config, b browser.Browser, user interact.Interactor, d output.Deliverer) *Pilot {
	return &Pilot{
		Config:    cfg,
		browser:   b,
		user:      user,
		deliverer: d,
		now:       time.Now,
	}
}

func (p *Pilot) Browser() browser.Browser {
	return p.browser
}

func (p *Pilot) Interactor() interact.Interactor {
	return p.user
}

func (p *Pilot) Deliverer() output.Deliverer {
	return p.deliverer
}

// Now returns the current time in UTC.
func (p *Pilot) Now() time.Time {
	return p.now().UTC()
}

func (p *Pilot) Stage() Stage {
	return p.stage
}

// Advance moves the run to stage s. Staying in the current stage is allowed.
func (p *Pilot) Advance(s Stage) error {
	if s < p.stage {
		return fmt.Errorf("%w: %s to %s", ErrStageRegression, p.stage, s)
	}
	p.stage = s
	return nil
}

// DownloadPath returns the run directory
// <output_dir>/google_play/<app_id>/<timestamp>, creating it on first use.
func (p *Pilot) DownloadPath() (string, error) {
	if p.downloadPath != "" {
		return p.downloadPath, nil
	}
	appDir := filepath.Join(p.Config.OutputDir, "google_play", p.Config.AppID)
	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", err
	}
	dir := filepath.Join(appDir, p.Now().Format(runDirLayout))
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	p.downloadPath = dir
	return dir, nil
}
