package googleplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/xyla-io/bot-google-play/internal/browser"
	"github.com/xyla-io/bot-google-play/internal/date"
	"github.com/xyla-io/bot-google-play/internal/log"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
	"github.com/xyla-io/bot-google-play/internal/output"
	"github.com/xyla-io/bot-google-play/internal/primitive"
	"github.com/xyla-io/bot-google-play/internal/reconcile"
)

// ErrNoExports is returned when no bulk export arrived in the staging
// directory.
var ErrNoExports = errors.New("no bulk exports downloaded")

// DownloadBulkExport requests the retained installers export of each month
// in Months, waits for the downloads and moves them into the run directory.
// Its ordnance is the list of moved files.
type DownloadBulkExport struct {
	maneuver.Base
	maneuver.Ordnance[[]string]
	Months []time.Time
}

func (m *DownloadBulkExport) Name() string {
	return fmt.Sprintf("DownloadBulkExport(%d)", len(m.Months))
}

func (m *DownloadBulkExport) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	waits := pilot.Config.Waits
	steps := []maneuver.Maneuver[*Pilot]{
		primitive.NewPause[*Pilot](waits.Accordion),
		primitive.NewClick[*Pilot](bulkExportLink(pilot.Config.AppID)),
		primitive.NewPause[*Pilot](waits.Navigate),
	}
	for _, month := range m.Months {
		// the accordion is closed again so the next year can be found
		steps = append(steps,
			primitive.NewClick[*Pilot](yearAccordion(month.Year())),
			primitive.NewPause[*Pilot](waits.Accordion),
			primitive.NewClick[*Pilot](monthDownload(month)),
			primitive.NewClick[*Pilot](yearAccordion(month.Year())),
			primitive.NewPause[*Pilot](waits.Accordion),
		)
	}
	seq := maneuver.NewSequence(steps...)
	seq.Label = "RequestExports"
	if err := f.Run(ctx, seq); err != nil {
		return err
	}

	files, err := m.awaitDownloads(ctx, pilot)
	if err != nil {
		return err
	}
	dir, err := pilot.DownloadPath()
	if err != nil {
		return err
	}
	moved := make([]string, 0, len(files))
	for _, file := range files {
		target := filepath.Join(dir, filepath.Base(file))
		if err := os.Rename(file, target); err != nil {
			return fmt.Errorf("failed to move export %s: %w", file, err)
		}
		moved = append(moved, target)
	}
	m.Load(moved)
	return nil
}

func (m *DownloadBulkExport) awaitDownloads(ctx context.Context, pilot *Pilot) ([]string, error) {
	logger := log.LoggerFromContext(ctx)
	pattern := filepath.Join(pilot.Config.StagingDir, exportPattern(pilot.Config.AppID))
	var files []string
	err := browser.Poll(ctx, pilot.Config.Waits.Export, pilot.Config.Waits.Poll, func(ctx context.Context) (bool, error) {
		var err error
		files, err = filepath.Glob(pattern)
		return len(files) >= len(m.Months), err
	})
	switch {
	case errors.Is(err, browser.ErrPollTimeout) && len(files) == 0:
		return nil, fmt.Errorf("%w: nothing matched %s", ErrNoExports, pattern)
	case errors.Is(err, browser.ErrPollTimeout):
		logger.Warn(fmt.Sprintf("only %d of %d exports downloaded", len(files), len(m.Months)))
	case err != nil:
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// ProcessData reconciles the run directory and saves the tables.
type ProcessData struct {
	maneuver.Base
	maneuver.Ordnance[*reconcile.Processor]
}

func (m *ProcessData) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	dir, err := pilot.DownloadPath()
	if err != nil {
		return err
	}
	p := reconcile.NewProcessor(dir, pilot.Config.ScrapePolicy)
	if err := p.Process(ctx); err != nil {
		return err
	}
	if err := p.Save(ctx); err != nil {
		return err
	}
	m.Load(p)
	return nil
}

// Deliver packages the processed tables and hands them to the deliverer.
type Deliver struct {
	maneuver.Base
	Processor *reconcile.Processor
}

func (m *Deliver) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	d, err := NewDelivery(m.Processor, pilot.Config.CompanyName, pilot.Config.AppID)
	if err != nil {
		return err
	}
	log.LoggerFromContext(ctx).Info("delivering", slog.String("archive", d.Archive))
	return pilot.Deliverer().Deliver(ctx, d)
}

// NewDelivery zips the saved tables of p and describes them for delivery.
func NewDelivery(p *reconcile.Processor, organization, appID string) (*output.Delivery, error) {
	minDate, ok := p.MinDate()
	if !ok {
		return nil, fmt.Errorf("%w: no dates to deliver", reconcile.ErrIncomplete)
	}
	maxDate, _ := p.MaxDate()
	archive, err := output.Package(p.ProcessedDir, appID)
	if err != nil {
		return nil, err
	}
	return &output.Delivery{
		Organization: organization,
		AppID:        appID,
		MinDate:      date.Day(minDate),
		MaxDate:      date.Day(maxDate),
		Archive:      archive,
	}, nil
}
