package googleplay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xyla-io/bot-google-play/internal/date"
	"github.com/xyla-io/bot-google-play/internal/log"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
	"github.com/xyla-io/bot-google-play/internal/primitive"
	"github.com/xyla-io/bot-google-play/internal/reconcile"
)

const manualStepPrompt = "Complete the two-factor sign-in in the browser, then continue."

// GooglePlay is a complete run: sign in, scrape the acquisition report day
// by day, download the bulk exports, reconcile and deliver. Its ordnance is
// the scraped report, which is also loaded on the pilot.
type GooglePlay struct {
	maneuver.Base
	maneuver.Ordnance[Report]
}

func (m *GooglePlay) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("app", pilot.Config.AppID))
	cfg := pilot.Config

	if err := f.Run(ctx, primitive.NewNavigate[*Pilot](signInURL)); err != nil {
		return err
	}
	if err := f.Run(ctx, &SignIn{}); err != nil {
		return err
	}
	if err := pilot.Advance(AwaitingManualStep); err != nil {
		return err
	}
	if err := f.Run(ctx, primitive.NewInteract[*Pilot](manualStepPrompt)); err != nil {
		return err
	}

	if err := f.Run(ctx, &SelectCompany{}); err != nil {
		return err
	}
	if !cfg.SkipClassicConsole {
		if err := f.Run(ctx, &OpenClassicConsole{}); err != nil {
			return err
		}
	}
	if err := f.Run(ctx, &NavigateToReport{}); err != nil {
		return err
	}
	boundary, err := maneuver.Deploy[*Pilot, time.Time](ctx, f, &DeriveBoundaryDate{})
	if err != nil {
		return err
	}
	if err := pilot.Advance(Navigated); err != nil {
		return err
	}

	if err := pilot.Advance(PerDateScrape); err != nil {
		return err
	}
	report, err := maneuver.Deploy[*Pilot, Report](ctx, f, &ScrapeDateRange{Dates: date.Range(boundary, cfg.Days)})
	if err != nil {
		return err
	}
	dir, err := pilot.DownloadPath()
	if err != nil {
		return err
	}
	if err := WriteReport(ScrapeReportFile(dir), report); err != nil {
		return fmt.Errorf("failed to write the scraped report: %w", err)
	}
	logger.Info(fmt.Sprintf("scraped %d rows", len(report)), slog.String("dir", dir))
	pilot.Load(report)

	if err := pilot.Advance(BulkExportRequested); err != nil {
		return err
	}
	months := []time.Time{boundary, date.MonthDelta(boundary, -1)}
	files, err := maneuver.Deploy[*Pilot, []string](ctx, f, &DownloadBulkExport{Months: months})
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("downloaded %d exports", len(files)))
	if err := pilot.Advance(ExportsDownloaded); err != nil {
		return err
	}

	processor, err := maneuver.Deploy[*Pilot, *reconcile.Processor](ctx, f, &ProcessData{})
	if err != nil {
		return err
	}
	if err := pilot.Advance(Processed); err != nil {
		return err
	}

	if err := f.Run(ctx, &Deliver{Processor: processor}); err != nil {
		return err
	}
	if err := pilot.Advance(Delivered); err != nil {
		return err
	}
	m.Load(report)
	return nil
}
