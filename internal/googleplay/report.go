package googleplay

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xyla-io/bot-google-play/internal/date"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
	"github.com/xyla-io/bot-google-play/internal/primitive"
	"github.com/xyla-io/bot-google-play/internal/reconcile"
)

// Channels are the acquisition channels read from the report, in the order
// of their rows. The first two rows of the report are totals.
var Channels = []string{"search", "explore"}

const firstChannelRow = 2

// AcquisitionRecord is one channel of the acquisition report on one day.
type AcquisitionRecord struct {
	Date       time.Time
	Channel    string
	Visitors   int
	Installers int
	AppID      string
}

// Report is the scraped acquisition data of a run.
type Report []AcquisitionRecord

// ParseAcquisitionReport reads the channel rows of the rendered report.
func ParseAcquisitionReport(src string) (Report, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	visitors := doc.Find(fmt.Sprintf("div[title*=%q]", visitorsTitle))
	installers := doc.Find(fmt.Sprintf("div[title*=%q]", installersTitle))
	rows := firstChannelRow + len(Channels)
	if visitors.Length() < rows || installers.Length() < rows {
		return nil, fmt.Errorf("acquisition report has %d visitor and %d installer cells, expected at least %d",
			visitors.Length(), installers.Length(), rows)
	}
	report := Report{}
	for i, channel := range Channels {
		v, err := parseCount(visitors.Eq(firstChannelRow + i).Text())
		if err != nil {
			return nil, err
		}
		n, err := parseCount(installers.Eq(firstChannelRow + i).Text())
		if err != nil {
			return nil, err
		}
		report = append(report, AcquisitionRecord{Channel: channel, Visitors: v, Installers: n})
	}
	return report, nil
}

func parseCount(s string) (int, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse count %q: %w", s, err)
	}
	return n, nil
}

// ScrapeAcquisitionReport loads the channel rows of the report on screen.
type ScrapeAcquisitionReport struct {
	maneuver.Base
	maneuver.Ordnance[Report]
}

func (m *ScrapeAcquisitionReport) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	src, err := maneuver.Deploy[*Pilot, string](ctx, f, primitive.NewFindElement[*Pilot](pageBody))
	if err != nil {
		return err
	}
	report, err := ParseAcquisitionReport(src)
	if err != nil {
		return err
	}
	m.Load(report)
	return nil
}

// ScrapeDate selects Date in the report and loads its channel rows.
type ScrapeDate struct {
	maneuver.Base
	maneuver.Ordnance[Report]
	Date time.Time
}

func (m *ScrapeDate) Name() string {
	return fmt.Sprintf("ScrapeDate(%s)", m.Date.Format(date.ISOLayout))
}

func (m *ScrapeDate) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	if err := f.Run(ctx, primitive.NewClick[*Pilot](dateSelector)); err != nil {
		return err
	}
	if err := f.Run(ctx, &SelectDate{Date: m.Date}); err != nil {
		return err
	}
	if err := f.Run(ctx, primitive.NewPause[*Pilot](pilot.Config.Waits.Render)); err != nil {
		return err
	}
	report, err := maneuver.Deploy[*Pilot, Report](ctx, f, &ScrapeAcquisitionReport{})
	if err != nil {
		return err
	}
	for i := range report {
		report[i].Date = date.Day(m.Date)
		report[i].AppID = pilot.Config.AppID
	}
	m.Load(report)
	return nil
}

// ScrapeDateRange scrapes the given dates one after the other and loads the
// concatenated rows.
type ScrapeDateRange struct {
	maneuver.Base
	maneuver.Ordnance[Report]
	Dates []time.Time
}

func (m *ScrapeDateRange) Name() string {
	return fmt.Sprintf("ScrapeDateRange(%d)", len(m.Dates))
}

func (m *ScrapeDateRange) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	steps := make([]maneuver.OrdnanceManeuver[*Pilot, Report], 0, len(m.Dates))
	for _, d := range m.Dates {
		steps = append(steps, &ScrapeDate{Date: d})
	}
	collect := maneuver.NewCollect(steps...)
	collect.Label = "ScrapeDates"
	reports, err := maneuver.Deploy[*Pilot, []Report](ctx, f, collect)
	if err != nil {
		return err
	}
	all := Report{}
	for _, r := range reports {
		all = append(all, r...)
	}
	m.Load(all)
	return nil
}

// WriteReport writes r as csv to path.
func WriteReport(path string, r Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"date", "acquisition_channel", "store_listing_visitors", "first_time_installers", "app_id"}); err != nil {
		return err
	}
	for _, rec := range r {
		if err := w.Write([]string{
			rec.Date.Format(date.ISOLayout),
			rec.Channel,
			strconv.Itoa(rec.Visitors),
			strconv.Itoa(rec.Installers),
			rec.AppID,
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ScrapeReportFile is where the scraped report of a run is written.
func ScrapeReportFile(dir string) string {
	return filepath.Join(dir, reconcile.ScrapeFileName)
}
