// Package reconcile turns the exports of a run directory into the four
// normalized acquisition tables.
//
// Country exports come in two flavours, totals and Play Store (organic)
// only. Inorganic figures are derived as the clamped difference of the two.
// Channel exports are merged with the in-session scrape, which is
// authoritative for the organic channels on the dates it covers.
package reconcile

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/xyla-io/bot-google-play/internal/log"
)

var (
	// ErrMalformedExport is returned for csv files that lack an expected
	// column or hold values that cannot be parsed.
	ErrMalformedExport = errors.New("malformed export")
	// ErrIncomplete is returned by Save when not all tables hold data.
	ErrIncomplete = errors.New("data is not fully processed")
	// ErrAlreadyProcessed is returned by Save when the destination exists.
	ErrAlreadyProcessed = errors.New("processed data path already exists")
)

// ScrapePolicy decides what happens when the in-session scrape cannot be
// merged into the channel tables.
type ScrapePolicy string

const (
	// SkipScrape logs a warning and continues with vendor data only.
	SkipScrape ScrapePolicy = "skip"
	// RequireScrape fails processing.
	RequireScrape ScrapePolicy = "fail"
)

const ProcessedDirName = "processed"

// Processor reconciles the exports found in SourceDir and saves the result
// to ProcessedDir.
type Processor struct {
	SourceDir    string
	ProcessedDir string
	Policy       ScrapePolicy

	CountryImpressions *Table
	CountryDownloads   *Table
	ChannelImpressions *Table
	ChannelDownloads   *Table
}

func NewProcessor(sourceDir string, policy ScrapePolicy) *Processor {
	if policy == "" {
		policy = SkipScrape
	}
	return &Processor{
		SourceDir:    sourceDir,
		ProcessedDir: filepath.Join(sourceDir, ProcessedDirName),
		Policy:       policy,
	}
}

// Tables returns the four tables in output order.
func (p *Processor) Tables() []*Table {
	return []*Table{p.CountryImpressions, p.CountryDownloads, p.ChannelImpressions, p.ChannelDownloads}
}

// Process unpacks the archives of the source directory and builds the
// tables. It does not write anything but the unpacked files.
func (p *Processor) Process(ctx context.Context) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("dir", p.SourceDir))
	archives, err := unpack(p.SourceDir)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("unpacked %d archives", len(archives)))

	files, err := filepath.Glob(filepath.Join(p.SourceDir, "*.csv"))
	if err != nil {
		return err
	}
	slices.Sort(files)
	byFamily := map[family][]string{}
	for _, f := range files {
		fam := classify(filepath.Base(f))
		if fam == unknownFamily {
			logger.Debug(fmt.Sprintf("ignoring %s", filepath.Base(f)))
			continue
		}
		byFamily[fam] = append(byFamily[fam], f)
	}

	organic, err := readFamily(byFamily[organicCountryFamily], organicCountrySchema)
	if err != nil {
		return err
	}
	total, err := readFamily(byFamily[totalCountryFamily], totalCountrySchema)
	if err != nil {
		return err
	}
	channel, err := readFamily(byFamily[channelFamily], channelSchema)
	if err != nil {
		return err
	}
	logger.Debug(fmt.Sprintf("read %d organic country, %d total country and %d channel rows", len(organic), len(total), len(channel)))

	p.CountryImpressions, p.CountryDownloads = countryTables(total, organic)

	scrape, err := readFamily(byFamily[scrapeFamily], scrapeSchema)
	if err == nil && len(byFamily[scrapeFamily]) == 0 {
		err = fmt.Errorf("%s not found", ScrapeFileName)
	}
	if err != nil {
		if p.Policy == RequireScrape {
			return fmt.Errorf("failed to load in-session scrape: %w", err)
		}
		logger.Warn(fmt.Sprintf("in-session scrape not loaded, using exported channel data only: %v", err))
	} else {
		channel = mergeScrape(channel, scrape)
	}
	p.ChannelImpressions, p.ChannelDownloads = channelTables(channel)
	return nil
}

// Save writes the four tables to ProcessedDir. It fails without writing
// anything if a table is empty or ProcessedDir already exists.
func (p *Processor) Save(ctx context.Context) error {
	for _, t := range p.Tables() {
		if t.Empty() {
			return ErrIncomplete
		}
	}
	if err := os.Mkdir(p.ProcessedDir, 0755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyProcessed, p.ProcessedDir)
		}
		return err
	}
	for _, t := range p.Tables() {
		if err := t.write(p.ProcessedDir); err != nil {
			return fmt.Errorf("failed to write %s: %w", t.FileName(), err)
		}
	}
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("saved processed data to %s", p.ProcessedDir))
	return nil
}

// MinDate returns the earliest date of all non-empty tables.
func (p *Processor) MinDate() (time.Time, bool) {
	return p.dateBound(func(a, b time.Time) bool { return a.Before(b) })
}

// MaxDate returns the latest date of all non-empty tables.
func (p *Processor) MaxDate() (time.Time, bool) {
	return p.dateBound(func(a, b time.Time) bool { return a.After(b) })
}

func (p *Processor) dateBound(better func(a, b time.Time) bool) (time.Time, bool) {
	var bound time.Time
	found := false
	for _, t := range p.Tables() {
		if t.Empty() {
			continue
		}
		for _, r := range t.Rows {
			if !found || better(r.Date, bound) {
				bound, found = r.Date, true
			}
		}
	}
	return bound, found
}

// Summaries describes the non-empty tables.
func (p *Processor) Summaries() []Summary {
	s := []Summary{}
	for _, t := range p.Tables() {
		if !t.Empty() {
			s = append(s, t.Summary())
		}
	}
	return s
}

type countryKey struct {
	date    time.Time
	app     string
	country string
}

func compareCountryKeys(a, b countryKey) int {
	return cmp.Or(a.date.Compare(b.date), cmp.Compare(a.app, b.app), cmp.Compare(a.country, b.country))
}

type metrics struct {
	visitors   float64
	installers float64
}

func aggregateCountries(rows []exportRow) map[countryKey]metrics {
	agg := map[countryKey]metrics{}
	for _, r := range rows {
		country := r.key
		if country == "" {
			country = UnknownCountry
		}
		k := countryKey{date: r.date, app: r.app, country: country}
		m := agg[k]
		m.visitors += r.visitors
		m.installers += r.installers
		agg[k] = m
	}
	return agg
}

// countryTables joins totals and organic figures on (date, app, country)
// over the union of both sides, a missing side counting as zero.
func countryTables(total, organic []exportRow) (*Table, *Table) {
	totals := aggregateCountries(total)
	organics := aggregateCountries(organic)
	keys := make([]countryKey, 0, len(totals)+len(organics))
	for k := range totals {
		keys = append(keys, k)
	}
	for k := range organics {
		if _, ok := totals[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, compareCountryKeys)

	impressions := &Table{Name: "country-impressions", Metric: "impressions", ByCountry: true}
	downloads := &Table{Name: "country-downloads", Metric: "downloads", ByCountry: true}
	row := func(k countryKey, source string, v float64) MetricRow {
		return MetricRow{Date: k.date, Value: v, PlatformID: PlatformID, Source: source, AppName: k.app, CountryCode: k.country}
	}
	for _, k := range keys {
		o := organics[k]
		impressions.Rows = append(impressions.Rows, row(k, OrganicSource, o.visitors))
		downloads.Rows = append(downloads.Rows, row(k, OrganicSource, o.installers))
	}
	for _, k := range keys {
		t, o := totals[k], organics[k]
		impressions.Rows = append(impressions.Rows, row(k, InorganicSource, inorganic(t.visitors, o.visitors)))
		downloads.Rows = append(downloads.Rows, row(k, InorganicSource, inorganic(t.installers, o.installers)))
	}
	return impressions, downloads
}

func inorganic(total, organic float64) float64 {
	return max(0, total-organic)
}

// mergeScrape keeps the vendor rows on dates the scrape covers, minus the
// vendor's organic rows, and adds the scrape rows on dates the vendor
// export covers.
func mergeScrape(vendor, scrape []exportRow) []exportRow {
	vendorDates := map[time.Time]bool{}
	for _, r := range vendor {
		vendorDates[r.date] = true
	}
	scrapeDates := map[time.Time]bool{}
	for _, r := range scrape {
		scrapeDates[r.date] = true
	}
	merged := []exportRow{}
	for _, r := range vendor {
		if scrapeDates[r.date] && r.key != OrganicSource {
			merged = append(merged, r)
		}
	}
	for _, r := range scrape {
		if vendorDates[r.date] {
			merged = append(merged, r)
		}
	}
	return merged
}

func channelTables(rows []exportRow) (*Table, *Table) {
	impressions := &Table{Name: "channel-impressions", Metric: "impressions"}
	downloads := &Table{Name: "channel-downloads", Metric: "downloads"}
	for _, r := range rows {
		impressions.Rows = append(impressions.Rows, MetricRow{Date: r.date, Value: r.visitors, PlatformID: PlatformID, Source: r.key, AppName: r.app})
		downloads.Rows = append(downloads.Rows, MetricRow{Date: r.date, Value: r.installers, PlatformID: PlatformID, Source: r.key, AppName: r.app})
	}
	return impressions, downloads
}
