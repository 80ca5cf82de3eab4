package reconcile

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

// PlatformID identifies Google Play in the normalized tables.
const PlatformID = 2

const (
	OrganicSource   = "Play Store (organic)"
	InorganicSource = "Inorganic"
	// UnknownCountry replaces empty country codes.
	UnknownCountry = "XX"
)

// MetricRow is one row of a normalized table. CountryCode is only set in
// the country tables.
type MetricRow struct {
	Date        time.Time
	Value       float64
	PlatformID  int
	Source      string
	AppName     string
	CountryCode string
}

// Table is one of the four normalized output tables.
type Table struct {
	Name      string
	Metric    string
	ByCountry bool
	Rows      []MetricRow
}

func (t *Table) FileName() string {
	return t.Name + ".csv"
}

func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

func (t *Table) header() []string {
	h := []string{"date", t.Metric, "platform_id", "source", "app_name"}
	if t.ByCountry {
		h = append(h, "country_code")
	}
	return h
}

func (t *Table) write(dir string) error {
	f, err := os.Create(filepath.Join(dir, t.FileName()))
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(t.header()); err != nil {
		return err
	}
	for _, r := range t.Rows {
		rec := []string{
			r.Date.Format(time.DateOnly),
			strconv.FormatFloat(r.Value, 'f', -1, 64),
			strconv.Itoa(r.PlatformID),
			r.Source,
			r.AppName,
		}
		if t.ByCountry {
			rec = append(rec, r.CountryCode)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// Summary describes a table for reporting.
type Summary struct {
	Table   string
	Rows    int
	Sources []string
	MinDate time.Time
	MaxDate time.Time
	Total   float64
}

func (t *Table) Summary() Summary {
	s := Summary{Table: t.Name, Rows: len(t.Rows)}
	for i, r := range t.Rows {
		if i == 0 || r.Date.Before(s.MinDate) {
			s.MinDate = r.Date
		}
		if i == 0 || r.Date.After(s.MaxDate) {
			s.MaxDate = r.Date
		}
		if !slices.Contains(s.Sources, r.Source) {
			s.Sources = append(s.Sources, r.Source)
		}
		s.Total += r.Value
	}
	slices.Sort(s.Sources)
	return s
}
