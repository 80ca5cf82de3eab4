package reconcile

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ScrapeFileName is the name of the csv written by the in-session scrape.
const ScrapeFileName = "GooglePlayScraper.csv"

// Column names of the vendor exports.
const (
	dateColumn           = "Date"
	packageColumn        = "Package Name"
	countryColumn        = "Country"
	playCountryColumn    = "Country (Play Store)"
	channelColumn        = "Acquisition Channel"
	visitorsColumn       = "Store Listing Visitors"
	installersColumn     = "Installers"
	scrapeDateColumn     = "date"
	scrapeChannelColumn  = "acquisition_channel"
	scrapeVisitorsColumn = "store_listing_visitors"
	scrapeInstallsColumn = "first_time_installers"
	scrapeAppColumn      = "app_id"
)

// family is a schema family of the csv files found in a run directory.
type family int

const (
	unknownFamily family = iota
	scrapeFamily
	organicCountryFamily
	totalCountryFamily
	channelFamily
)

func classify(name string) family {
	switch {
	case strings.Contains(name, "GooglePlayScraper"):
		return scrapeFamily
	case strings.Contains(name, "play_country.csv"):
		return organicCountryFamily
	case strings.Contains(name, "country.csv"):
		return totalCountryFamily
	case strings.Contains(name, "channel.csv"):
		return channelFamily
	default:
		return unknownFamily
	}
}

// exportRow is one line of any of the csv families.
type exportRow struct {
	date       time.Time
	app        string
	key        string
	visitors   float64
	installers float64
}

type schema struct {
	date, app, key, visitors, installers string
}

var (
	organicCountrySchema = schema{dateColumn, packageColumn, playCountryColumn, visitorsColumn, installersColumn}
	totalCountrySchema   = schema{dateColumn, packageColumn, countryColumn, visitorsColumn, installersColumn}
	channelSchema        = schema{dateColumn, packageColumn, channelColumn, visitorsColumn, installersColumn}
	scrapeSchema         = schema{scrapeDateColumn, scrapeAppColumn, scrapeChannelColumn, scrapeVisitorsColumn, scrapeInstallsColumn}
)

// unpack extracts all zip archives in dir into dir. Entries are flattened to
// their base name and never replace another file.
func unpack(dir string) ([]string, error) {
	archives, err := filepath.Glob(filepath.Join(dir, "*.zip"))
	if err != nil {
		return nil, err
	}
	slices.Sort(archives)
	written := map[string]string{}
	for _, a := range archives {
		if err := unzip(a, dir, written); err != nil {
			return nil, fmt.Errorf("failed to unpack %s: %w", a, err)
		}
	}
	return archives, nil
}

// unzip extracts archive into dir. written maps the files extracted so far
// to the entry they came from.
func unzip(archive, dir string, written map[string]string) error {
	r, err := zip.OpenReader(archive)
	if errors.Is(err, zip.ErrInsecurePath) {
		r.Close()
		return fmt.Errorf("%w: %v", ErrMalformedExport, err)
	}
	if err != nil {
		return err
	}
	defer r.Close()
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Clean(filepath.FromSlash(f.Name))
		if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: archive entry %s escapes the directory", ErrMalformedExport, f.Name)
		}
		entry := filepath.Base(archive) + ":" + f.Name
		target := filepath.Join(dir, filepath.Base(name))
		if prev, ok := written[target]; ok {
			return fmt.Errorf("%w: archive entry %s collides with %s", ErrMalformedExport, entry, prev)
		}
		if err := extract(f, target); err != nil {
			return err
		}
		written[target] = entry
	}
	return nil
}

// extract writes f to target. An existing target is only accepted when it
// holds exactly the content of f, as left by an earlier unpack of the same
// archive.
func extract(f *zip.File, target string) error {
	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, fs.ErrExist) {
		same, err := unpackedBefore(f, target)
		if err != nil {
			return err
		}
		if !same {
			return fmt.Errorf("%w: archive entry %s would overwrite %s", ErrMalformedExport, f.Name, filepath.Base(target))
		}
		return nil
	}
	if err != nil {
		return err
	}
	src, err := f.Open()
	if err != nil {
		dst.Close()
		return err
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func unpackedBefore(f *zip.File, path string) (bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	return uint64(len(b)) == f.UncompressedSize64 && crc32.ChecksumIEEE(b) == f.CRC32, nil
}

// readRecords reads a csv file. A UTF-16 or UTF-8 byte order mark selects
// the encoding, without one the content is taken to be UTF-8.
func readRecords(path string) ([][]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decoded := transform.NewReader(bytes.NewReader(b), unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	r := csv.NewReader(decoded)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedExport, filepath.Base(path), err)
	}
	return records, nil
}

// readFamily reads all files with the given schema, in order.
func readFamily(paths []string, s schema) ([]exportRow, error) {
	rows := []exportRow{}
	for _, p := range paths {
		records, err := readRecords(p)
		if err != nil {
			return nil, err
		}
		r, err := parseRecords(filepath.Base(p), records, s)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r...)
	}
	return rows, nil
}

func parseRecords(name string, records [][]string, s schema) ([]exportRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformedExport, name)
	}
	index := map[string]int{}
	for i, h := range records[0] {
		index[strings.TrimSpace(h)] = i
	}
	cols := make([]int, 0, 5)
	for _, c := range []string{s.date, s.app, s.key, s.visitors, s.installers} {
		i, ok := index[c]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no column %q", ErrMalformedExport, name, c)
		}
		cols = append(cols, i)
	}

	rows := make([]exportRow, 0, len(records)-1)
	for n, rec := range records[1:] {
		field := func(i int) string {
			if cols[i] < len(rec) {
				return strings.TrimSpace(rec[cols[i]])
			}
			return ""
		}
		d, err := time.Parse(time.DateOnly, field(0))
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedExport, name, n+2, err)
		}
		visitors, err := parseNumber(field(3))
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedExport, name, n+2, err)
		}
		installers, err := parseNumber(field(4))
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", ErrMalformedExport, name, n+2, err)
		}
		rows = append(rows, exportRow{
			date:       d,
			app:        field(1),
			key:        field(2),
			visitors:   visitors,
			installers: installers,
		})
	}
	return rows, nil
}

// parseNumber parses a metric, ignoring thousands separators. An empty
// field counts as zero.
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("invalid number " + strconv.Quote(s))
	}
	return v, nil
}
