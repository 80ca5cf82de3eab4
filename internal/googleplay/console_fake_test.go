package googleplay

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/xyla-io/bot-google-play/internal/browser"
	"github.com/xyla-io/bot-google-play/internal/config"
	"github.com/xyla-io/bot-google-play/internal/date"
	"github.com/xyla-io/bot-google-play/internal/interact"
	"github.com/xyla-io/bot-google-play/internal/output"
	"github.com/xyla-io/bot-google-play/internal/reconcile"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/unicode"
)

const (
	testAppID    = "com.example.app"
	testCompany  = "Example Games Ltd"
	reportPrefix = "https://play.google.com/apps/publish/?account=42#AcquisitionPlace:p=" + testAppID
)

// fakeConsole renders the parts of the console the maneuvers touch and
// evaluates their selectors against it. Clickable elements carry a
// data-action attribute on themselves or an ancestor.
type fakeConsole struct {
	t          *testing.T
	stagingDir string
	companies  []string
	// available is the last day the console has data for.
	available time.Time
	// stuck keeps the panel on its month when paging.
	stuck bool
	// noDownloads makes the export buttons do nothing.
	noDownloads bool

	screen        string
	url           string
	typed         map[string]string
	company       string
	classicOpened bool
	adopted       bool
	panelOpen     bool
	panelMonth    time.Time
	selected      time.Time
	openYear      int
	clicks        []string
	downloads     []string
}

func newFakeConsole(t *testing.T, available time.Time) *fakeConsole {
	return &fakeConsole{
		t:          t,
		stagingDir: t.TempDir(),
		companies:  []string{"Other Studio", testCompany},
		available:  available,
		typed:      map[string]string{},
		selected:   date.MonthDelta(available, -2),
	}
}

func reportURL(start, end time.Time) string {
	return fmt.Sprintf("%s&apcs=%s&apce=%s", reportPrefix, start.Format(date.ISOLayout), end.Format(date.ISOLayout))
}

func (c *fakeConsole) Navigate(ctx context.Context, url string) error {
	switch {
	case url == signInURL:
		c.screen = "signin"
		c.url = url
	case strings.HasPrefix(url, reportPrefix) && strings.Contains(url, "&ts="):
		c.screen = "report"
		c.url = reportURL(c.available, c.available) + "&ts=FIFTEEN_DAYS"
	case strings.HasPrefix(url, reportPrefix):
		c.screen = "report"
		c.url = url
	default:
		return fmt.Errorf("unexpected url %s", url)
	}
	return nil
}

func (c *fakeConsole) CurrentURL(ctx context.Context) (string, error) {
	return c.url, nil
}

func (c *fakeConsole) find(selector string) (*html.Node, error) {
	doc, err := htmlquery.Parse(strings.NewReader(c.render()))
	if err != nil {
		c.t.Fatalf("failed to parse the fake console: %v", err)
	}
	n, err := htmlquery.Query(doc, selector)
	if err != nil {
		c.t.Fatalf("invalid selector %s: %v", selector, err)
	}
	if n == nil {
		return nil, &browser.NotFoundError{Selector: selector, Timeout: time.Second}
	}
	return n, nil
}

func (c *fakeConsole) Click(ctx context.Context, selector string) error {
	n, err := c.find(selector)
	if err != nil {
		return err
	}
	for ; n != nil; n = n.Parent {
		if action := htmlquery.SelectAttr(n, "data-action"); action != "" {
			c.clicks = append(c.clicks, action)
			c.act(action)
			return nil
		}
	}
	return nil
}

func (c *fakeConsole) SendKeys(ctx context.Context, selector string, text string) error {
	if _, err := c.find(selector); err != nil {
		return err
	}
	c.typed[selector] = text
	return nil
}

func (c *fakeConsole) Source(ctx context.Context, selector string) (string, error) {
	n, err := c.find(selector)
	if err != nil {
		return "", err
	}
	return htmlquery.OutputHTML(n, true), nil
}

func (c *fakeConsole) Visible(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	_, err := c.find(selector)
	return err == nil, nil
}

func (c *fakeConsole) AdoptNewestTab(ctx context.Context) error {
	if !c.classicOpened {
		return fmt.Errorf("no new tab")
	}
	c.adopted = true
	return nil
}

func (c *fakeConsole) Close() error {
	return nil
}

func (c *fakeConsole) act(action string) {
	name, arg, _ := strings.Cut(action, ":")
	switch name {
	case "password-next":
		c.screen = "companies"
	case "company":
		c.company = arg
		c.screen = "console"
	case "classic":
		c.classicOpened = true
	case "acquisition-reports":
		c.screen = "report"
		c.url = reportURL(date.MonthDelta(c.available, -1), c.available)
	case "date-selector":
		c.panelOpen = true
		c.panelMonth = date.FirstOfMonth(c.selected)
	case "next-page":
		if !c.stuck {
			c.panelMonth = date.MonthDelta(c.panelMonth, 1)
		}
	case "prev-page":
		if !c.stuck {
			c.panelMonth = date.MonthDelta(c.panelMonth, -1)
		}
	case "day":
		d, err := date.ParseISO(arg)
		if err != nil {
			c.t.Fatalf("bad day action %s: %v", action, err)
		}
		c.selected = d
		c.panelOpen = false
	case "bulk":
		c.screen = "bulk"
	case "year":
		y, _ := strconv.Atoi(arg)
		if c.openYear == y {
			c.openYear = 0
		} else {
			c.openYear = y
		}
	case "download":
		if !c.noDownloads {
			c.download(arg)
		}
	}
}

func (c *fakeConsole) render() string {
	var b strings.Builder
	b.WriteString("<html><body>")
	switch c.screen {
	case "signin":
		b.WriteString(`<input id="identifierId"/><div id="identifierNext" data-action="identifier-next">Next</div>`)
		b.WriteString(`<div id="password"><div><input type="password"/></div></div><div id="passwordNext" data-action="password-next">Next</div>`)
	case "companies":
		for _, name := range c.companies {
			fmt.Fprintf(&b, `<div class="business-name entry" data-action="company:%s"> %s </div>`, name, name)
		}
	case "console":
		b.WriteString(`<div data-action="classic"><span class="label">Use classic Play Console</span></div>`)
		fmt.Fprintf(&b, `<a data-action="app"><div>%s</div></a>`, testAppID)
		b.WriteString(`<button data-action="user-acquisition"><span>User acquisition</span></button>`)
		b.WriteString(`<a data-action="acquisition-reports"><span>Acquisition reports</span></a>`)
	case "report":
		b.WriteString(`<div class="toolbar"><button aria-label="Cohort dates selector." data-action="date-selector">Dates</button>`)
		if c.panelOpen {
			c.renderPanel(&b)
		}
		b.WriteString(`</div>`)
		fmt.Fprintf(&b, `<a href="#BulkExportPlace:bep=%s&amp;bet=USER_ACQUISITION" data-action="bulk">Bulk export</a>`, testAppID)
		c.renderReport(&b)
	case "bulk":
		for _, y := range []int{c.available.Year() - 1, c.available.Year()} {
			fmt.Fprintf(&b, `<div class="gwt-Label" data-action="year:%d">%d</div>`, y, y)
			if c.openYear != y {
				continue
			}
			for m := time.January; m <= time.December; m++ {
				fmt.Fprintf(&b, `<button aria-label="Download: Retained installers report, %s %d" data-action="download:%d-%02d">Download</button>`, m, y, y, m)
			}
		}
	}
	b.WriteString("</body></html>")
	return b.String()
}

// renderPanel draws the displayed month with three padding days of the
// previous month in front. Days past the available range are not links.
func (c *fakeConsole) renderPanel(b *strings.Builder) {
	month := c.panelMonth
	previous := date.MonthDelta(month, -1)
	b.WriteString(`<div class="panel"><button data-action="breakdown">Days</button>`)
	b.WriteString(`<button aria-label="Previous page" data-action="prev-page">&lt;</button>`)
	fmt.Fprintf(b, `<span>%s</span><span>%s</span>`,
		date.FormatMonthYear(previous, date.DefaultLocale), date.FormatMonthYear(month, date.DefaultLocale))
	b.WriteString(`<button aria-label="Next page" data-action="next-page">&gt;</button><table><tr>`)
	for i := 3; i > 0; i-- {
		d := month.AddDate(0, 0, -i)
		fmt.Fprintf(b, `<td><a data-action="day:%s">%d</a></td>`, d.Format(date.ISOLayout), d.Day())
	}
	unavailable := false
	for d := month; d.Month() == month.Month(); d = d.AddDate(0, 0, 1) {
		if d.After(c.available) {
			unavailable = true
			fmt.Fprintf(b, `<td><span class="disabled">%d</span></td>`, d.Day())
			continue
		}
		fmt.Fprintf(b, `<td><a data-action="day:%s">%d</a></td>`, d.Format(date.ISOLayout), d.Day())
	}
	b.WriteString(`</tr></table>`)
	if unavailable {
		fmt.Fprintf(b, `<div class="hint">%s</div>`, dateNotAvailableText)
	}
	b.WriteString(`</div>`)
}

// Row 0 and 1 are totals, search and explore follow. Visitors of a channel
// are day*1000+row, installers day*10+row.
func (c *fakeConsole) renderReport(b *strings.Builder) {
	day := c.selected.Day()
	b.WriteString(`<div class="report">`)
	for row := 0; row < 4; row++ {
		fmt.Fprintf(b, `<div class="row"><div title="%s">%d,%03d</div><div title="%s">%d</div></div>`,
			visitorsTitle, day, row, installersTitle, day*10+row)
	}
	b.WriteString(`</div>`)
}

const (
	countryHeader     = "Date,Package Name,Country,Store Listing Visitors,Installers\n"
	playCountryHeader = "Date,Package Name,Country (Play Store),Store Listing Visitors,Installers\n"
	channelHeader     = "Date,Package Name,Acquisition Channel,Store Listing Visitors,Installers\n"
)

// download writes the month's export the way the console does: a zip of
// UTF-16 csv files in the staging directory.
func (c *fakeConsole) download(month string) {
	first, err := time.Parse("2006-01", month)
	if err != nil {
		c.t.Fatalf("bad download action %s: %v", month, err)
	}
	var country, playCountry, channel strings.Builder
	country.WriteString(countryHeader)
	playCountry.WriteString(playCountryHeader)
	channel.WriteString(channelHeader)
	for d := first; d.Month() == first.Month() && !d.After(c.available); d = d.AddDate(0, 0, 1) {
		day := d.Format(date.ISOLayout)
		fmt.Fprintf(&country, "%s,%s,US,100,10\n", day, testAppID)
		fmt.Fprintf(&playCountry, "%s,%s,US,40,4\n", day, testAppID)
		fmt.Fprintf(&channel, "%s,%s,Ads,7,1\n%s,%s,%s,999,99\n", day, testAppID, day, testAppID, reconcile.OrganicSource)
	}
	prefix := fmt.Sprintf("retained_installers_%s_%s", testAppID, first.Format("200601"))
	path := filepath.Join(c.stagingDir, prefix+".zip")
	f, err := os.Create(path)
	if err != nil {
		c.t.Fatalf("failed to create export: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	for suffix, content := range map[string]string{
		"_country.csv":      country.String(),
		"_play_country.csv": playCountry.String(),
		"_channel.csv":      channel.String(),
	} {
		w, err := zw.Create(prefix + suffix)
		if err != nil {
			c.t.Fatalf("failed to add %s: %v", suffix, err)
		}
		encoded, err := enc.String(content)
		if err != nil {
			c.t.Fatalf("failed to encode %s: %v", suffix, err)
		}
		if _, err := w.Write([]byte(encoded)); err != nil {
			c.t.Fatalf("failed to write %s: %v", suffix, err)
		}
	}
	if err := zw.Close(); err != nil {
		c.t.Fatalf("failed to close export: %v", err)
	}
	c.downloads = append(c.downloads, path)
}

// recordingDeliverer keeps every delivery it is handed.
type recordingDeliverer struct {
	deliveries []*output.Delivery
	err        error
}

func (d *recordingDeliverer) Deliver(ctx context.Context, delivery *output.Delivery) error {
	d.deliveries = append(d.deliveries, delivery)
	return d.err
}

func testConfig(t *testing.T, staging string) *config.Config {
	return &config.Config{
		Email:                "bot@example.com",
		Password:             "hunter2",
		AppID:                testAppID,
		CompanyName:          testCompany,
		Days:                 5,
		LookbackWindow:       "FIFTEEN_DAYS",
		Locale:               date.DefaultLocale,
		OutputDir:            t.TempDir(),
		StagingDir:           staging,
		MaxPanelPages:        6,
		CompanyMatchDistance: 3,
		ScrapePolicy:         reconcile.SkipScrape,
		Waits: config.Waits{
			Export: 200 * time.Millisecond,
			Poll:   10 * time.Millisecond,
		},
	}
}

// newTestPilot wires a pilot to c with a scripted user and a recording
// deliverer.
func newTestPilot(t *testing.T, c *fakeConsole) (*Pilot, *interact.Scripted, *recordingDeliverer) {
	user := &interact.Scripted{}
	d := &recordingDeliverer{}
	p := NewPilot(testConfig(t, c.stagingDir), c, user, d)
	p.now = func() time.Time { return time.Date(2024, 1, 20, 9, 30, 0, 0, time.UTC) }
	return p, user, d
}
