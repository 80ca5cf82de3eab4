package googleplay

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/goodsign/monday"
	"github.com/xyla-io/bot-google-play/internal/date"
	"golang.org/x/net/html"
)

var (
	dayLabel       = regexp.MustCompile(`^[0-9]{1,2}$`)
	monthYearLabel = regexp.MustCompile(`^\p{L}+ [0-9]{4}$`)
)

// DatePanel reads the date picker of the acquisition report. The panel
// shows one month and may repeat day numbers in padding cells of the
// adjacent months, so every lookup takes the last match in document order.
type DatePanel struct {
	doc    *goquery.Document
	locale monday.Locale
}

func NewDatePanel(src string, locale monday.Locale) (*DatePanel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	return &DatePanel{doc: doc, locale: locale}, nil
}

// ownText returns the text of the direct text children of the node.
func ownText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				b.WriteString(c.Data)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// DateNotAvailable reports whether the panel shows the marker for days past
// the available range.
func (p *DatePanel) DateNotAvailable() bool {
	found := false
	p.doc.Find("*").EachWithBreak(func(i int, s *goquery.Selection) bool {
		found = strings.Contains(ownText(s), dateNotAvailableText)
		return !found
	})
	return found
}

func (p *DatePanel) dayLinks() *goquery.Selection {
	return p.doc.Find("a").FilterFunction(func(i int, s *goquery.Selection) bool {
		return dayLabel.MatchString(strings.TrimSpace(s.Text()))
	})
}

// Days returns the number of day links in the panel.
func (p *DatePanel) Days() int {
	return p.dayLinks().Length()
}

// LastDay returns the number of the last enabled day.
func (p *DatePanel) LastDay() (int, error) {
	links := p.dayLinks()
	if links.Length() == 0 {
		return 0, fmt.Errorf("no day links in the date panel")
	}
	return strconv.Atoi(strings.TrimSpace(links.Last().Text()))
}

// LastDate returns the date of the last enabled day. Padding cells of the
// adjacent months are told apart by where the day numbers restart: links
// before the first restart belong to the previous month unless the panel
// opens on day 1.
func (p *DatePanel) LastDate() (time.Time, error) {
	month, err := p.MonthYear()
	if err != nil {
		return time.Time{}, err
	}
	days := []int{}
	p.dayLinks().Each(func(i int, s *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(s.Text())); err == nil {
			days = append(days, n)
		}
	})
	if len(days) == 0 {
		return time.Time{}, fmt.Errorf("no day links in the date panel")
	}
	offset := 0
	if days[0] != 1 {
		offset = -1
	}
	for i := 1; i < len(days); i++ {
		if days[i] < days[i-1] {
			offset++
		}
	}
	first := date.MonthDelta(month, offset)
	last := first.AddDate(0, 0, days[len(days)-1]-1)
	if last.Month() != first.Month() {
		return time.Time{}, fmt.Errorf("day %d does not exist in %s", days[len(days)-1], first.Format(date.MonthYearLayout))
	}
	return last, nil
}

// MonthYear returns the first day of the month the panel displays.
func (p *DatePanel) MonthYear() (time.Time, error) {
	labels := p.doc.Find("span").FilterFunction(func(i int, s *goquery.Selection) bool {
		return monthYearLabel.MatchString(strings.TrimSpace(s.Text()))
	})
	if labels.Length() == 0 {
		return time.Time{}, fmt.Errorf("no month and year label in the date panel")
	}
	return date.ParseMonthYear(labels.Last().Text(), p.locale)
}

// DayOrdinal returns the 1-based position of the last link labelled day
// among all links labelled day.
func (p *DatePanel) DayOrdinal(day int) (int, error) {
	label := strconv.Itoa(day)
	n := p.doc.Find("a").FilterFunction(func(i int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == label
	}).Length()
	if n == 0 {
		return 0, fmt.Errorf("no link for day %d in the date panel", day)
	}
	return n, nil
}
