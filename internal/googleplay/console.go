package googleplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agnivade/levenshtein"
	"github.com/xyla-io/bot-google-play/internal/date"
	"github.com/xyla-io/bot-google-play/internal/log"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
	"github.com/xyla-io/bot-google-play/internal/primitive"
)

// ErrCompanyNotFound is returned when no business name on the company
// picker matches the configured one.
var ErrCompanyNotFound = errors.New("company not found")

// SignIn fills in the Google account form.
type SignIn struct {
	maneuver.Base
}

func (m *SignIn) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	password := primitive.NewSendKeys[*Pilot](passwordInput, pilot.Config.Password)
	password.Secret = true
	wait := pilot.Config.Waits.SignIn
	return f.Run(ctx, maneuver.NewSequence[*Pilot](
		primitive.NewSendKeys[*Pilot](identifierInput, pilot.Config.Email),
		primitive.NewClick[*Pilot](identifierNext),
		primitive.NewPause[*Pilot](wait),
		password,
		primitive.NewClick[*Pilot](passwordNext),
		primitive.NewPause[*Pilot](wait),
	))
}

// MatchCompany picks the entry of names that stands for want. An exact
// match wins over a name containing want, which wins over the closest name
// within maxDistance edits.
func MatchCompany(names []string, want string, maxDistance int) (string, error) {
	want = strings.TrimSpace(want)
	for _, n := range names {
		if n == want {
			return n, nil
		}
	}
	for _, n := range names {
		if want != "" && strings.Contains(n, want) {
			return n, nil
		}
	}
	best, bestDistance := "", maxDistance+1
	for _, n := range names {
		d := levenshtein.ComputeDistance(strings.ToLower(n), strings.ToLower(want))
		if d < bestDistance {
			best, bestDistance = n, d
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: %q among %q", ErrCompanyNotFound, want, names)
	}
	return best, nil
}

// SelectCompany clicks the configured company on the company picker.
type SelectCompany struct {
	maneuver.Base
}

func (m *SelectCompany) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	src, err := maneuver.Deploy[*Pilot, string](ctx, f, primitive.NewFindElement[*Pilot](pageBody))
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return err
	}
	names := []string{}
	doc.Find("div." + businessNameClass).Each(func(i int, s *goquery.Selection) {
		if n := strings.TrimSpace(s.Text()); n != "" {
			names = append(names, n)
		}
	})
	name, err := MatchCompany(names, pilot.Config.CompanyName, pilot.Config.CompanyMatchDistance)
	if err != nil {
		return err
	}
	if name != pilot.Config.CompanyName {
		log.LoggerFromContext(ctx).Warn("company name differs from the configured one", slog.String("company", name))
	}
	return f.Run(ctx, maneuver.NewSequence[*Pilot](
		primitive.NewClick[*Pilot](businessName(name)),
		primitive.NewPause[*Pilot](pilot.Config.Waits.Company),
	))
}

// OpenClassicConsole switches to the classic console, which opens in a new
// tab, and continues there.
type OpenClassicConsole struct {
	maneuver.Base
}

func (m *OpenClassicConsole) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	if err := f.Run(ctx, primitive.NewClick[*Pilot](classicConsole)); err != nil {
		return err
	}
	if err := f.Run(ctx, primitive.NewPause[*Pilot](pilot.Config.Waits.Navigate)); err != nil {
		return err
	}
	return pilot.Browser().AdoptNewestTab(ctx)
}

// NavigateToReport opens the acquisition report of the configured app.
type NavigateToReport struct {
	maneuver.Base
}

func (m *NavigateToReport) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	return f.Run(ctx, maneuver.NewSequence[*Pilot](
		primitive.NewClickSequence[*Pilot](0, appLink(pilot.Config.AppID), userAcquisition, acquisitionLink),
		primitive.NewPause[*Pilot](pilot.Config.Waits.Navigate),
	))
}

// The report url keeps its parameters in the fragment, so it is taken apart
// on '&' and '=' rather than parsed as a url.
func splitReportURL(raw string) [][]string {
	parts := [][]string{}
	for _, p := range strings.Split(raw, "&") {
		parts = append(parts, strings.SplitN(p, "=", 2))
	}
	return parts
}

func joinReportURL(parts [][]string) string {
	joined := make([]string, 0, len(parts))
	for _, p := range parts {
		joined = append(joined, strings.Join(p, "="))
	}
	return strings.Join(joined, "&")
}

// RewriteReportURL sets both report dates of raw to the day of now and asks
// for the lookback window, which makes the console redirect to the last
// date it has data for.
func RewriteReportURL(raw string, now time.Time, window string) string {
	today := now.UTC().Format(date.ISOLayout)
	parts := splitReportURL(raw)
	hasWindow := false
	for _, p := range parts {
		if len(p) != 2 {
			continue
		}
		switch p[0] {
		case reportStartParam, reportEndParam:
			p[1] = today
		case reportWindowParam:
			p[1] = window
			hasWindow = true
		}
	}
	if !hasWindow {
		parts = append(parts, []string{reportWindowParam, window})
	}
	return joinReportURL(parts)
}

// ReportURLDate reads the report date back from raw. When both dates are
// present the last one wins.
func ReportURLDate(raw string) (time.Time, error) {
	value := ""
	for _, p := range splitReportURL(raw) {
		if len(p) == 2 && (p[0] == reportStartParam || p[0] == reportEndParam) {
			value = p[1]
		}
	}
	if value == "" {
		return time.Time{}, fmt.Errorf("no report date in %s", raw)
	}
	return date.ParseISO(value)
}

// DeriveBoundaryDate loads the last date the console has data for, found by
// letting the console redirect a report url pointing at today.
type DeriveBoundaryDate struct {
	maneuver.Base
	maneuver.Ordnance[time.Time]
}

func (m *DeriveBoundaryDate) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	current, err := pilot.Browser().CurrentURL(ctx)
	if err != nil {
		return err
	}
	rewritten := RewriteReportURL(current, pilot.Now(), pilot.Config.LookbackWindow)
	if err := f.Run(ctx, primitive.NewNavigate[*Pilot](rewritten)); err != nil {
		return err
	}
	if err := f.Run(ctx, primitive.NewPause[*Pilot](pilot.Config.Waits.Redirect)); err != nil {
		return err
	}
	redirected, err := pilot.Browser().CurrentURL(ctx)
	if err != nil {
		return err
	}
	boundary, err := ReportURLDate(redirected)
	if err != nil {
		return err
	}
	log.LoggerFromContext(ctx).Info("derived the last available date", slog.String("date", boundary.Format(date.ISOLayout)))
	m.Load(boundary)
	return nil
}
