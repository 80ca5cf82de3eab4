package googleplay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xyla-io/bot-google-play/internal/date"
	"github.com/xyla-io/bot-google-play/internal/log"
	"github.com/xyla-io/bot-google-play/internal/maneuver"
	"github.com/xyla-io/bot-google-play/internal/primitive"
)

// ErrNoProgress is returned when paging the date panel does not get closer
// to where it should go.
var ErrNoProgress = errors.New("date panel is not making progress")

const markerTimeout = 2 * time.Second

// readPanel loads the source of the open date panel.
func readPanel(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) (*DatePanel, error) {
	src, err := maneuver.Deploy[*Pilot, string](ctx, f, primitive.NewFindElement[*Pilot](datePanel))
	if err != nil {
		return nil, err
	}
	return NewDatePanel(src, pilot.Config.Locale)
}

// CheckDateNotAvailable loads whether the open panel shows the marker for
// days past the available range.
type CheckDateNotAvailable struct {
	maneuver.Base
	maneuver.Ordnance[bool]
}

func (m *CheckDateNotAvailable) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	panel, err := readPanel(ctx, pilot, f)
	if err != nil {
		return err
	}
	if !panel.DateNotAvailable() {
		m.Load(false)
		return nil
	}
	visible, err := maneuver.Deploy[*Pilot, bool](ctx, f, primitive.NewWaitVisible[*Pilot](notAvailableMark, markerTimeout))
	if err != nil {
		return err
	}
	m.Load(visible)
	return nil
}

// FindLastDateAvailable loads the last enabled day of the displayed month.
type FindLastDateAvailable struct {
	maneuver.Base
	maneuver.Ordnance[time.Time]
}

func (m *FindLastDateAvailable) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	panel, err := readPanel(ctx, pilot, f)
	if err != nil {
		return err
	}
	last, err := panel.LastDate()
	if err != nil {
		return err
	}
	month, err := panel.MonthYear()
	if err != nil {
		return err
	}
	logger := log.LoggerFromContext(ctx)
	logger.Debug(fmt.Sprintf("picked the last of %d day links", panel.Days()))
	if !date.FirstOfMonth(last).Equal(month) {
		logger.Info(fmt.Sprintf("the last available day %s is a padding cell of %s", last.Format(date.ISOLayout), month.Format(date.MonthYearLayout)))
	}
	m.Load(last)
	return nil
}

// LastDateAvailable opens the date panel and pages forward until the
// marker for unavailable days shows up, then loads the last enabled day.
type LastDateAvailable struct {
	maneuver.Base
	maneuver.Ordnance[time.Time]
}

func (m *LastDateAvailable) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	// the first panel button switches the breakdown to days
	if err := f.Run(ctx, primitive.NewClickSequence[*Pilot](0, dateSelector, panelBreakdown)); err != nil {
		return err
	}
	for page := 0; ; page++ {
		unavailable, err := maneuver.Deploy[*Pilot, bool](ctx, f, &CheckDateNotAvailable{})
		if err != nil {
			return err
		}
		if unavailable {
			break
		}
		if page >= pilot.Config.MaxPanelPages {
			return fmt.Errorf("%w: no unavailable dates after %d pages", ErrNoProgress, page)
		}
		if err := f.Run(ctx, primitive.NewClick[*Pilot](panelNextPage)); err != nil {
			return err
		}
	}
	last, err := maneuver.Deploy[*Pilot, time.Time](ctx, f, &FindLastDateAvailable{})
	if err != nil {
		return err
	}
	m.Load(last)
	return nil
}

// ScrapeMonthAndYear loads the first day of the displayed month.
type ScrapeMonthAndYear struct {
	maneuver.Base
	maneuver.Ordnance[time.Time]
}

func (m *ScrapeMonthAndYear) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	panel, err := readPanel(ctx, pilot, f)
	if err != nil {
		return err
	}
	month, err := panel.MonthYear()
	if err != nil {
		return err
	}
	m.Load(month)
	return nil
}

// SelectMonthAndYear pages the open panel until it displays the month of
// Target. Every page has to bring the panel closer to the target.
type SelectMonthAndYear struct {
	maneuver.Base
	Target time.Time
}

func (m *SelectMonthAndYear) Name() string {
	return fmt.Sprintf("SelectMonthAndYear(%s)", m.Target.Format("2006-01"))
}

func (m *SelectMonthAndYear) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	target := date.FirstOfMonth(m.Target)
	previous := -1
	for {
		shown, err := maneuver.Deploy[*Pilot, time.Time](ctx, f, &ScrapeMonthAndYear{})
		if err != nil {
			return err
		}
		delta := date.MonthsBetween(shown, target)
		if delta == 0 {
			return nil
		}
		distance := max(delta, -delta)
		if previous >= 0 && distance >= previous {
			return fmt.Errorf("%w: %s is still %d months from %s", ErrNoProgress,
				shown.Format("2006-01"), distance, target.Format("2006-01"))
		}
		previous = distance
		control := panelNextPage
		if delta < 0 {
			control = panelPrevPage
		}
		if err := f.Run(ctx, primitive.NewClick[*Pilot](control)); err != nil {
			return err
		}
	}
}

// SelectDate aligns the open panel to the month of Date and clicks its day.
type SelectDate struct {
	maneuver.Base
	Date time.Time
}

func (m *SelectDate) Name() string {
	return fmt.Sprintf("SelectDate(%s)", m.Date.Format(date.ISOLayout))
}

func (m *SelectDate) Attempt(ctx context.Context, pilot *Pilot, f *maneuver.Flight[*Pilot]) error {
	if err := f.Run(ctx, &SelectMonthAndYear{Target: m.Date}); err != nil {
		return err
	}
	panel, err := readPanel(ctx, pilot, f)
	if err != nil {
		return err
	}
	ordinal, err := panel.DayOrdinal(m.Date.Day())
	if err != nil {
		return err
	}
	if ordinal > 1 {
		log.LoggerFromContext(ctx).Debug(fmt.Sprintf("day %d is shown %d times, clicking the last one", m.Date.Day(), ordinal))
	}
	return f.Run(ctx, primitive.NewClick[*Pilot](dayLink(m.Date.Day(), ordinal)))
}
