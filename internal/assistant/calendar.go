package assistant

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/execassist/internal/llm"
	"github.com/albapepper/execassist/internal/models"
	"github.com/albapepper/execassist/internal/notifications"
)

// Conflict is a pair of overlapping meetings.
type Conflict struct {
	First  models.Event
	Second models.Event
}

// CalendarManager sends each user one agenda per local calendar day.
type CalendarManager struct {
	store      Store
	channel    notifications.Channel
	summarizer Summarizer // optional
	clock      clockwork.Clock
	loc        *time.Location
	logger     *slog.Logger
}

// NewCalendarManager creates a CalendarManager. summarizer may be nil.
func NewCalendarManager(store Store, channel notifications.Channel, summarizer Summarizer, clock clockwork.Clock, loc *time.Location, logger *slog.Logger) *CalendarManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarManager{
		store:      store,
		channel:    channel,
		summarizer: summarizer,
		clock:      clock,
		loc:        loc,
		logger:     logger,
	}
}

// Process sends today's agenda if it has not gone out yet and there is at
// least one meeting.
func (m *CalendarManager) Process(ctx context.Context, user models.User) error {
	if !m.channel.Deliverable(user) {
		return nil
	}
	now := m.clock.Now()
	local := now.In(user.Location(m.loc))

	last, ok, err := m.store.GetLastDailySummaryDate(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("get daily summary date: %w", err)
	}
	if ok && sameDate(last.In(local.Location()), local) {
		return nil
	}

	events, err := m.store.GetEventsByUserID(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	today := eventsOn(events, local)
	if len(today) == 0 {
		return nil
	}
	conflicts := FindConflicts(today)

	summary := m.summarize(ctx, user, today, conflicts, local)
	msg := renderAgenda(today, conflicts, summary, local)
	if err := m.channel.Send(ctx, user, msg); err != nil {
		return fmt.Errorf("send daily agenda: %w", err)
	}
	if err := m.store.UpdateDailySummaryDate(ctx, user.ID, now); err != nil {
		return fmt.Errorf("update daily summary date: %w", err)
	}
	m.logger.Info("Daily agenda sent", "user_id", user.ID, "meetings", len(today), "conflicts", len(conflicts))
	return nil
}

// FindConflicts returns every pair of overlapping events. events must be
// sorted by start time. Back-to-back meetings do not conflict.
func FindConflicts(events []models.Event) []Conflict {
	var out []Conflict
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			if !events[j].StartTime.Before(events[i].EndTime) {
				break
			}
			out = append(out, Conflict{First: events[i], Second: events[j]})
		}
	}
	return out
}

func (m *CalendarManager) summarize(ctx context.Context, user models.User, events []models.Event, conflicts []Conflict, local time.Time) string {
	if m.summarizer != nil {
		text, err := m.summarizer.Complete(ctx, agendaPrompt(user, events, conflicts, local))
		switch {
		case err == nil && text != "":
			return text
		case err != nil && !errors.Is(err, llm.ErrNotConfigured):
			m.logger.Warn("Agenda summary failed, using fallback", "user_id", user.ID, "error", err)
		}
	}
	return fallbackSummary(events, conflicts, local.Location())
}

func agendaPrompt(user models.User, events []models.Event, conflicts []Conflict, local time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write two friendly sentences summarizing %s's schedule for %s. ",
		user.DisplayName(), local.Format(dateLayout))
	b.WriteString("Mention anything that needs attention. Meetings:\n")
	for _, e := range events {
		fmt.Fprintf(&b, "- %s, %s to %s\n", e.Title,
			e.StartTime.In(local.Location()).Format(timeLayout), e.EndTime.In(local.Location()).Format(timeLayout))
	}
	if len(conflicts) > 0 {
		fmt.Fprintf(&b, "There are %d overlapping meeting pairs.\n", len(conflicts))
	}
	return b.String()
}

func fallbackSummary(events []models.Event, conflicts []Conflict, loc *time.Location) string {
	noun := "meeting"
	if len(events) > 1 {
		noun = "meetings"
	}
	s := fmt.Sprintf("You have %d %s today, starting with %s at %s.",
		len(events), noun, events[0].Title, events[0].StartTime.In(loc).Format(timeLayout))
	if n := len(conflicts); n == 1 {
		s += " One pair of meetings overlaps."
	} else if n > 1 {
		s += fmt.Sprintf(" %d pairs of meetings overlap.", n)
	}
	return s
}

func renderAgenda(events []models.Event, conflicts []Conflict, summary string, local time.Time) notifications.Message {
	loc := local.Location()
	subject := "Your agenda for " + local.Format(dateLayout)

	var h, t strings.Builder
	fmt.Fprintf(&h, "<p>%s</p>\n<ul>\n", html.EscapeString(summary))
	fmt.Fprintf(&t, "%s\n\n", summary)
	for _, e := range events {
		line := fmt.Sprintf("%s - %s %s",
			e.StartTime.In(loc).Format(timeLayout), e.EndTime.In(loc).Format(timeLayout), e.Title)
		if e.Location != "" {
			line += " @ " + e.Location
		}
		fmt.Fprintf(&h, "<li>%s</li>\n", html.EscapeString(line))
		fmt.Fprintf(&t, "- %s\n", line)
	}
	h.WriteString("</ul>\n")

	if len(conflicts) > 0 {
		h.WriteString("<p><b>Overlapping meetings</b></p>\n<ul>\n")
		t.WriteString("\nOverlapping meetings\n")
		for _, c := range conflicts {
			line := fmt.Sprintf("%s overlaps %s", c.First.Title, c.Second.Title)
			fmt.Fprintf(&h, "<li>%s</li>\n", html.EscapeString(line))
			fmt.Fprintf(&t, "- %s\n", line)
		}
		h.WriteString("</ul>\n")
	}
	return notifications.Message{Kind: KindDailyAgenda, Subject: subject, HTML: h.String(), Text: t.String()}
}

// eventsOn returns the events starting on local's calendar date, by start.
func eventsOn(events []models.Event, local time.Time) []models.Event {
	var out []models.Event
	for _, e := range events {
		if sameDate(e.StartTime.In(local.Location()), local) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
