package notifications

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/albapepper/execassist/internal/models"
)

const (
	timeLayout = "3:04 PM"
	dateLayout = "Mon Jan 2"
)

// DigestContent is what a digest reports on.
type DigestContent struct {
	DueToday        []models.Task
	Overdue         []models.Task
	Meetings        []models.Event
	NewLeads        []models.Lead
	OverdueInvoices []models.Invoice
}

// Empty reports whether there is nothing worth a digest. Overdue invoices
// alone do not justify one.
func (c DigestContent) Empty() bool {
	return len(c.DueToday) == 0 && len(c.Overdue) == 0 &&
		len(c.Meetings) == 0 && len(c.NewLeads) == 0
}

// BuildDigestContent selects the digest items relative to local, whose
// location defines "today".
func BuildDigestContent(local time.Time, tasks []models.Task, events []models.Event, leads []models.Lead, invoices []models.Invoice) DigestContent {
	var c DigestContent
	loc := local.Location()
	y, m, d := local.Date()

	sameDay := func(t time.Time) bool {
		ty, tm, td := t.In(loc).Date()
		return ty == y && tm == m && td == d
	}

	for _, t := range tasks {
		if t.Completed || t.DueDate == nil {
			continue
		}
		switch {
		case t.DueDate.Before(local):
			c.Overdue = append(c.Overdue, t)
		case sameDay(*t.DueDate):
			c.DueToday = append(c.DueToday, t)
		}
	}
	for _, e := range events {
		if sameDay(e.StartTime) {
			c.Meetings = append(c.Meetings, e)
		}
	}
	for _, l := range leads {
		if age := local.Sub(l.CreatedAt); age >= 0 && age <= digestNewLeadLookback {
			c.NewLeads = append(c.NewLeads, l)
		}
	}
	for _, inv := range invoices {
		if inv.IsOverdue(local) {
			c.OverdueInvoices = append(c.OverdueInvoices, inv)
		}
	}

	sort.Slice(c.Meetings, func(i, j int) bool {
		return c.Meetings[i].StartTime.Before(c.Meetings[j].StartTime)
	})
	sort.Slice(c.DueToday, func(i, j int) bool {
		return c.DueToday[i].DueDate.Before(*c.DueToday[j].DueDate)
	})
	return c
}

// ---------------------------------------------------------------------------
// Renderers
// ---------------------------------------------------------------------------

func renderDigest(user models.User, c DigestContent, local time.Time) Message {
	subject := fmt.Sprintf("Your %s briefing for %s", partOfDay(local.Hour()), local.Format(dateLayout))

	var h, t strings.Builder
	fmt.Fprintf(&h, "<p>Hi %s,</p>\n", html.EscapeString(user.DisplayName()))
	fmt.Fprintf(&t, "Hi %s,\n", user.DisplayName())

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&h, "<h3>%s (%d)</h3>\n<ul>\n", html.EscapeString(title), len(items))
		fmt.Fprintf(&t, "\n%s (%d)\n", title, len(items))
		for _, it := range items {
			fmt.Fprintf(&h, "<li>%s</li>\n", html.EscapeString(it))
			fmt.Fprintf(&t, "- %s\n", it)
		}
		h.WriteString("</ul>\n")
	}

	loc := local.Location()
	var items []string
	for _, task := range c.Overdue {
		items = append(items, fmt.Sprintf("%s (was due %s)", task.Title, task.DueDate.In(loc).Format(dateLayout+" "+timeLayout)))
	}
	section("Overdue tasks", items)

	items = items[:0]
	for _, task := range c.DueToday {
		items = append(items, fmt.Sprintf("%s (due %s)", task.Title, task.DueDate.In(loc).Format(timeLayout)))
	}
	section("Due today", items)

	items = items[:0]
	for _, e := range c.Meetings {
		items = append(items, fmt.Sprintf("%s at %s", e.Title, e.StartTime.In(loc).Format(timeLayout)))
	}
	section("Meetings today", items)

	items = items[:0]
	for _, l := range c.NewLeads {
		items = append(items, leadLine(l))
	}
	section("New leads", items)

	items = items[:0]
	for _, inv := range c.OverdueInvoices {
		items = append(items, fmt.Sprintf("Invoice %s for %.2f", inv.Number, inv.Amount))
	}
	section("Overdue invoices", items)

	return Message{Kind: KindDigest, Subject: subject, HTML: h.String(), Text: t.String()}
}

func renderTask(task models.Task, loc *time.Location) Message {
	var subject, when string
	if task.DueDate != nil {
		when = "Due " + task.DueDate.In(loc).Format(dateLayout+" "+timeLayout)
	}
	if task.Priority == models.PriorityHigh {
		subject = "High priority task: " + task.Title
	} else {
		subject = "Task due soon: " + task.Title
	}

	var h, t strings.Builder
	fmt.Fprintf(&h, "<p><b>%s</b></p>\n", html.EscapeString(task.Title))
	t.WriteString(subject + "\n")
	if when != "" {
		fmt.Fprintf(&h, "<p>%s</p>\n", html.EscapeString(when))
		t.WriteString(when + "\n")
	}
	if task.Description != "" {
		fmt.Fprintf(&h, "<p>%s</p>\n", html.EscapeString(task.Description))
		t.WriteString(task.Description + "\n")
	}
	return Message{Kind: KindTask, Subject: subject, HTML: h.String(), Text: t.String()}
}

func renderMeeting(e models.Event, now time.Time, loc *time.Location) Message {
	mins := minutesUntil(e.StartTime, now)
	subject := fmt.Sprintf("Meeting in %d min: %s", mins, e.Title)

	var h, t strings.Builder
	fmt.Fprintf(&h, "<p><b>%s</b> starts at %s</p>\n",
		html.EscapeString(e.Title), e.StartTime.In(loc).Format(timeLayout))
	fmt.Fprintf(&t, "%s starts at %s\n", e.Title, e.StartTime.In(loc).Format(timeLayout))
	if e.Location != "" {
		fmt.Fprintf(&h, "<p>Where: %s</p>\n", html.EscapeString(e.Location))
		fmt.Fprintf(&t, "Where: %s\n", e.Location)
	}
	if e.MeetingURL != "" {
		fmt.Fprintf(&h, "<p><a href=\"%s\">Join meeting</a></p>\n", html.EscapeString(e.MeetingURL))
		fmt.Fprintf(&t, "Join: %s\n", e.MeetingURL)
	}
	return Message{Kind: KindMeeting, Subject: subject, HTML: h.String(), Text: t.String()}
}

func renderLead(l models.Lead) Message {
	subject := "New high priority lead: " + l.Name
	line := leadLine(l)

	var h, t strings.Builder
	fmt.Fprintf(&h, "<p>%s</p>\n", html.EscapeString(line))
	t.WriteString(line + "\n")
	if l.Email != "" {
		fmt.Fprintf(&h, "<p>Contact: <a href=\"mailto:%s\">%s</a></p>\n",
			html.EscapeString(l.Email), html.EscapeString(l.Email))
		fmt.Fprintf(&t, "Contact: %s\n", l.Email)
	}
	return Message{Kind: KindLead, Subject: subject, HTML: h.String(), Text: t.String()}
}

func leadLine(l models.Lead) string {
	s := l.Name
	if l.Company != "" {
		s += " (" + l.Company + ")"
	}
	if l.Value > 0 {
		s += fmt.Sprintf(", est. value %.0f", l.Value)
	}
	return s
}

func partOfDay(hour int) string {
	switch {
	case hour < 12:
		return "morning"
	case hour < 17:
		return "midday"
	default:
		return "evening"
	}
}
