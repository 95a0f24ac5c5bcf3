// Package models holds the read models shared by the scheduler, the
// autonomous engine and the storage adapter. They are snapshots: scans never
// mutate them in place.
package models

import "time"

// Priority values used by tasks and leads.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Invoice statuses.
const (
	InvoicePending = "pending"
	InvoicePaid    = "paid"
	InvoiceOverdue = "overdue"
)

// Roles. Only admins may drive the engine and scheduler over HTTP.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Preferences are the per-user feature toggles read by the engine and the
// channel fan-out.
type Preferences struct {
	AIPaused                 bool   `json:"aiPaused"`
	AutoManageCalendar       bool   `json:"autoManageCalendar"`
	AutoManageTasks          bool   `json:"autoManageTasks"`
	AutoProcessNotifications bool   `json:"autoProcessNotifications"`
	EmailNotifications       bool   `json:"emailNotifications"`
	SlackNotifications       bool   `json:"slackNotifications"`
	SlackUserID              string `json:"slackUserId,omitempty"`
	SlackChannelID           string `json:"slackChannelId,omitempty"`
}

// DefaultPreferences is applied when a user row has no stored preferences.
func DefaultPreferences() Preferences {
	return Preferences{
		AutoManageCalendar:       true,
		AutoManageTasks:          true,
		AutoProcessNotifications: true,
		EmailNotifications:       true,
	}
}

// User is an account that owns tasks, events, leads and invoices.
type User struct {
	ID          int64       `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Role        string      `json:"role"`
	Timezone    string      `json:"timezone,omitempty"`
	Preferences Preferences `json:"preferences"`
}

// DisplayName returns the name, falling back to the email address.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Location resolves the user's timezone, or fallback when unset or invalid.
func (u User) Location(fallback *time.Location) *time.Location {
	if u.Timezone != "" {
		if loc, err := time.LoadLocation(u.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// Task is a to-do item. DueDate is nil for tasks without a deadline.
type Task struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority"`
	Completed   bool       `json:"completed"`
}

// Event is a calendar entry (meeting).
type Event struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Title      string    `json:"title"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Location   string    `json:"location,omitempty"`
	MeetingURL string    `json:"meetingUrl,omitempty"`
}

// Lead is a sales opportunity detected from email.
type Lead struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Company   string    `json:"company,omitempty"`
	Email     string    `json:"email,omitempty"`
	Priority  string    `json:"priority"`
	Value     float64   `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Invoice is a payable or receivable extracted from email.
type Invoice struct {
	ID      int64      `json:"id"`
	UserID  int64      `json:"userId"`
	Number  string     `json:"number"`
	Amount  float64    `json:"amount"`
	DueDate *time.Time `json:"dueDate,omitempty"`
	Status  string     `json:"status"`
}

// IsOverdue reports whether an unpaid invoice is past its due date.
func (i Invoice) IsOverdue(now time.Time) bool {
	if i.Status == InvoicePaid || i.DueDate == nil {
		return false
	}
	return i.DueDate.Before(now)
}
