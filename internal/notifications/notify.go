// Package notifications decides when a user should hear about their tasks,
// meetings and leads, and delivers those notifications.
//
// Pipeline: gate (digest window or urgency rule) → dedupe reservation →
// render → send → record. Two recurring scans drive it: an urgent scan over
// every open entity and a digest scan that fires inside the configured daily
// windows.
package notifications

import (
	"math"
	"time"
)

// ---------------------------------------------------------------------------
// Constants
// ---------------------------------------------------------------------------

// Notification kinds. They prefix dedupe keys and label metrics.
const (
	KindDigest  = "digest"
	KindTask    = "task"
	KindMeeting = "meeting"
	KindLead    = "lead"
)

// Cooldowns per kind. The dedupe store is policy free; callers pass these.
const (
	DigestCooldown  = 1 * time.Hour
	TaskCooldown    = 30 * time.Minute
	MeetingCooldown = 5 * time.Minute

	// Forever suppresses a key for as long as it is remembered.
	Forever = time.Duration(math.MaxInt64)
)

// Thresholds and scan defaults.
const (
	taskDueWindowMinutes      = 30
	meetingStartWindowMinutes = 15
	leadRecencyWindow         = 2 * time.Hour
	leadHighValueThreshold    = 10000.0
	digestWindowMinutes       = 5
	digestNewLeadLookback     = 24 * time.Hour
	dedupeRetention           = 24 * time.Hour
	defaultUrgentInterval     = 5 * time.Minute
	defaultDigestInterval     = 60 * time.Second
	defaultGCEvery            = 60
	defaultSendTimeout        = 15 * time.Second
	ledgerStatusSent          = "sent"
	ledgerStatusSkipped       = "skipped"
	scanLockTTL               = 10 * time.Minute
	urgentScanLockName        = "scan:urgent"
	digestScanLockName        = "scan:digest"
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// DigestTime is a daily digest slot in local wall-clock time.
type DigestTime struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// DefaultDigestTimes are 07:00, 12:00 and 17:00.
var DefaultDigestTimes = []DigestTime{
	{Hour: 7, Minute: 0},
	{Hour: 12, Minute: 0},
	{Hour: 17, Minute: 0},
}

// Message is a rendered notification ready for any channel.
type Message struct {
	Kind    string
	Subject string
	HTML    string
	Text    string
}

// LedgerEntry is a persisted notification attempt.
type LedgerEntry struct {
	Key      string
	Kind     string
	UserID   int64
	EntityID int64
	Status   string
	SentAt   time.Time
}

// ScanResult summarizes one urgent or digest scan.
type ScanResult struct {
	Users      int           `json:"users"`
	Sent       int           `json:"sent"`
	Skipped    int           `json:"skipped"`
	Suppressed int           `json:"suppressed"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"durationNs"`
}

func (r *ScanResult) add(o ScanResult) {
	r.Users += o.Users
	r.Sent += o.Sent
	r.Skipped += o.Skipped
	r.Suppressed += o.Suppressed
	r.Failed += o.Failed
}
