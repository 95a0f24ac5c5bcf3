package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/execassist/internal/metrics"
	"github.com/albapepper/execassist/internal/models"
)

// outcome is the result of one dispatch attempt.
type outcome int

const (
	outcomeNotApplicable outcome = iota
	outcomeSuppressed
	outcomeSkipped
	outcomeSent
	outcomeFailed
)

func (o outcome) String() string {
	switch o {
	case outcomeSuppressed:
		return "suppressed"
	case outcomeSkipped:
		return "skipped"
	case outcomeSent:
		return "sent"
	case outcomeFailed:
		return "failed"
	default:
		return "not_applicable"
	}
}

// DispatcherDeps are the collaborators of a Dispatcher. Store, Channel and
// Dedupe are required.
type DispatcherDeps struct {
	Store       Store
	Ledger      Ledger // optional
	Channel     Channel
	Dedupe      *DedupeStore
	Clock       clockwork.Clock
	Location    *time.Location // default for users without a timezone
	DigestTimes []DigestTime
	SendTimeout time.Duration
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Dispatcher turns gate decisions into delivered notifications.
type Dispatcher struct {
	store       Store
	ledger      Ledger
	channel     Channel
	dedupe      *DedupeStore
	clock       clockwork.Clock
	loc         *time.Location
	digestTimes []DigestTime
	sendTimeout time.Duration
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewDispatcher fills defaults for optional deps.
func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		store:       deps.Store,
		ledger:      deps.Ledger,
		channel:     deps.Channel,
		dedupe:      deps.Dedupe,
		clock:       deps.Clock,
		loc:         deps.Location,
		digestTimes: deps.DigestTimes,
		sendTimeout: deps.SendTimeout,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
	if d.clock == nil {
		d.clock = clockwork.NewRealClock()
	}
	if d.dedupe == nil {
		d.dedupe = NewDedupeStore(d.clock)
	}
	if d.loc == nil {
		d.loc = time.UTC
	}
	if len(d.digestTimes) == 0 {
		d.digestTimes = DefaultDigestTimes
	}
	if d.sendTimeout <= 0 {
		d.sendTimeout = defaultSendTimeout
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Dedupe returns the dispatcher's dedupe store.
func (d *Dispatcher) Dedupe() *DedupeStore { return d.dedupe }

// ---------------------------------------------------------------------------
// Public dispatchers
// ---------------------------------------------------------------------------

// SendDigest sends the user's digest if now is inside one of their digest
// windows. It returns true when the digest was sent, or when there was
// nothing to report and the window was marked handled.
func (d *Dispatcher) SendDigest(ctx context.Context, user models.User) bool {
	o := d.digest(ctx, user, false)
	return o == outcomeSent || o == outcomeSkipped
}

// ForceDigest is SendDigest without the time-window gate. Dedupe still
// applies to the current local hour.
func (d *Dispatcher) ForceDigest(ctx context.Context, user models.User) bool {
	o := d.digest(ctx, user, true)
	return o == outcomeSent || o == outcomeSkipped
}

// NotifyTask sends an urgent-task notification when TaskUrgent holds.
func (d *Dispatcher) NotifyTask(ctx context.Context, user models.User, task models.Task) bool {
	return d.task(ctx, user, task) == outcomeSent
}

// NotifyMeeting sends a meeting-imminent notification when MeetingImminent
// holds.
func (d *Dispatcher) NotifyMeeting(ctx context.Context, user models.User, event models.Event) bool {
	return d.meeting(ctx, user, event) == outcomeSent
}

// NotifyLead sends a high-priority-lead notification once per lead.
func (d *Dispatcher) NotifyLead(ctx context.Context, user models.User, lead models.Lead) bool {
	return d.lead(ctx, user, lead) == outcomeSent
}

// NotifyLeadByID loads the lead and its owner before dispatching. Used by
// the real-time lead listener.
func (d *Dispatcher) NotifyLeadByID(ctx context.Context, userID, leadID int64) (bool, error) {
	lead, err := d.store.GetLead(ctx, leadID)
	if err != nil {
		return false, fmt.Errorf("get lead %d: %w", leadID, err)
	}
	if lead.UserID != userID {
		return false, fmt.Errorf("lead %d belongs to user %d, not %d", leadID, lead.UserID, userID)
	}
	user, err := d.store.GetUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get user %d: %w", userID, err)
	}
	return d.NotifyLead(ctx, user, lead), nil
}

// ---------------------------------------------------------------------------
// Dispatch internals
// ---------------------------------------------------------------------------

// errNothingToSend tells deliver to mark the key handled without sending.
var errNothingToSend = errors.New("nothing to send")

type pending struct {
	user     models.User
	kind     string
	key      string
	entityID int64
	cooldown time.Duration
	// build renders the message after the key is reserved. Returning
	// errNothingToSend records the key as handled.
	build func(ctx context.Context) (Message, error)
}

func (d *Dispatcher) digest(ctx context.Context, user models.User, force bool) outcome {
	if !d.channel.Deliverable(user) {
		return d.observe(KindDigest, outcomeNotApplicable)
	}
	local := d.clock.Now().In(user.Location(d.loc))
	if !force && !IsDigestWindow(local, d.digestTimes) {
		return d.observe(KindDigest, outcomeNotApplicable)
	}

	return d.deliver(ctx, pending{
		user:     user,
		kind:     KindDigest,
		key:      digestKey(user.ID, local),
		cooldown: DigestCooldown,
		build: func(ctx context.Context) (Message, error) {
			content, err := d.loadDigestContent(ctx, user, local)
			if err != nil {
				return Message{}, err
			}
			if content.Empty() {
				return Message{}, errNothingToSend
			}
			return renderDigest(user, content, local), nil
		},
	})
}

func (d *Dispatcher) task(ctx context.Context, user models.User, task models.Task) outcome {
	if !d.channel.Deliverable(user) {
		return d.observe(KindTask, outcomeNotApplicable)
	}
	if !TaskUrgent(task, d.clock.Now()) {
		return d.observe(KindTask, outcomeNotApplicable)
	}
	loc := user.Location(d.loc)
	return d.deliver(ctx, pending{
		user:     user,
		kind:     KindTask,
		key:      taskKey(task.ID),
		entityID: task.ID,
		cooldown: TaskCooldown,
		build: func(context.Context) (Message, error) {
			return renderTask(task, loc), nil
		},
	})
}

func (d *Dispatcher) meeting(ctx context.Context, user models.User, event models.Event) outcome {
	if !d.channel.Deliverable(user) {
		return d.observe(KindMeeting, outcomeNotApplicable)
	}
	now := d.clock.Now()
	if !MeetingImminent(event, now) {
		return d.observe(KindMeeting, outcomeNotApplicable)
	}
	loc := user.Location(d.loc)
	return d.deliver(ctx, pending{
		user:     user,
		kind:     KindMeeting,
		key:      meetingKey(event.ID),
		entityID: event.ID,
		cooldown: MeetingCooldown,
		build: func(context.Context) (Message, error) {
			return renderMeeting(event, now, loc), nil
		},
	})
}

func (d *Dispatcher) lead(ctx context.Context, user models.User, lead models.Lead) outcome {
	if !d.channel.Deliverable(user) {
		return d.observe(KindLead, outcomeNotApplicable)
	}
	if !LeadHighPriority(lead, d.clock.Now()) {
		return d.observe(KindLead, outcomeNotApplicable)
	}
	return d.deliver(ctx, pending{
		user:     user,
		kind:     KindLead,
		key:      leadKey(lead.ID),
		entityID: lead.ID,
		cooldown: Forever,
		build: func(context.Context) (Message, error) {
			return renderLead(lead), nil
		},
	})
}

// deliver runs the shared reserve → render → send → record sequence.
func (d *Dispatcher) deliver(ctx context.Context, p pending) outcome {
	if !d.dedupe.Reserve(p.key, p.cooldown) {
		return d.observe(p.kind, outcomeSuppressed)
	}
	if d.ledgerSuppresses(ctx, p.key, p.cooldown) {
		return d.observe(p.kind, outcomeSuppressed)
	}

	msg, err := p.build(ctx)
	if errors.Is(err, errNothingToSend) {
		now := d.clock.Now()
		d.dedupe.Record(p.key, now)
		d.writeLedger(ctx, p, ledgerStatusSkipped, now)
		d.logger.Debug("Nothing to notify", "kind", p.kind, "user_id", p.user.ID, "key", p.key)
		return d.observe(p.kind, outcomeSkipped)
	}
	if err != nil {
		d.dedupe.Release(p.key)
		d.logger.Warn("Failed to build notification",
			"kind", p.kind, "user_id", p.user.ID, "key", p.key, "error", err)
		return d.observe(p.kind, outcomeFailed)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	err = d.channel.Send(sendCtx, p.user, msg)
	cancel()
	if err != nil {
		d.dedupe.Release(p.key)
		d.logger.Warn("Notification send failed",
			"kind", p.kind, "user_id", p.user.ID, "key", p.key,
			"channel", d.channel.Name(), "error", err)
		return d.observe(p.kind, outcomeFailed)
	}

	now := d.clock.Now()
	d.dedupe.Record(p.key, now)
	d.writeLedger(ctx, p, ledgerStatusSent, now)
	d.logger.Info("Notification sent", "kind", p.kind, "user_id", p.user.ID, "key", p.key)
	return d.observe(p.kind, outcomeSent)
}

// ledgerSuppresses checks the persistent ledger after an in-memory miss. A
// hit inside the cooldown is copied into the dedupe store, which also ends
// the reservation. Ledger errors fail open.
func (d *Dispatcher) ledgerSuppresses(ctx context.Context, key string, cooldown time.Duration) bool {
	if d.ledger == nil {
		return false
	}
	last, ok, err := d.ledger.LastNotificationSent(ctx, key)
	if err != nil {
		d.logger.Warn("Notification ledger lookup failed", "key", key, "error", err)
		return false
	}
	if !ok || d.clock.Now().Sub(last) >= cooldown {
		return false
	}
	d.dedupe.Record(key, last)
	return true
}

func (d *Dispatcher) writeLedger(ctx context.Context, p pending, status string, at time.Time) {
	if d.ledger == nil {
		return
	}
	err := d.ledger.RecordNotification(ctx, LedgerEntry{
		Key:      p.key,
		Kind:     p.kind,
		UserID:   p.user.ID,
		EntityID: p.entityID,
		Status:   status,
		SentAt:   at,
	})
	if err != nil {
		d.logger.Warn("Failed to record notification", "key", p.key, "error", err)
	}
}

func (d *Dispatcher) loadDigestContent(ctx context.Context, user models.User, local time.Time) (DigestContent, error) {
	tasks, err := d.store.GetTasksByUserID(ctx, user.ID)
	if err != nil {
		return DigestContent{}, fmt.Errorf("load tasks: %w", err)
	}
	events, err := d.store.GetEventsByUserID(ctx, user.ID)
	if err != nil {
		return DigestContent{}, fmt.Errorf("load events: %w", err)
	}
	leads, err := d.store.GetLeadsByUserID(ctx, user.ID)
	if err != nil {
		return DigestContent{}, fmt.Errorf("load leads: %w", err)
	}
	invoices, err := d.store.GetInvoicesByUserID(ctx, user.ID)
	if err != nil {
		// Invoices are informational only.
		d.logger.Warn("Failed to load invoices for digest", "user_id", user.ID, "error", err)
		invoices = nil
	}
	return BuildDigestContent(local, tasks, events, leads, invoices), nil
}

func (d *Dispatcher) observe(kind string, o outcome) outcome {
	d.metrics.Notification(kind, o.String())
	return o
}
