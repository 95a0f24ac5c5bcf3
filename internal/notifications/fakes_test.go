package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/execassist/internal/models"
)

var errNotFound = errors.New("not found")

type fakeStore struct {
	mu       sync.Mutex
	users    []models.User
	tasks    map[int64][]models.Task
	events   map[int64][]models.Event
	leads    map[int64][]models.Lead
	invoices map[int64][]models.Invoice
	// failUsers makes every per-user read fail for these ids.
	failUsers map[int64]bool
	usersErr  error
}

func newFakeStore(users ...models.User) *fakeStore {
	return &fakeStore{
		users:     users,
		tasks:     make(map[int64][]models.Task),
		events:    make(map[int64][]models.Event),
		leads:     make(map[int64][]models.Lead),
		invoices:  make(map[int64][]models.Invoice),
		failUsers: make(map[int64]bool),
	}
}

func (s *fakeStore) GetAllUsers(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	return append([]models.User(nil), s.users...), nil
}

func (s *fakeStore) GetUser(_ context.Context, id int64) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, errNotFound
}

func (s *fakeStore) GetTasksByUserID(_ context.Context, id int64) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUsers[id] {
		return nil, errors.New("db down")
	}
	return s.tasks[id], nil
}

func (s *fakeStore) GetEventsByUserID(_ context.Context, id int64) ([]models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUsers[id] {
		return nil, errors.New("db down")
	}
	return s.events[id], nil
}

func (s *fakeStore) GetLeadsByUserID(_ context.Context, id int64) ([]models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUsers[id] {
		return nil, errors.New("db down")
	}
	return s.leads[id], nil
}

func (s *fakeStore) GetLead(_ context.Context, id int64) (models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ls := range s.leads {
		for _, l := range ls {
			if l.ID == id {
				return l, nil
			}
		}
	}
	return models.Lead{}, errNotFound
}

func (s *fakeStore) GetInvoicesByUserID(_ context.Context, id int64) ([]models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoices[id], nil
}

type sentMessage struct {
	UserID int64
	Msg    Message
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []sentMessage
	// fail makes Send return an error while set.
	fail error
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Deliverable(u models.User) bool { return u.Email != "" }

func (c *fakeChannel) Send(_ context.Context, u models.User, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, sentMessage{UserID: u.ID, Msg: msg})
	return nil
}

func (c *fakeChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeChannel) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, s := range c.sent {
		out = append(out, s.Msg.Kind)
	}
	return out
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]LedgerEntry
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string]LedgerEntry)}
}

func (l *fakeLedger) LastNotificationSent(_ context.Context, key string) (time.Time, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return e.SentAt, ok, nil
}

func (l *fakeLedger) RecordNotification(_ context.Context, e LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[e.Key] = e
	return nil
}

// t0 is a Tuesday, 09:00 UTC.
var t0 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	clock   clockwork.FakeClock
	store   *fakeStore
	channel *fakeChannel
	ledger  *fakeLedger
	d       *Dispatcher
}

func newHarness(t *testing.T, at time.Time, users ...models.User) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(at)
	h := &harness{
		clock:   clock,
		store:   newFakeStore(users...),
		channel: &fakeChannel{},
		ledger:  newFakeLedger(),
	}
	h.d = NewDispatcher(DispatcherDeps{
		Store:   h.store,
		Ledger:  h.ledger,
		Channel: h.channel,
		Dedupe:  NewDedupeStore(clock),
		Clock:   clock,
	})
	return h
}

func testUser(id int64) models.User {
	return models.User{ID: id, Email: "u@example.com", Name: "Una", Preferences: models.DefaultPreferences()}
}

func ptr[T any](v T) *T { return &v }
