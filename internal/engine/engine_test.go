package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apeks827/JiraTasksUpdate/internal/config"
	"github.com/apeks827/JiraTasksUpdate/internal/dedup"
	"github.com/apeks827/JiraTasksUpdate/internal/notify"
	"github.com/apeks827/JiraTasksUpdate/internal/tracker"
)

// fakeTracker serves canned search results keyed by JQL and records the
// mutations requested of it.
type fakeTracker struct {
	mu          sync.Mutex
	results     map[string][]tracker.Ticket
	searchErr   error
	transErr    error
	assignErr   error
	searches    []string
	transitions []string
	assigns     []string
}

func (f *fakeTracker) Search(ctx context.Context, jql string) ([]tracker.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, jql)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results[jql], nil
}

func (f *fakeTracker) Transition(ctx context.Context, key, transitionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transErr != nil {
		return f.transErr
	}
	f.transitions = append(f.transitions, key)
	return nil
}

func (f *fakeTracker) Assign(ctx context.Context, key, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.assignErr != nil {
		return f.assignErr
	}
	f.assigns = append(f.assigns, key+":"+username)
	return nil
}

type sentMessage struct {
	ChatID int64
	Text   string
	HTML   bool
}

// fakeNotifier records outbound messages.
type fakeNotifier struct {
	mu       sync.Mutex
	sendErr  error
	messages []sentMessage
}

func (f *fakeNotifier) SendMessage(ctx context.Context, chatID int64, text string, html bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text, HTML: html})
	return nil
}

func (f *fakeNotifier) SendLinkList(ctx context.Context, chatID int64, header string, links []notify.Link) error {
	return f.SendMessage(ctx, chatID, header, false)
}

func (f *fakeNotifier) SendMenu(ctx context.Context, chatID int64, text string) error {
	return f.SendMessage(ctx, chatID, text, false)
}

func (f *fakeNotifier) SendRemoveMenu(ctx context.Context, chatID int64, text string, html bool) error {
	return f.SendMessage(ctx, chatID, text, html)
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testConfig() *config.Config {
	return &config.Config{
		Jira: config.Jira{Server: "https://jira.example.com"},
		Telegram: config.Telegram{
			Users:         config.Users{MainID: 42},
			ContactDomain: "example.com",
		},
		SkipRules: config.SkipRules{
			IssueKeys:       []string{"SD911-777"},
			CommentKeywords: []string{"isuvorinov"},
			NameKeywords:    []string{"пропуск"},
			CreatorList:     []string{"vivashov"},
		},
		Assignee: config.Assignee{
			TransitionID: "21",
			Rotation: []config.RotationEntry{
				{Username: "alice", NotifyChatID: 100},
				{Username: "bob", NotifyChatID: 200},
			},
		},
		TimeControl: config.TimeControl{
			SleepHours: []int{23, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			WakeUpHour: 11,
		},
		Polling: config.Polling{
			NewIssuesIntervalSec: 1,
			UpdatesIntervalSec:   1,
			TimeCheckIntervalSec: 1,
			RestartDelaySec:      1,
			MaxCallCount:         10,
		},
	}
}

func newTestEngine(t *testing.T, ft *fakeTracker, fn *fakeNotifier, clk *manualClock) *Engine {
	t.Helper()
	opts := Options{Tracker: ft, Config: testConfig()}
	if fn != nil {
		opts.Notifier = fn
	}
	if clk != nil {
		opts.Clock = clk.now
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	e.settleDelay = time.Millisecond
	return e
}

func ticket(key, summary, creator string) tracker.Ticket {
	return tracker.Ticket{Key: key, Summary: summary, Creator: creator}
}

func TestNew_emptyRotationFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Assignee.Rotation = nil
	_, err := New(Options{Tracker: &fakeTracker{}, Config: cfg})
	if err == nil {
		t.Fatal("New with empty rotation: expected error")
	}
}

func TestProcessNewBatch_rotationScenario(t *testing.T) {
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultNewTicketsJQL: {
			ticket("SD911-1", "first", "user1"),
			ticket("SD911-2", "second", "user2"),
			ticket("SD911-3", "third", "user3"),
		},
	}}
	fn := &fakeNotifier{}
	e := newTestEngine(t, ft, fn, nil)

	if err := e.processNewBatch(context.Background()); err != nil {
		t.Fatalf("processNewBatch: %v", err)
	}

	wantAssigns := []string{"SD911-1:alice", "SD911-2:bob", "SD911-3:alice"}
	if len(ft.assigns) != len(wantAssigns) {
		t.Fatalf("assigns: got %v, want %v", ft.assigns, wantAssigns)
	}
	for i := range wantAssigns {
		if ft.assigns[i] != wantAssigns[i] {
			t.Errorf("assign #%d: got %s, want %s", i, ft.assigns[i], wantAssigns[i])
		}
	}

	wantChats := []int64{100, 200, 100}
	if len(fn.messages) != len(wantChats) {
		t.Fatalf("notifications: got %d, want %d", len(fn.messages), len(wantChats))
	}
	for i, want := range wantChats {
		if fn.messages[i].ChatID != want {
			t.Errorf("notification #%d chat: got %d, want %d", i, fn.messages[i].ChatID, want)
		}
		if !fn.messages[i].HTML {
			t.Errorf("notification #%d should use HTML parse mode", i)
		}
	}

	if len(ft.transitions) != 3 {
		t.Errorf("transitions: got %d, want 3", len(ft.transitions))
	}
}

func TestProcessNewBatch_dedupPreventsDoubleAssignment(t *testing.T) {
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultNewTicketsJQL: {ticket("SD911-1", "first", "user1")},
	}}
	fn := &fakeNotifier{}
	e := newTestEngine(t, ft, fn, nil)

	ctx := context.Background()
	if err := e.processNewBatch(ctx); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := e.processNewBatch(ctx); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	if len(ft.transitions) != 1 {
		t.Errorf("transitions after two batches: got %d, want 1", len(ft.transitions))
	}
	if len(fn.messages) != 1 {
		t.Errorf("notifications after two batches: got %d, want 1", len(fn.messages))
	}
}

func TestProcessNewBatch_permanentSkipNeverAssigns(t *testing.T) {
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultNewTicketsJQL: {ticket("SD911-777", "ignored forever", "user1")},
	}}
	fn := &fakeNotifier{}
	e := newTestEngine(t, ft, fn, nil)

	if err := e.processNewBatch(context.Background()); err != nil {
		t.Fatalf("processNewBatch: %v", err)
	}
	if len(ft.transitions)+len(ft.assigns)+len(fn.messages) != 0 {
		t.Errorf("permanent-skip ticket reached the assignment path: transitions=%v assigns=%v msgs=%v",
			ft.transitions, ft.assigns, fn.messages)
	}
	if e.cache.Contains("SD911-777") {
		t.Error("permanent-skip keys should not consume cache entries")
	}
}

func TestProcessNewBatch_ruleFilterUsesLongTTL(t *testing.T) {
	clk := &manualClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultNewTicketsJQL: {{
			Key: "SD911-2", Summary: "anything", Creator: "user1",
			Comments: []string{"forwarded to isuvorinov"},
		}},
	}}
	fn := &fakeNotifier{}
	e := newTestEngine(t, ft, fn, clk)

	if err := e.processNewBatch(context.Background()); err != nil {
		t.Fatalf("processNewBatch: %v", err)
	}
	if len(ft.transitions) != 0 {
		t.Fatal("filtered ticket must not be transitioned")
	}
	if !e.cache.Contains("SD911-2") {
		t.Fatal("filtered ticket should be cached")
	}
	// Still cached past the short TTL but inside the long one.
	clk.advance(dedup.AssignedTTL + time.Minute)
	if !e.cache.Contains("SD911-2") {
		t.Error("filtered ticket should be cached with the long TTL")
	}
	clk.advance(dedup.FilteredTTL)
	if e.cache.Contains("SD911-2") {
		t.Error("filtered ticket should expire after the long TTL")
	}
}

func TestProcessNewBatch_malformedTicketRetriedNextCycle(t *testing.T) {
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultNewTicketsJQL: {{Key: "SD911-3", Summary: "no creator"}},
	}}
	fn := &fakeNotifier{}
	e := newTestEngine(t, ft, fn, nil)

	if err := e.processNewBatch(context.Background()); err != nil {
		t.Fatalf("processNewBatch: %v", err)
	}
	if len(ft.transitions) != 0 || len(fn.messages) != 0 {
		t.Error("malformed ticket must not be processed")
	}
	if e.cache.Contains("SD911-3") {
		t.Error("malformed ticket must not be cached, so the next cycle retries it")
	}
}

func TestProcessNewBatch_transitionFailureNotCached(t *testing.T) {
	ft := &fakeTracker{
		results: map[string][]tracker.Ticket{
			tracker.DefaultNewTicketsJQL: {ticket("SD911-4", "x", "user1")},
		},
		transErr: context.DeadlineExceeded,
	}
	fn := &fakeNotifier{}
	e := newTestEngine(t, ft, fn, nil)

	ctx := context.Background()
	if err := e.processNewBatch(ctx); err != nil {
		t.Fatalf("batch error should stay per-ticket: %v", err)
	}
	if len(fn.messages) != 0 || len(ft.assigns) != 0 {
		t.Error("failed transition must abort the assignment for this cycle")
	}
	if e.cache.Contains("SD911-4") {
		t.Fatal("failed ticket must not be cached")
	}

	// Next cycle succeeds and the rotation still starts at alice.
	ft.mu.Lock()
	ft.transErr = nil
	ft.mu.Unlock()
	if err := e.processNewBatch(ctx); err != nil {
		t.Fatalf("retry batch: %v", err)
	}
	if len(ft.assigns) != 1 || ft.assigns[0] != "SD911-4:alice" {
		t.Errorf("retry should assign to alice first, got %v", ft.assigns)
	}
}

func TestProcessNewBatch_notifyFailureDoesNotBlockAssignment(t *testing.T) {
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultNewTicketsJQL: {ticket("SD911-5", "x", "user1")},
	}}
	fn := &fakeNotifier{sendErr: context.DeadlineExceeded}
	e := newTestEngine(t, ft, fn, nil)

	if err := e.processNewBatch(context.Background()); err != nil {
		t.Fatalf("processNewBatch: %v", err)
	}
	if len(ft.assigns) != 1 {
		t.Errorf("assignment should proceed despite notification failure, assigns=%v", ft.assigns)
	}
	if !e.cache.Contains("SD911-5") {
		t.Error("assigned ticket should be cached")
	}
}

func TestProcessNewBatch_skipsReassignWhenAlreadyCorrect(t *testing.T) {
	tk := ticket("SD911-6", "x", "user1")
	tk.Assignee = "alice"
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultNewTicketsJQL: {tk},
	}}
	fn := &fakeNotifier{}
	e := newTestEngine(t, ft, fn, nil)

	if err := e.processNewBatch(context.Background()); err != nil {
		t.Fatalf("processNewBatch: %v", err)
	}
	if len(ft.assigns) != 0 {
		t.Errorf("no reassign expected when the tracker already shows the picked operator, got %v", ft.assigns)
	}
	if len(fn.messages) != 1 {
		t.Errorf("notification still expected, got %d", len(fn.messages))
	}
}

func TestProcessNewBatch_dryRunSuppressesSideEffects(t *testing.T) {
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultNewTicketsJQL: {ticket("SD911-7", "x", "user1")},
	}}
	fn := &fakeNotifier{}
	opts := Options{Tracker: ft, Notifier: fn, Config: testConfig(), DryRun: true}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	if err := e.processNewBatch(context.Background()); err != nil {
		t.Fatalf("processNewBatch: %v", err)
	}
	if len(ft.transitions)+len(ft.assigns)+len(fn.messages) != 0 {
		t.Errorf("dry run must not call collaborators: transitions=%v assigns=%v msgs=%v",
			ft.transitions, ft.assigns, fn.messages)
	}
	if !e.cache.Contains("SD911-7") {
		t.Error("dry run still caches to avoid repeated logging within the TTL window")
	}
}

func TestProcessUpdatesBatch_notifiesMainChat(t *testing.T) {
	ft := &fakeTracker{results: map[string][]tracker.Ticket{
		tracker.DefaultUpdatesJQL: {
			ticket("SD911-8", "updated one", "user1"),
			ticket("SD911-9", "updated two", "user2"),
		},
	}}
	fn := &fakeNotifier{}
	e := newTestEngine(t, ft, fn, nil)

	if err := e.processUpdatesBatch(context.Background()); err != nil {
		t.Fatalf("processUpdatesBatch: %v", err)
	}
	if len(fn.messages) != 2 {
		t.Fatalf("updates notifications: got %d, want 2", len(fn.messages))
	}
	for _, m := range fn.messages {
		if m.ChatID != 42 {
			t.Errorf("update notification chat: got %d, want 42", m.ChatID)
		}
		if !strings.Contains(m.Text, "new update") {
			t.Errorf("update text: %q", m.Text)
		}
	}
	if len(ft.transitions)+len(ft.assigns) != 0 {
		t.Error("the update watcher must never mutate the tracker")
	}
}

func TestProcessOnce_reportsBatchFailure(t *testing.T) {
	ft := &fakeTracker{searchErr: context.DeadlineExceeded}
	e := newTestEngine(t, ft, &fakeNotifier{}, nil)
	if err := e.ProcessOnce(context.Background()); err == nil {
		t.Fatal("ProcessOnce with failing search: expected error")
	}
}

func TestPollNewTickets_stopsWhenFlagCleared(t *testing.T) {
	ft := &fakeTracker{}
	e := newTestEngine(t, ft, &fakeNotifier{}, nil)
	e.State().SetProcessing(false)

	done := make(chan error, 1)
	go func() { done <- e.pollNewTickets(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("flag stop should return nil, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on cleared flag")
	}
	if len(ft.searches) != 0 {
		t.Error("no fetch expected once the flag is down")
	}
}
