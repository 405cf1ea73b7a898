package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"catwatch/internal/model"
)

type sentMessage struct {
	ChatID   int64
	Text     string
	PhotoURL string
}

type mockSender struct {
	mu       sync.Mutex
	messages []sentMessage
	// failChats makes every send to these chats fail.
	failChats map[int64]bool
	// transientFailures makes the first N sends fail regardless of chat.
	transientFailures int
}

func (m *mockSender) record(chatID int64, text, photoURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transientFailures > 0 {
		m.transientFailures--
		return errors.New("temporary transport failure")
	}
	if m.failChats[chatID] {
		return errors.New("chat unreachable")
	}
	m.messages = append(m.messages, sentMessage{ChatID: chatID, Text: text, PhotoURL: photoURL})
	return nil
}

func (m *mockSender) SendMessage(_ context.Context, chatID int64, text string) error {
	return m.record(chatID, text, "")
}

func (m *mockSender) SendPhoto(_ context.Context, chatID int64, photoURL, caption string) error {
	return m.record(chatID, caption, photoURL)
}

func (m *mockSender) getMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMessage, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func newTestNotifier(sender Sender, maxPerRun int) *Notifier {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := New(sender, maxPerRun, "https://shelter.example.com/cats", log)
	n.SetDelays(0, time.Millisecond)
	return n
}

var testSubs = []model.Subscriber{
	{ChatID: 1, Name: "A"},
	{ChatID: 2, Name: "B"},
	{ChatID: 3, Name: "C"},
}

func TestNotifyAllDeliversToEverySubscriber(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(sender, 30)

	records := []model.Record{
		{ID: "1", Name: "Whiskers", DetailURL: "https://shelter.example.com/cats/1"},
		{ID: "2", Name: "Biscuit", ImageURL: "https://cdn.example.com/2.jpg"},
	}

	sum := n.NotifyAll(context.Background(), testSubs, records)

	if diff := cmp.Diff(Summary{Sent: 6}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	var photos int
	for _, m := range sender.getMessages() {
		if m.PhotoURL != "" {
			photos++
		}
	}
	if diff := cmp.Diff(3, photos); diff != "" {
		t.Errorf("photo count mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyAllToleratesPartialFailure(t *testing.T) {
	sender := &mockSender{failChats: map[int64]bool{2: true}}
	n := newTestNotifier(sender, 30)

	records := []model.Record{
		{ID: "1", Name: "Whiskers"},
		{ID: "2", Name: "Biscuit"},
	}

	sum := n.NotifyAll(context.Background(), testSubs, records)

	// Subscriber B fails for both records; A and C get everything.
	if diff := cmp.Diff(Summary{Sent: 4, Failed: 2}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	for _, m := range sender.getMessages() {
		if m.ChatID == 2 {
			t.Errorf("unexpected delivery to failing chat: %+v", m)
		}
	}
}

func TestNotifyAllRetriesTransientFailureOnce(t *testing.T) {
	sender := &mockSender{transientFailures: 1}
	n := newTestNotifier(sender, 30)

	sum := n.NotifyAll(context.Background(),
		[]model.Subscriber{{ChatID: 1}},
		[]model.Record{{ID: "1", Name: "Whiskers"}},
	)

	if diff := cmp.Diff(Summary{Sent: 1}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestNotifyAllCapsAndReportsOverflow(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(sender, 2)

	records := []model.Record{
		{ID: "1", Name: "One"},
		{ID: "2", Name: "Two"},
		{ID: "3", Name: "Three"},
		{ID: "4", Name: "Four"},
	}

	sum := n.NotifyAll(context.Background(), []model.Subscriber{{ChatID: 9}}, records)

	if diff := cmp.Diff(Summary{Sent: 2, Overflow: 2}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	msgs := sender.getMessages()
	if diff := cmp.Diff(3, len(msgs)); diff != "" {
		t.Fatalf("message count mismatch (-want +got):\n%s", diff)
	}
	last := msgs[len(msgs)-1].Text
	if !strings.Contains(last, "2 more new cats") {
		t.Errorf("overflow summary missing count: %q", last)
	}
	if !strings.Contains(last, "https://shelter.example.com/cats") {
		t.Errorf("overflow summary missing listing link: %q", last)
	}
}

func TestNotifyAllNoRecords(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(sender, 30)

	sum := n.NotifyAll(context.Background(), testSubs, nil)

	if diff := cmp.Diff(Summary{}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
	if len(sender.getMessages()) != 0 {
		t.Errorf("expected no messages, got %d", len(sender.getMessages()))
	}
}

func TestNotifyAllStopsOnCancelledContext(t *testing.T) {
	sender := &mockSender{}
	n := newTestNotifier(sender, 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum := n.NotifyAll(ctx, testSubs, []model.Record{{ID: "1", Name: "Whiskers"}})

	if diff := cmp.Diff(Summary{}, sum); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatRecord(t *testing.T) {
	rec := model.Record{
		ID:          "1001",
		Name:        "Whiskers",
		AgeText:     "1 year 3 months",
		Description: "Calm lap cat.",
		DetailURL:   "https://shelter.example.com/cats/1001/whiskers",
	}

	got := FormatRecord(rec)
	for _, want := range []string{"Whiskers", "1 year 3 months", "Calm lap cat.", "https://shelter.example.com/cats/1001/whiskers"} {
		if !strings.Contains(got, want) {
			t.Errorf("formatted message missing %q:\n%s", want, got)
		}
	}
}

func TestFormatRecordTruncatesDescription(t *testing.T) {
	rec := model.Record{Name: "Talky", Description: strings.Repeat("a", 400)}
	got := FormatRecord(rec)
	if !strings.Contains(got, strings.Repeat("a", 300)+"...") {
		t.Error("expected truncated description with ellipsis")
	}
	if strings.Contains(got, strings.Repeat("a", 301)) {
		t.Error("description not truncated at limit")
	}
}
