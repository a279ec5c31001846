package service

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"pin-bot/project/domain"
)

// fakeMessagePort は MessagePort のモック実装
type fakeMessagePort struct {
	mu sync.Mutex

	// messages はメッセージIDごとの現在のリアクション
	messages map[string]domain.ReactionSnapshot

	fetchErr error
	pinErr   error
	unpinErr error

	fetches int
	pins    []domain.MessageRef
	unpins  []domain.MessageRef
}

func newFakeMessagePort() *fakeMessagePort {
	return &fakeMessagePort{messages: make(map[string]domain.ReactionSnapshot)}
}

func (f *fakeMessagePort) setReactions(messageID string, reactions ...domain.Reaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[messageID] = reactions
}

func (f *fakeMessagePort) FetchMessage(ctx context.Context, ref domain.MessageRef) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	reactions, ok := f.messages[ref.MessageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Message{Ref: ref, Reactions: append(domain.ReactionSnapshot(nil), reactions...)}, nil
}

func (f *fakeMessagePort) PinMessage(ctx context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pins = append(f.pins, msg.Ref)
	return f.pinErr
}

func (f *fakeMessagePort) UnpinMessage(ctx context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unpins = append(f.unpins, msg.Ref)
	return f.unpinErr
}

func (f *fakeMessagePort) counts() (fetches, pins, unpins int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, len(f.pins), len(f.unpins)
}

// fakePresence は PresencePort のモック実装
type fakePresence struct {
	mu       sync.Mutex
	statuses []string
	err      error
}

func (f *fakePresence) SetPresence(ctx context.Context, statusText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusText)
	return f.err
}

// fakeRegistrar は CommandRegistrar のモック実装
type fakeRegistrar struct {
	mu    sync.Mutex
	calls []domain.MessageRef
	err   error
}

func (f *fakeRegistrar) RegisterCommands(ctx context.Context, ref domain.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ref)
	return f.err
}

// fakeMetrics は MetricsPort のモック実装
type fakeMetrics struct {
	mu        sync.Mutex
	events    map[string]int
	mutations map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{events: make(map[string]int), mutations: make(map[string]int)}
}

func (f *fakeMetrics) ObserveEvent(kind, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[kind+"/"+outcome]++
}

func (f *fakeMetrics) ObserveMutation(action, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations[action+"/"+outcome]++
}

func (f *fakeMetrics) event(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[key]
}

func (f *fakeMetrics) mutation(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations[key]
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

const testTrigger = "📌"

var (
	pin   = domain.Emoji{Name: testTrigger}
	thumb = domain.Emoji{Name: "👍"}
)

func testRef(messageID string) domain.MessageRef {
	return domain.MessageRef{TeamID: "G1", ChannelID: "C1", MessageID: messageID}
}
