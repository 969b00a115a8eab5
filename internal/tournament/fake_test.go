package tournament

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

type FakeStore struct {
	Clears   int
	ClearErr error
}

func (f *FakeStore) Clear(context.Context) error {
	f.Clears++
	return f.ClearErr
}

type sentMessage struct {
	ChatID int64
	Text   string
}

type FakeSender struct {
	Sent    []sentMessage
	FailFor map[int64]bool
}

func (f *FakeSender) SendText(chatID int64, text string) error {
	if f.FailFor[chatID] {
		return errors.New("chat not found")
	}
	f.Sent = append(f.Sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (f *FakeSender) To(chatID int64) []string {
	var out []string
	for _, s := range f.Sent {
		if s.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

type scheduledTask struct {
	Delay     time.Duration
	Fn        func(context.Context) error
	Cancelled bool
}

type FakeScheduler struct {
	Tasks []*scheduledTask
}

func (f *FakeScheduler) After(d time.Duration, fn func(context.Context) error) func() bool {
	task := &scheduledTask{Delay: d, Fn: fn}
	f.Tasks = append(f.Tasks, task)
	return func() bool {
		was := !task.Cancelled
		task.Cancelled = true
		return was
	}
}

func (f *FakeScheduler) Last() *scheduledTask {
	if len(f.Tasks) == 0 {
		return nil
	}
	return f.Tasks[len(f.Tasks)-1]
}

func newTestManager(cfg Config) (*Manager, *FakeStore, *FakeSender, *FakeScheduler) {
	store := &FakeStore{}
	sender := &FakeSender{FailFor: map[int64]bool{}}
	sched := &FakeScheduler{}
	if cfg.AdminID == 0 {
		cfg.AdminID = 999
	}
	m := New(cfg, store, sender, sched, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	return m, store, sender, sched
}
