package translator_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valpere/linetran/internal/translator"
	"github.com/valpere/linetran/internal/translator/translatortest"
)

var epoch = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func TestWaiter_Do_EndsImmediately(t *testing.T) {
	svc := translatortest.NewService(translatortest.Text(translator.StopEndTurn, "ok"))
	clock := translatortest.NewClock(epoch)
	w := translator.NewWaiter(svc, translator.WaiterConfig{Clock: clock})

	res, err := w.Do(context.Background(), translator.Request{CustomID: "req-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != translator.OutcomeSucceeded {
		t.Errorf("expected succeeded, got %q", res.Outcome)
	}
	if n := len(clock.Sleeps()); n != 0 {
		t.Errorf("expected no sleeps, got %d", n)
	}
}

func TestWaiter_Do_PollsAtInterval(t *testing.T) {
	reply := translatortest.Text(translator.StopEndTurn, "ok")
	reply.Polls = 3
	svc := translatortest.NewService(reply)
	clock := translatortest.NewClock(epoch)
	w := translator.NewWaiter(svc, translator.WaiterConfig{Clock: clock})

	if _, err := w.Do(context.Background(), translator.Request{CustomID: "req-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sleeps := clock.Sleeps()
	if len(sleeps) != 3 {
		t.Fatalf("expected 3 sleeps, got %d", len(sleeps))
	}
	for i, d := range sleeps {
		if d != translator.DefaultPollInterval {
			t.Errorf("sleep %d: expected %s, got %s", i, translator.DefaultPollInterval, d)
		}
	}
}

func TestWaiter_Do_Deadline(t *testing.T) {
	reply := translatortest.Text(translator.StopEndTurn, "ok")
	reply.Polls = 100
	svc := translatortest.NewService(reply)
	clock := translatortest.NewClock(epoch)
	w := translator.NewWaiter(svc, translator.WaiterConfig{
		Clock:    clock,
		Interval: time.Second,
		Deadline: 3 * time.Second,
	})

	_, err := w.Do(context.Background(), translator.Request{CustomID: "req-1"})
	if !errors.Is(err, translator.ErrDeadline) {
		t.Fatalf("expected ErrDeadline, got %v", err)
	}
	if n := len(clock.Sleeps()); n != 3 {
		t.Errorf("expected 3 sleeps before giving up, got %d", n)
	}
}

func TestWaiter_Do_CanceledContext(t *testing.T) {
	reply := translatortest.Text(translator.StopEndTurn, "ok")
	reply.Polls = 1
	svc := translatortest.NewService(reply)
	w := translator.NewWaiter(svc, translator.WaiterConfig{Clock: translatortest.NewClock(epoch)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Do(ctx, translator.Request{CustomID: "req-1"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaiter_Do_FailedOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		reply translatortest.Reply
	}{
		{"errored", translatortest.Reply{Outcome: translator.OutcomeErrored, Error: "overloaded"}},
		{"expired", translatortest.Reply{Outcome: translator.OutcomeExpired}},
		{"canceled", translatortest.Reply{Outcome: translator.OutcomeCanceled}},
		{"unknown", translatortest.Reply{Outcome: "vanished"}},
		{"submit", translatortest.Reply{SubmitErr: errors.New("connection refused")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := translatortest.NewService(tt.reply)
			w := translator.NewWaiter(svc, translator.WaiterConfig{Clock: translatortest.NewClock(epoch)})

			_, err := w.Do(context.Background(), translator.Request{CustomID: "req-1"})
			if !errors.Is(err, translator.ErrServiceFailure) {
				t.Errorf("expected ErrServiceFailure, got %v", err)
			}
		})
	}
}

func TestWaiter_Do_WaitsOutCancellation(t *testing.T) {
	svc := translatortest.NewService(translatortest.Reply{
		Polls:      2,
		PollStatus: translator.JobCanceling,
		Outcome:    translator.OutcomeCanceled,
	})
	clock := translatortest.NewClock(epoch)
	w := translator.NewWaiter(svc, translator.WaiterConfig{Clock: clock})

	_, err := w.Do(context.Background(), translator.Request{CustomID: "req-1"})
	if !errors.Is(err, translator.ErrServiceFailure) {
		t.Errorf("expected ErrServiceFailure, got %v", err)
	}
	if n := len(clock.Sleeps()); n != 2 {
		t.Errorf("expected polling to continue while canceling, got %d sleeps", n)
	}
}

func TestWaiter_Do_ArchivesResponse(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "raw")
	archive, err := translator.NewArchive(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	svc := translatortest.NewService(translatortest.Text(translator.StopEndTurn, "ok"))
	w := translator.NewWaiter(svc, translator.WaiterConfig{
		Clock:   translatortest.NewClock(epoch),
		Archive: archive,
	})

	if _, err := w.Do(context.Background(), translator.Request{CustomID: "req-1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "20250314-092653.json")); err != nil {
		t.Errorf("expected archived response: %v", err)
	}
}
