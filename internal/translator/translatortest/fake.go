// Package translatortest provides in-memory doubles for the translator
// package: a scripted BatchService and a manual Clock.
package translatortest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/valpere/linetran/internal/translator"
)

// Reply scripts the answer to one submitted request.
type Reply struct {
	// Polls is the number of statuses reported before ended.
	Polls int
	// PollStatus is reported while polling. Defaults to in_progress.
	PollStatus translator.JobStatus
	// Outcome defaults to succeeded.
	Outcome translator.Outcome
	Message *translator.Message
	Error   string
	// SubmitErr fails the Submit call itself.
	SubmitErr error
}

// Text builds a succeeded reply with a single text block.
func Text(stop translator.StopReason, text string) Reply {
	return Reply{Message: &translator.Message{
		StopReason: stop,
		Content:    []translator.Block{{Type: translator.BlockText, Text: text}},
	}}
}

// Thinking builds a succeeded reply with a thinking block and a text block.
func Thinking(stop translator.StopReason, trace, text string) Reply {
	return Reply{Message: &translator.Message{
		StopReason: stop,
		Content: []translator.Block{
			{Type: translator.BlockThinking, Text: trace},
			{Type: translator.BlockText, Text: text},
		},
	}}
}

// Service answers submitted requests with Replies, either from a fixed script
// or from a Responder. Every request is recorded.
type Service struct {
	// Responder, when set, is consulted instead of the script.
	Responder func(req translator.Request) Reply

	mu       sync.Mutex
	script   []Reply
	requests []translator.Request
	jobs     map[string]*job
	seq      int
}

type job struct {
	req   translator.Request
	reply Reply
	polls int
}

func NewService(script ...Reply) *Service {
	return &Service{script: script, jobs: make(map[string]*job)}
}

func (s *Service) Name() string { return "fake" }

func (s *Service) Submit(_ context.Context, req translator.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)

	var reply Reply
	switch {
	case s.Responder != nil:
		reply = s.Responder(req)
	case len(s.script) > 0:
		reply = s.script[0]
		s.script = s.script[1:]
	default:
		return "", fmt.Errorf("fake: no reply scripted for request %d", len(s.requests))
	}
	if reply.SubmitErr != nil {
		return "", reply.SubmitErr
	}
	if reply.Outcome == "" {
		reply.Outcome = translator.OutcomeSucceeded
	}

	s.seq++
	id := fmt.Sprintf("job_%d", s.seq)
	if s.jobs == nil {
		s.jobs = make(map[string]*job)
	}
	s.jobs[id] = &job{req: req, reply: reply}
	return id, nil
}

func (s *Service) Status(_ context.Context, jobID string) (translator.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return "", fmt.Errorf("fake: unknown job %s", jobID)
	}
	if j.polls < j.reply.Polls {
		j.polls++
		if j.reply.PollStatus != "" {
			return j.reply.PollStatus, nil
		}
		return translator.JobInProgress, nil
	}
	return translator.JobEnded, nil
}

func (s *Service) Results(_ context.Context, jobID string) ([]translator.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("fake: unknown job %s", jobID)
	}
	return []translator.Result{{
		CustomID: j.req.CustomID,
		Outcome:  j.reply.Outcome,
		Message:  j.reply.Message,
		Error:    j.reply.Error,
		Raw:      []byte(`{"fake":true}`),
	}}, nil
}

// Requests returns a copy of every request submitted so far.
func (s *Service) Requests() []translator.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]translator.Request(nil), s.requests...)
}

// Remaining reports how many scripted replies are unused.
func (s *Service) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.script)
}

// Clock is a manual clock: Sleep advances Now instantly.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	return nil
}

// Sleeps returns the durations passed to Sleep.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}
