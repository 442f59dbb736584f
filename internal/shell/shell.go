package shell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/markusylisiurunen/mcpchat/internal/logger"
	"golang.org/x/sync/semaphore"
)

const EmptyInputWarning = "Please enter a question first."

var ErrBusy = errors.New("an invocation is already in progress")

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindWarning Kind = "warning"
)

// Outcome is what a front-end renders after a submission.
type Outcome struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

func ErrorOutcome(err error) Outcome {
	return Outcome{Kind: KindError, Text: "⚠️ Error: " + err.Error()}
}

type Invoker interface {
	Invoke(ctx context.Context, message string) (string, error)
}

// Session runs at most one invocation at a time. It is idle while the semaphore is free
// and processing while it is held.
type Session struct {
	logger  logger.Logger
	invoker Invoker
	sem     *semaphore.Weighted
}

func NewSession(log logger.Logger, invoker Invoker) *Session {
	return &Session{logger: log, invoker: invoker, sem: semaphore.NewWeighted(1)}
}

// Busy reports whether an invocation is in flight.
func (s *Session) Busy() bool {
	if s.sem.TryAcquire(1) {
		s.sem.Release(1)
		return false
	}
	return true
}

// Submit starts an invocation in the background and hands its outcome to done. The session
// is idle again by the time done runs. Blank input is answered with a warning without
// invoking anything; a submission while processing returns ErrBusy and done is not called.
func (s *Session) Submit(ctx context.Context, input string, done func(Outcome)) error {
	if strings.TrimSpace(input) == "" {
		done(Outcome{Kind: KindWarning, Text: EmptyInputWarning})
		return nil
	}
	if !s.sem.TryAcquire(1) {
		return ErrBusy
	}
	go func() {
		outcome := s.invoke(ctx, input)
		s.sem.Release(1)
		done(outcome)
	}()
	return nil
}

// Ask is the blocking form of Submit.
func (s *Session) Ask(ctx context.Context, input string) (Outcome, error) {
	ch := make(chan Outcome, 1)
	if err := s.Submit(ctx, input, func(o Outcome) { ch <- o }); err != nil {
		return Outcome{}, err
	}
	return <-ch, nil
}

func (s *Session) invoke(ctx context.Context, input string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("invocation panicked: %v", r)
			outcome = ErrorOutcome(fmt.Errorf("%v", r))
		}
	}()
	answer, err := s.invoker.Invoke(ctx, input)
	if err != nil {
		s.logger.Error("invocation failed: %v", err)
		return ErrorOutcome(err)
	}
	return Outcome{Kind: KindSuccess, Text: answer}
}
