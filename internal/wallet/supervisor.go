package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Supervisor keeps a worker alive. The worker runs in its own goroutine;
// when it dies of anything but a deliberate shutdown the supervisor logs
// the failure and starts it again. In debug mode the failure is returned
// instead, so the process dies visibly.
type Supervisor struct {
	worker func(ctx context.Context) error
	log    *logrus.Logger
	debug  bool
}

func NewSupervisor(worker func(ctx context.Context) error, log *logrus.Logger, debug bool) *Supervisor {
	return &Supervisor{worker: worker, log: log, debug: debug}
}

// Run blocks until the worker exits cleanly, ctx is cancelled, or, in
// debug mode, the worker fails.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		err := s.runWorker(ctx)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.log.Info("wallet synchronization worker stopped")
			return nil
		}
		s.log.WithError(err).Error("wallet synchronization worker died")
		if s.debug {
			return err
		}
		s.log.Info("restarting wallet synchronization worker")
	}
}

// runWorker runs one worker incarnation, converting a panic into an
// error so the restart decision stays in Run.
func (s *Supervisor) runWorker(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("worker panicked: %v", r)
			}
		}()
		done <- s.worker(ctx)
	}()
	return <-done
}
