package app

import (
	"fmt"

	"github.com/roastcast/ledger/pkg/logger"
)

// TaskRunner executes fire-and-forget work spawned by the flows.
type TaskRunner func(name string, fn func())

// AsyncRunner runs tasks on their own goroutine, recovering panics so a
// bad fan-out cannot take the process down.
func AsyncRunner(log *logger.Logger) TaskRunner {
	return func(name string, fn func()) {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithError(fmt.Errorf("%v", r)).WithField("task", name).Error("background task panicked")
				}
			}()
			fn()
		}()
	}
}

// SyncRunner runs tasks inline. Tests use it to observe fan-out effects
// deterministically.
func SyncRunner() TaskRunner {
	return func(name string, fn func()) {
		fn()
	}
}
