package signalhandler

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/OiAnthony/image-deduplicate/logging"
)

// SetupHandler returns a context that is cancelled on the first SIGINT or
// SIGTERM, letting workers stop and the cache flush. A second signal exits
// immediately. The returned stop func releases the signal watcher.
func SetupHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		watchSignals(sigChan, done, cancel, os.Exit)
		signal.Stop(sigChan)
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			signal.Stop(sigChan)
			close(done)
		})
		cancel()
	}
}

// watchSignals cancels on the first signal and calls exit on the second.
// It returns once done is closed.
func watchSignals(sigChan <-chan os.Signal, done <-chan struct{}, cancel context.CancelFunc, exit func(int)) {
	select {
	case sig := <-sigChan:
		logging.LogWarning("Received %s, stopping", sig)
		cancel()
	case <-done:
		return
	}

	select {
	case <-sigChan:
		exit(130)
	case <-done:
	}
}

// GetOptimalProcs returns the default number of hashing workers
func GetOptimalProcs() int {
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// Interrupted reports whether err came from a cancelled run
func Interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
