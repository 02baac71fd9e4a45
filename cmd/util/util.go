package util

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/snapmirror/snapmirror/pkg/errors"
)

// HandleFatalError prints the user-facing message for err and exits with a
// non-zero status. It never returns.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(os.Stderr, errors.GetPrintableMessage(err))
	os.Exit(1)
}

// HandlePanic recovers from panics in the calling goroutine and exits after
// printing where the panic happened. It should be installed with defer at the
// top of the goroutine.
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	fmt.Fprintf(os.Stderr, "panic: %v\n\n%s", r, debug.Stack())
	os.Exit(1)
}

// ProgressPrinter prints a message, followed by a period every second until
// Stop is called. It gives feedback during operations that block for a
// while.
type ProgressPrinter struct {
	out     io.Writer
	message string
	stop    chan struct{}
	stopped chan struct{}
}

// NewProgressPrinter creates a new ProgressPrinter that writes to out.
func NewProgressPrinter(out io.Writer, message string) *ProgressPrinter {
	return &ProgressPrinter{
		out:     out,
		message: message,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Run prints the progress message until Stop is called. It's meant to be run
// in a goroutine.
func (pp *ProgressPrinter) Run() {
	defer close(pp.stopped)

	fmt.Fprintf(pp.out, "%s..", pp.message)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-pp.stop:
			fmt.Fprintln(pp.out)
			return
		case <-ticker.C:
			fmt.Fprint(pp.out, ".")
		}
	}
}

// Stop terminates the progress printing, and blocks until the final newline
// is written.
func (pp *ProgressPrinter) Stop() {
	close(pp.stop)
	<-pp.stopped
}
