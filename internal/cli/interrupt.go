package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler cancels a run on SIGINT/SIGTERM and tells the user what
// state the store was left in.
type InterruptHandler struct {
	writer      io.Writer
	notify      func(chan<- os.Signal)
	snapshotID  string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler.
func NewInterruptHandler(writer io.Writer) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer: writer,
		notify: func(c chan<- os.Signal) {
			signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		},
	}
}

// HandleInterrupts returns a context canceled on interrupt. snapshotID, when
// set, is named in the message as the way back.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context, snapshotID string) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	h.snapshotID = snapshotID

	sigChan := make(chan os.Signal, 1)
	h.notify(sigChan)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			h.mu.Lock()
			if !h.interrupted {
				h.interrupted = true
				h.showInterruptMessage()
			}
			h.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning("Run interrupted!")
	msg += "\n" + FormatInfo("Categories already written are kept; the rest were not applied.")
	if h.snapshotID != "" {
		msg += "\n" + FormatInfo("Undo everything with: khata snapshots restore "+h.snapshotID)
	}
	msg += "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
