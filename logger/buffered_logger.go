// Package logger provides a buffered logger for interactive actions.
// Log lines for one action (a click, a hover preview, a group edit) are
// accumulated in a private buffer and committed after the action finishes,
// so logging never adds latency to pointer handling.
package logger

import (
	"bytes"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// BufferedLogger accumulates log entries in memory and flushes them
// asynchronously.
type BufferedLogger struct {
	buffer     bytes.Buffer
	mu         sync.Mutex
	autoFlush  bool
	flushChan  chan struct{}
	stopChan   chan struct{}
	enabled    atomic.Bool
	actionNum  atomic.Uint64
	sampleRate int // 0 = log all, N = log 1 in N actions
}

// New creates a buffered logger. With autoFlush set, a background
// goroutine drains the buffer every 100ms.
func New(autoFlush bool, sampleRate int) *BufferedLogger {
	bl := &BufferedLogger{
		autoFlush:  autoFlush,
		flushChan:  make(chan struct{}, 100),
		stopChan:   make(chan struct{}),
		sampleRate: sampleRate,
	}
	bl.enabled.Store(true)

	if autoFlush {
		go bl.flusher()
	}
	return bl
}

// ActionLogger is a per-action logging context. A nil ActionLogger is
// valid and discards everything, so sampled-out actions cost nothing.
type ActionLogger struct {
	parent    *BufferedLogger
	buffer    bytes.Buffer
	actionNum uint64
}

// StartAction creates a logging context for one interactive action.
// Returns nil when the action is sampled out or logging is disabled.
func (bl *BufferedLogger) StartAction() *ActionLogger {
	if bl == nil || !bl.enabled.Load() {
		return nil
	}
	n := bl.actionNum.Add(1)
	if bl.sampleRate != 0 && n%uint64(bl.sampleRate) != 0 {
		return nil
	}
	return &ActionLogger{parent: bl, actionNum: n}
}

// Printf adds a formatted entry to the action buffer.
func (al *ActionLogger) Printf(format string, args ...interface{}) {
	if al == nil {
		return
	}
	timestamp := time.Now().Format("2006/01/02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(&al.buffer, "[%s] [act#%d] %s\n", timestamp, al.actionNum, msg)
}

// Commit flushes the action's entries to the parent buffer. Call after
// the action's result has been delivered.
func (al *ActionLogger) Commit() {
	if al == nil || al.buffer.Len() == 0 {
		return
	}
	al.parent.mu.Lock()
	al.parent.buffer.Write(al.buffer.Bytes())
	al.parent.mu.Unlock()

	if al.parent.autoFlush {
		select {
		case al.parent.flushChan <- struct{}{}:
		default:
			// Channel full; the ticker will flush shortly.
		}
	}
}

// Flush writes all buffered entries to the standard logger.
func (bl *BufferedLogger) Flush() {
	bl.mu.Lock()
	defer bl.mu.Unlock()
	if bl.buffer.Len() > 0 {
		log.Print(bl.buffer.String())
		bl.buffer.Reset()
	}
}

func (bl *BufferedLogger) flusher() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-bl.flushChan:
			bl.Flush()
		case <-ticker.C:
			bl.Flush()
		case <-bl.stopChan:
			bl.Flush()
			return
		}
	}
}

// Stop terminates the background flusher after a final flush.
func (bl *BufferedLogger) Stop() {
	if bl == nil {
		return
	}
	close(bl.stopChan)
}

// SetEnabled toggles logging at runtime.
func (bl *BufferedLogger) SetEnabled(enabled bool) {
	bl.enabled.Store(enabled)
}
