package socketio

import (
	"sync"
	"time"
)

// Subsystems accepted by BroadcastDebouncer.Trigger.
const (
	SubsystemQueue     = "queue"
	SubsystemTransport = "transport"
	SubsystemLibrary   = "library"
)

// BroadcastDebouncer collapses rapid engine updates into batched broadcasts.
// Multiple changes within the debounce window result in a single broadcast
// for each affected type (state and/or library).
type BroadcastDebouncer struct {
	window          time.Duration
	stateCallback   func()
	libraryCallback func()

	mu             sync.Mutex
	pendingState   bool
	pendingLibrary bool
	timer          *time.Timer
	stopped        bool
}

// NewBroadcastDebouncer creates a debouncer with the given window duration.
// stateCallback runs for queue and transport changes, libraryCallback for
// catalog refreshes.
func NewBroadcastDebouncer(window time.Duration, stateCallback, libraryCallback func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:          window,
		stateCallback:   stateCallback,
		libraryCallback: libraryCallback,
	}
}

// Trigger records that subsystem changed. Callbacks are deferred until the
// window elapses without further triggers. Unknown subsystems are ignored.
func (d *BroadcastDebouncer) Trigger(subsystem string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	switch subsystem {
	case SubsystemQueue, SubsystemTransport:
		d.pendingState = true
	case SubsystemLibrary:
		d.pendingLibrary = true
	default:
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires callbacks for any pending flags and resets them.
func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	doState := d.pendingState
	doLibrary := d.pendingLibrary
	d.pendingState = false
	d.pendingLibrary = false
	d.mu.Unlock()

	if doState && d.stateCallback != nil {
		d.stateCallback()
	}
	if doLibrary && d.libraryCallback != nil {
		d.libraryCallback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pendingState = false
	d.pendingLibrary = false
}
