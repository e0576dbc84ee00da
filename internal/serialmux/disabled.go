package serialmux

import (
	"context"
	"net/http"
	"sync"

	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

// DisabledSerialMux is a no-op SerialMux used when no headset is attached
// (-disable-serial). It lets the server and admin routes run without a
// device, and tracks subscribers so their channels are closed on
// Unsubscribe or Close.
type DisabledSerialMux struct {
	mu          sync.Mutex
	subscribers map[string]chan thinkgear.Sample
	closing     bool
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{
		subscribers: make(map[string]chan thinkgear.Sample),
	}
}

func (d *DisabledSerialMux) Subscribe() (string, chan thinkgear.Sample) {
	id := randomID()
	ch := make(chan thinkgear.Sample)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		// already closing: hand back a closed channel so callers don't block
		close(ch)
		return id, ch
	}
	d.subscribers[id] = ch
	return id, ch
}

func (d *DisabledSerialMux) Unsubscribe(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.subscribers[id]; ok {
		close(ch)
		delete(d.subscribers, id)
	}
}

func (d *DisabledSerialMux) Monitor(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func (d *DisabledSerialMux) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Subscribers: len(d.subscribers)}
}

func (d *DisabledSerialMux) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return nil
	}
	d.closing = true
	for id, ch := range d.subscribers {
		close(ch)
		delete(d.subscribers, id)
	}
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, d)
}
