// Serialmux provides an abstraction over a serial port carrying a ThinkGear
// byte stream, with the ability for multiple clients to subscribe to the
// samples decoded from it.
package serialmux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"tailscale.com/tsweb"

	"github.com/banshee-data/eeg.report/internal/httputil"
	"github.com/banshee-data/eeg.report/internal/monitoring"
	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

// Defaults for Option values.
const (
	DefaultSubscriberBuffer = 256
	DefaultReadSize         = 4096
)

// Stats reports the multiplexer's fan-out counters alongside the framer's.
type Stats struct {
	Framer      thinkgear.Stats `json:"framer"`
	Samples     uint64          `json:"samples"`
	Dropped     uint64          `json:"dropped"`
	Subscribers int             `json:"subscribers"`
}

// SerialMux is a generic serial port multiplexer that decodes the ThinkGear
// stream from a single port and fans the samples out to any number of
// subscribers.
type SerialMux[T SerialPorter] struct {
	port         T
	framer       *thinkgear.Framer
	subscribers  map[string]chan thinkgear.Sample
	subscriberMu sync.Mutex
	subBuffer    int
	readSize     int
	closing      bool
	closingMu    sync.Mutex

	samples atomic.Uint64
	dropped atomic.Uint64
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new buffered channel receiving every decoded
	// sample. The ID identifies the channel when unsubscribing.
	Subscribe() (string, chan thinkgear.Sample)
	// Unsubscribe removes a channel from the list of subscribers and closes it.
	Unsubscribe(string)
	// Monitor reads the serial port, decodes frames and sends the samples
	// to subscribers until ctx is done or the port fails.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error
	// Stats returns the current fan-out and framer counters.
	Stats() Stats

	// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
	// mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// Option configures a SerialMux.
type Option func(*muxOptions)

type muxOptions struct {
	subBuffer int
	readSize  int
	framer    []thinkgear.FramerOption
}

// WithSubscriberBuffer sets the capacity of each subscriber channel. A
// subscriber that falls this far behind loses samples rather than
// stalling the reader.
func WithSubscriberBuffer(n int) Option {
	return func(o *muxOptions) { o.subBuffer = n }
}

// WithReadSize sets the size of each read from the port.
func WithReadSize(n int) Option {
	return func(o *muxOptions) { o.readSize = n }
}

// WithFramerOptions passes options through to the underlying Framer.
func WithFramerOptions(opts ...thinkgear.FramerOption) Option {
	return func(o *muxOptions) { o.framer = append(o.framer, opts...) }
}

// NewSerialMux creates a SerialMux instance reading from port.
func NewSerialMux[T SerialPorter](port T, opts ...Option) *SerialMux[T] {
	o := muxOptions{subBuffer: DefaultSubscriberBuffer, readSize: DefaultReadSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.subBuffer < 0 {
		o.subBuffer = 0
	}
	if o.readSize <= 0 {
		o.readSize = DefaultReadSize
	}
	return &SerialMux[T]{
		port:        port,
		framer:      thinkgear.NewFramer(o.framer...),
		subscribers: make(map[string]chan thinkgear.Sample),
		subBuffer:   o.subBuffer,
		readSize:    o.readSize,
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan thinkgear.Sample) {
	id := randomID()
	ch := make(chan thinkgear.Sample, s.subBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Monitor reads the serial port, feeds the framer and publishes each
// decoded sample. It returns nil when the port reaches EOF.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	chunks := make(chan []byte)
	readErrChan := make(chan error, 1)

	// the blocking Read must not hold up context cancellation, so it runs on
	// its own goroutine
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, s.readSize)
			n, err := s.port.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case readErrChan <- err:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErrChan:
			if s.isClosing() {
				return nil
			}
			return fmt.Errorf("serial read failed: %w", err)

		case chunk, ok := <-chunks:
			if !ok {
				// EOF may race with a pending read error
				select {
				case err := <-readErrChan:
					if !s.isClosing() {
						return fmt.Errorf("serial read failed: %w", err)
					}
				default:
				}
				return nil
			}
			if s.isClosing() {
				return nil
			}
			s.framer.Feed(chunk, s.publish)
		}
	}
}

func (s *SerialMux[T]) isClosing() bool {
	s.closingMu.Lock()
	defer s.closingMu.Unlock()
	return s.closing
}

// publish hands a sample to every subscriber without blocking.
func (s *SerialMux[T]) publish(sample thinkgear.Sample) {
	s.samples.Add(1)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- sample:
		default:
			s.dropped.Add(1)
		}
	}
}

// Stats returns the current counters.
func (s *SerialMux[T]) Stats() Stats {
	s.subscriberMu.Lock()
	n := len(s.subscribers)
	s.subscriberMu.Unlock()
	return Stats{
		Framer:      s.framer.Stats(),
		Samples:     s.samples.Load(),
		Dropped:     s.dropped.Load(),
		Subscribers: n,
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	if s.closing {
		s.closingMu.Unlock()
		return nil
	}
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subscriberMu.Unlock()
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	attachAdminRoutes(mux, s)
}

func attachAdminRoutes(mux *http.ServeMux, s SerialMuxInterface) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("framer", "ThinkGear framer and fan-out counters", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		httputil.WriteJSONOK(w, s.Stats())
	})

	// Server-Sent Events stream of decoded samples, one JSON object per event.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case sample, ok := <-c:
				if !ok {
					return
				}
				payload, err := json.Marshal(sample)
				if err != nil {
					monitoring.Logf("failed to encode sample for tail: %v", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", sample.Kind, payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
