package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/eeg.report/internal/thinkgear"
)

func smallFrame(v int16) []byte {
	f := thinkgear.EncodeSmallRaw(v)
	return f[:]
}

func drain(ch chan thinkgear.Sample) []thinkgear.Sample {
	var out []thinkgear.Sample
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, s)
		default:
			return out
		}
	}
}

func TestNewSerialMux_Defaults(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort(), WithSubscriberBuffer(-3), WithReadSize(0))
	assert.Equal(t, 0, mux.subBuffer)
	assert.Equal(t, DefaultReadSize, mux.readSize)

	mux = NewSerialMux(NewTestableSerialPort())
	assert.Equal(t, DefaultSubscriberBuffer, mux.subBuffer)
}

func TestSerialMux_SubscribeUnsubscribe(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())

	id1, ch1 := mux.Subscribe()
	id2, _ := mux.Subscribe()
	assert.NotEqual(t, id1, id2)
	assert.Len(t, id1, 16)
	assert.Equal(t, DefaultSubscriberBuffer, cap(ch1))
	assert.Equal(t, 2, mux.Stats().Subscribers)

	mux.Unsubscribe(id1)
	_, ok := <-ch1
	assert.False(t, ok, "unsubscribed channel should be closed")
	assert.Equal(t, 1, mux.Stats().Subscribers)

	// unknown ids are ignored
	mux.Unsubscribe("nope")
	mux.Unsubscribe(id1)
	assert.Equal(t, 1, mux.Stats().Subscribers)
}

func TestSerialMux_Monitor_PublishesSamples(t *testing.T) {
	port := NewTestableSerialPort()
	bands := thinkgear.Bands{1, 2, 3, 4, 5, 6, 7, 8}
	large := thinkgear.EncodeLargeBands(bands, 0, 50, 60)

	port.AddReadData([]byte{0x00, 0xAA}) // leading garbage
	port.AddReadData(smallFrame(100))
	port.AddReadData(large[:])
	port.AddReadData(smallFrame(-100))

	// small reads split every frame across chunks
	mux := NewSerialMux(port, WithReadSize(5))
	_, ch := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()), "EOF ends monitoring cleanly")

	want := []thinkgear.Sample{
		thinkgear.RawSample(100),
		thinkgear.BandSample(bands, 0, 50, 60),
		thinkgear.RawSample(-100),
	}
	if diff := cmp.Diff(want, drain(ch)); diff != "" {
		t.Errorf("samples mismatch (-want +got):\n%s", diff)
	}

	stats := mux.Stats()
	assert.Equal(t, uint64(3), stats.Samples)
	assert.Zero(t, stats.Dropped)
	assert.Equal(t, uint64(2), stats.Framer.SmallFrames)
	assert.Equal(t, uint64(1), stats.Framer.LargeFrames)
	assert.Equal(t, uint64(2), stats.Framer.DesyncBytes)
}

func TestSerialMux_Monitor_SlowSubscriberDrops(t *testing.T) {
	port := NewTestableSerialPort()
	for i := int16(0); i < 3; i++ {
		port.AddReadData(smallFrame(i))
	}
	mux := NewSerialMux(port, WithSubscriberBuffer(1))
	_, slow := mux.Subscribe()

	require.NoError(t, mux.Monitor(context.Background()))

	got := drain(slow)
	require.Len(t, got, 1)
	assert.Equal(t, thinkgear.RawSample(0), got[0])

	stats := mux.Stats()
	assert.Equal(t, uint64(3), stats.Samples)
	assert.Equal(t, uint64(2), stats.Dropped)
}

func TestSerialMux_Monitor_ReadError(t *testing.T) {
	port := NewTestableSerialPort()
	port.ReadError = errors.New("device unplugged")
	mux := NewSerialMux(port)

	err := mux.Monitor(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serial read failed")
	assert.Contains(t, err.Error(), "device unplugged")
}

func TestSerialMux_Monitor_ContextCancel(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)
	t.Cleanup(func() { mux.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestSerialMux_Close(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	done := make(chan error, 1)
	go func() { done <- mux.Monitor(context.Background()) }()

	require.NoError(t, mux.Close())
	select {
	case err := <-done:
		assert.NoError(t, err, "closing the mux is not a read failure")
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after Close")
	}

	_, ok := <-ch
	assert.False(t, ok, "subscriber channels are closed")
	assert.True(t, port.Closed)
	assert.Zero(t, mux.Stats().Subscribers)

	// second close is a no-op and does not reach the port
	port.CloseError = errors.New("already closed")
	assert.NoError(t, mux.Close())
}

func TestSerialMux_FramerOptions(t *testing.T) {
	port := NewTestableSerialPort()
	bad := smallFrame(42)
	bad[7] ^= 0xFF
	port.AddReadData(bad)
	port.AddReadData(smallFrame(43))

	var reported []error
	mux := NewSerialMux(port, WithFramerOptions(
		thinkgear.WithReporter(func(err error) { reported = append(reported, err) }),
	))
	_, ch := mux.Subscribe()
	require.NoError(t, mux.Monitor(context.Background()))

	assert.Equal(t, []thinkgear.Sample{thinkgear.RawSample(43)}, drain(ch))
	assert.Equal(t, uint64(1), mux.Stats().Framer.ChecksumErrors)
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], thinkgear.ErrChecksum)
}

func TestCollector(t *testing.T) {
	port := NewTestableSerialPort()
	for i := int16(0); i < 3; i++ {
		port.AddReadData(smallFrame(i))
	}
	mux := NewSerialMux(port, WithSubscriberBuffer(1))
	mux.Subscribe()
	require.NoError(t, mux.Monitor(context.Background()))

	c := NewCollector(mux, prometheus.Labels{"device": "test"})
	assert.Equal(t, 3, testutil.CollectAndCount(c))

	expected := `
# HELP eeg_serialmux_dropped_total Sample deliveries skipped because a subscriber channel was full
# TYPE eeg_serialmux_dropped_total counter
eeg_serialmux_dropped_total{device="test"} 2
# HELP eeg_serialmux_samples_total Decoded samples published to subscribers
# TYPE eeg_serialmux_samples_total counter
eeg_serialmux_samples_total{device="test"} 3
# HELP eeg_serialmux_subscribers Current number of subscribers
# TYPE eeg_serialmux_subscribers gauge
eeg_serialmux_subscribers{device="test"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}
