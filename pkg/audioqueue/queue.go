// Package audioqueue buffers decoded audio for a real-time output device.
//
// The device pulls data through Callback on its own thread. The only state
// Callback shares with the rest of the program is the FIFO mutex, and the
// locked region only copies bytes that are already decoded.
package audioqueue

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// DefaultVolume is the gain applied to every sample until SetVolumeScale is called.
const DefaultVolume float32 = 0.15

var (
	// ErrAlreadyOpen is returned by OpenStream when a stream is open.
	ErrAlreadyOpen = errors.New("audioqueue: stream already open")
	// ErrNotOpen is returned when playing without an open stream.
	ErrNotOpen = errors.New("audioqueue: stream not open")
	// ErrInvalidFormat is returned for a non-positive channel count or sample rate.
	ErrInvalidFormat = errors.New("audioqueue: invalid stream format")
)

// Queue is an unbounded FIFO of audio buffers drained by a device callback.
type Queue struct {
	device ports.AudioDevice
	logger ports.Logger

	// guards fifo and pending; shared with the device thread
	mu      sync.Mutex
	fifo    []ByteStream
	pending int

	// consumer-side stream state
	stateMu    sync.Mutex
	open       bool
	sampleRate int

	channels  atomic.Int32
	volume    atomic.Uint32
	underruns atomic.Uint64
	faulted   atomic.Bool
}

// New creates a Queue that plays through device.
func New(device ports.AudioDevice, logger ports.Logger) *Queue {
	q := &Queue{
		device: device,
		logger: logger,
	}
	q.SetVolumeScale(DefaultVolume)
	return q
}

// OpenStream opens the device for interleaved float32 output.
func (q *Queue) OpenStream(channels, sampleRate int) error {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()

	if q.open {
		return ErrAlreadyOpen
	}
	if channels <= 0 || sampleRate <= 0 {
		return fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidFormat, channels, sampleRate)
	}

	q.channels.Store(int32(channels))
	if err := q.device.Open(channels, sampleRate, q.Callback); err != nil {
		q.channels.Store(0)
		return fmt.Errorf("open audio device: %w", err)
	}
	q.open = true
	q.sampleRate = sampleRate
	q.faulted.Store(false)
	q.underruns.Store(0)

	q.logger.Debug("Audio stream opened: %d channels at %d Hz", channels, sampleRate)
	return nil
}

// Play starts the device pulling data.
func (q *Queue) Play() error {
	return q.start()
}

// Resume restarts a paused stream.
func (q *Queue) Resume() error {
	return q.start()
}

func (q *Queue) start() error {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if !q.open {
		return ErrNotOpen
	}
	if err := q.device.Start(); err != nil {
		return fmt.Errorf("start audio device: %w", err)
	}
	return nil
}

// Pause stops the device pulling data. Buffered audio is kept.
func (q *Queue) Pause() error {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	if !q.open {
		return ErrNotOpen
	}
	if err := q.device.Stop(); err != nil {
		return fmt.Errorf("stop audio device: %w", err)
	}
	return nil
}

// CloseStream stops and closes the device and drops all buffered audio.
func (q *Queue) CloseStream() error {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	defer q.ClearQueue()

	if !q.open {
		return nil
	}
	q.open = false
	q.sampleRate = 0

	var errs []error
	if err := q.device.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop audio device: %w", err))
	}
	if err := q.device.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audio device: %w", err))
	}
	q.logger.Debug("Audio stream closed after %d underruns", q.underruns.Load())
	return errors.Join(errs...)
}

// IsOpen reports whether a stream is open.
func (q *Queue) IsOpen() bool {
	q.stateMu.Lock()
	defer q.stateMu.Unlock()
	return q.open
}

// EnqueueOnce appends one buffer of interleaved float32 samples. The buffer
// is retained, not copied, and must not be modified afterwards.
func (q *Queue) EnqueueOnce(samples []byte) {
	if len(samples) == 0 {
		return
	}
	q.mu.Lock()
	q.fifo = append(q.fifo, NewByteStream(samples))
	q.pending += len(samples)
	q.mu.Unlock()
}

// ClearQueue drops all buffered audio.
func (q *Queue) ClearQueue() {
	q.mu.Lock()
	clear(q.fifo)
	q.fifo = q.fifo[:0]
	q.pending = 0
	q.mu.Unlock()
}

// Pending returns how many bytes are buffered.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// SetVolumeScale sets the gain applied to every sample. Negative values mute.
func (q *Queue) SetVolumeScale(v float32) {
	q.volume.Store(math.Float32bits(max(v, 0)))
}

// VolumeScale returns the current gain.
func (q *Queue) VolumeScale() float32 {
	return math.Float32frombits(q.volume.Load())
}

// Underruns returns how many callbacks had to pad with silence.
func (q *Queue) Underruns() uint64 {
	return q.underruns.Load()
}

// Faulted reports whether the device delivered a non-zero status. The
// stream must be closed and reopened to recover.
func (q *Queue) Faulted() bool {
	return q.faulted.Load()
}

// Callback fills out with frameCount frames from the FIFO, pads with silence
// when the FIFO runs dry and applies the volume scale. It does not allocate.
func (q *Queue) Callback(out []byte, frameCount int, status ports.StreamStatus) int {
	if status != ports.StatusOK {
		q.faulted.Store(true)
		return ports.CallbackAbort
	}

	n := frameCount * int(q.channels.Load()) * media.BytesPerSample
	n = min(max(n, 0), len(out))
	buf := out[:n]

	q.mu.Lock()
	written := 0
	for written < n && len(q.fifo) > 0 {
		front := &q.fifo[0]
		written += front.Fetch(buf[written:])
		if front.Remaining() == 0 {
			q.fifo[0] = ByteStream{}
			q.fifo = q.fifo[1:]
		}
	}
	q.pending -= written
	q.mu.Unlock()

	if written < n {
		clear(buf[written:])
		q.underruns.Add(1)
	}
	clear(out[n:])

	applyGain(buf, q.VolumeScale())
	return ports.CallbackContinue
}

func applyGain(buf []byte, gain float32) {
	if gain == 1 {
		return
	}
	for i := 0; i+media.BytesPerSample <= len(buf); i += media.BytesPerSample {
		s := math.Float32frombits(binary.LittleEndian.Uint32(buf[i:]))
		binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(s*gain))
	}
}
