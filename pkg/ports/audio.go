package ports

// StreamStatus is the condition the audio subsystem reports with each callback.
// Zero means the stream is healthy.
type StreamStatus int

const (
	// StatusOK means no fault.
	StatusOK StreamStatus = 0
	// StatusUnderflow means the device ran out of output data.
	StatusUnderflow StreamStatus = 1
	// StatusOverflow means input data was lost.
	StatusOverflow StreamStatus = 2
)

const (
	// CallbackContinue keeps the stream running.
	CallbackContinue = 0
	// CallbackAbort terminates the stream.
	CallbackAbort = -1
)

// AudioCallback fills out with frameCount frames of interleaved float32
// samples. It runs on the audio subsystem's own thread and must not block.
type AudioCallback func(out []byte, frameCount int, status StreamStatus) int

// AudioDevice abstracts a real-time audio output.
type AudioDevice interface {
	// Open prepares an output stream that pulls data through cb.
	Open(channels, sampleRate int, cb AudioCallback) error

	// Start begins invoking the callback.
	Start() error

	// Stop pauses the callback. The stream stays open.
	Stop() error

	// Close stops and releases the stream.
	Close() error
}
