package ports

import "time"

// Container identifies a media container family.
type Container string

const (
	ContainerMP4      Container = "mp4"
	ContainerMatroska Container = "matroska"
	ContainerUnknown  Container = "unknown"
)

// VideoTrackInfo describes the first video track of a container.
type VideoTrackInfo struct {
	Codec     string
	Width     int
	Height    int
	Keyframes int
	Duration  time.Duration
}

// AudioTrackInfo describes the first audio track of a container.
type AudioTrackInfo struct {
	Codec      string
	Channels   int
	SampleRate int
	Duration   time.Duration
}

// MediaInfo is the metadata a Prober extracts without decoding.
type MediaInfo struct {
	Path      string
	Container Container
	Duration  time.Duration
	Video     *VideoTrackInfo
	Audio     *AudioTrackInfo
}

// Prober reads container metadata.
type Prober interface {
	// Probe inspects the file at path.
	Probe(path string) (MediaInfo, error)
}
