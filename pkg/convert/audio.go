package convert

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// ConvertAudio converts raw samples to interleaved float32 little-endian.
func (c *Converter) ConvertAudio(raw *ports.RawAudio) (media.AudioFrame, error) {
	ch, n := raw.Channels, raw.Samples
	if ch <= 0 || raw.SampleRate <= 0 || n < 0 {
		return media.AudioFrame{}, fmt.Errorf("%w: %d channels at %d Hz, %d samples",
			ErrInvalidDimensions, ch, raw.SampleRate, n)
	}

	out := make([]byte, n*ch*media.BytesPerSample)

	switch raw.Format {
	case ports.SampleFormatFLT:
		p, err := samplePlane(raw, 0, n*ch*4)
		if err != nil {
			return media.AudioFrame{}, err
		}
		copy(out, p)

	case ports.SampleFormatFLTP:
		for k := 0; k < ch; k++ {
			p, err := samplePlane(raw, k, n*4)
			if err != nil {
				return media.AudioFrame{}, err
			}
			for i := 0; i < n; i++ {
				copy(out[(i*ch+k)*4:(i*ch+k)*4+4], p[i*4:])
			}
		}

	case ports.SampleFormatS16:
		p, err := samplePlane(raw, 0, n*ch*2)
		if err != nil {
			return media.AudioFrame{}, err
		}
		for i := 0; i < n*ch; i++ {
			putS16(out[i*4:], p[i*2:])
		}

	case ports.SampleFormatS16P:
		for k := 0; k < ch; k++ {
			p, err := samplePlane(raw, k, n*2)
			if err != nil {
				return media.AudioFrame{}, err
			}
			for i := 0; i < n; i++ {
				putS16(out[(i*ch+k)*4:], p[i*2:])
			}
		}

	default:
		return media.AudioFrame{}, fmt.Errorf("%w: sample format %s", ErrUnsupportedFormat, raw.Format)
	}

	return media.AudioFrame{
		Channels:   ch,
		SampleRate: raw.SampleRate,
		Timestamp:  raw.Timestamp(),
		Samples:    out,
	}, nil
}

func samplePlane(raw *ports.RawAudio, i, need int) ([]byte, error) {
	if i >= len(raw.Planes) {
		return nil, fmt.Errorf("%w: missing plane %d", ErrShortBuffer, i)
	}
	if len(raw.Planes[i]) < need {
		return nil, fmt.Errorf("%w: plane %d has %d bytes, need %d", ErrShortBuffer, i, len(raw.Planes[i]), need)
	}
	return raw.Planes[i], nil
}

func putS16(dst, src []byte) {
	s := int16(binary.LittleEndian.Uint16(src))
	binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(s)/32768))
}
