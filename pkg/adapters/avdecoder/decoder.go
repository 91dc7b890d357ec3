// Package avdecoder implements ports.Decoder on top of the FFmpeg libraries
// through go-astiav.
package avdecoder

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/user/replayclipper/pkg/ports"
)

var (
	// ErrNotOpen is returned when decoding without an open source.
	ErrNotOpen = errors.New("avdecoder: not open")
	// ErrNoStreams is returned when a source has neither video nor audio.
	ErrNoStreams = errors.New("avdecoder: no audio or video stream")
)

// noPTS is AV_NOPTS_VALUE.
const noPTS = math.MinInt64

func init() {
	astiav.SetLogLevel(astiav.LogLevelQuiet)
}

// stream is one selected elementary stream and its codec.
type stream struct {
	kind     ports.StreamFilter
	index    int
	timeBase ports.Rational
	cc       *astiav.CodecContext
	lastPTS  int64
}

// scaleInput is the source geometry a scale context was built for.
type scaleInput struct {
	width, height int
	format        astiav.PixelFormat
}

// Decoder implements ports.Decoder with libavformat and libavcodec.
type Decoder struct {
	fc      *astiav.FormatContext
	pkt     *astiav.Packet
	frame   *astiav.Frame
	convert *astiav.Frame

	video *stream
	audio *stream

	// stream whose codec may still hold frames from the last packet
	draining *stream
	// stream that refused pkt with EAGAIN; pkt is resent once it is drained
	resend *stream
	// streams flushed with a nil packet after the container ended
	tail []*stream
	eof  bool

	sws      *astiav.SoftwareScaleContext
	swsInput scaleInput
	swr *astiav.SoftwareResampleContext

	buf      []byte
	duration time.Duration
}

// New creates a Decoder. Nothing is allocated until Open.
func New() *Decoder {
	return &Decoder{}
}

// Open implements ports.Decoder.
func (d *Decoder) Open(path string) error {
	if d.fc != nil {
		d.Close()
	}

	fc := astiav.AllocFormatContext()
	if fc == nil {
		return errors.New("avdecoder: allocate format context")
	}
	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return fmt.Errorf("open input: %w", err)
	}
	d.fc = fc

	if err := fc.FindStreamInfo(nil); err != nil {
		d.Close()
		return fmt.Errorf("find stream info: %w", err)
	}

	for _, s := range fc.Streams() {
		var kind ports.StreamFilter
		switch s.CodecParameters().MediaType() {
		case astiav.MediaTypeVideo:
			if d.video != nil {
				continue
			}
			kind = ports.StreamVideo
		case astiav.MediaTypeAudio:
			if d.audio != nil {
				continue
			}
			kind = ports.StreamAudio
		default:
			continue
		}

		st, err := openStream(s, kind)
		if err != nil {
			d.Close()
			return err
		}
		if kind == ports.StreamVideo {
			d.video = st
		} else {
			d.audio = st
		}
	}
	if d.video == nil && d.audio == nil {
		d.Close()
		return ErrNoStreams
	}

	d.pkt = astiav.AllocPacket()
	d.frame = astiav.AllocFrame()
	d.convert = astiav.AllocFrame()
	if dur := fc.Duration(); dur > 0 {
		d.duration = time.Duration(dur) * time.Microsecond
	}
	return nil
}

func openStream(s *astiav.Stream, kind ports.StreamFilter) (*stream, error) {
	params := s.CodecParameters()
	codec := astiav.FindDecoder(params.CodecID())
	if codec == nil {
		return nil, fmt.Errorf("avdecoder: no decoder for codec %v", params.CodecID())
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("avdecoder: allocate codec context")
	}
	if err := params.ToCodecContext(cc); err != nil {
		cc.Free()
		return nil, fmt.Errorf("copy codec parameters: %w", err)
	}
	if err := cc.Open(codec, nil); err != nil {
		cc.Free()
		return nil, fmt.Errorf("open codec: %w", err)
	}

	tb := s.TimeBase()
	return &stream{
		kind:     kind,
		index:    s.Index(),
		timeBase: ports.Rational{Num: int64(tb.Num()), Den: int64(tb.Den())},
		cc:       cc,
	}, nil
}

func (d *Decoder) byIndex(i int) *stream {
	switch {
	case d.video != nil && d.video.index == i:
		return d.video
	case d.audio != nil && d.audio.index == i:
		return d.audio
	}
	return nil
}

// NextCodedFrame implements ports.Decoder.
func (d *Decoder) NextCodedFrame(filter ports.StreamFilter) (ports.RawFrame, error) {
	if d.fc == nil {
		return ports.RawFrame{}, ErrNotOpen
	}

	for {
		if d.draining != nil {
			st := d.draining
			err := st.cc.ReceiveFrame(d.frame)
			switch {
			case err == nil:
				return d.export(st)
			case errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof):
				d.draining = nil
			default:
				d.draining = nil
				return ports.RawFrame{}, fmt.Errorf("receive frame: %w", err)
			}
		}

		if st := d.resend; st != nil {
			d.resend = nil
			err := st.cc.SendPacket(d.pkt)
			d.pkt.Unref()
			if err != nil {
				return ports.RawFrame{}, fmt.Errorf("resend packet: %w", err)
			}
			d.draining = st
			continue
		}

		if d.eof {
			if len(d.tail) == 0 {
				return ports.RawFrame{}, io.EOF
			}
			d.draining = d.tail[0]
			d.tail = d.tail[1:]
			continue
		}

		if err := d.fc.ReadFrame(d.pkt); err != nil {
			if !errors.Is(err, astiav.ErrEof) {
				return ports.RawFrame{}, fmt.Errorf("read frame: %w", err)
			}
			d.eof = true
			for _, st := range []*stream{d.video, d.audio} {
				if st != nil && filter.Has(st.kind) && st.cc.SendPacket(nil) == nil {
					d.tail = append(d.tail, st)
				}
			}
			continue
		}

		st := d.byIndex(d.pkt.StreamIndex())
		if st == nil || !filter.Has(st.kind) {
			d.pkt.Unref()
			continue
		}
		err := st.cc.SendPacket(d.pkt)
		if errors.Is(err, astiav.ErrEagain) {
			d.resend = st
			d.draining = st
			continue
		}
		d.pkt.Unref()
		if err != nil {
			return ports.RawFrame{}, fmt.Errorf("send packet: %w", err)
		}
		d.draining = st
	}
}

// export copies the decoded frame into d.buf. The returned planes alias
// d.buf and stay valid until the next call.
func (d *Decoder) export(st *stream) (ports.RawFrame, error) {
	defer d.frame.Unref()

	pts := d.frame.Pts()
	if pts == noPTS {
		pts = st.lastPTS
	}
	st.lastPTS = pts

	if st.kind == ports.StreamVideo {
		v, err := d.exportVideo(pts, st.timeBase)
		if err != nil {
			return ports.RawFrame{}, err
		}
		return ports.RawFrame{Video: v}, nil
	}
	a, err := d.exportAudio(pts, st.timeBase)
	if err != nil {
		return ports.RawFrame{}, err
	}
	return ports.RawFrame{Audio: a}, nil
}

func (d *Decoder) exportVideo(pts int64, tb ports.Rational) (*ports.RawVideo, error) {
	src := d.frame
	w, h := src.Width(), src.Height()

	format := pixelFormat(src.PixelFormat())
	if format == ports.PixelFormatUnknown {
		if err := d.scaleToRGBA(src); err != nil {
			return nil, err
		}
		defer d.convert.Unref()
		src = d.convert
		format = ports.PixelFormatRGBA
	}

	size, err := src.ImageBufferSize(1)
	if err != nil {
		return nil, fmt.Errorf("image buffer size: %w", err)
	}
	buf := d.scratch(size)
	if _, err := src.ImageCopyToBuffer(buf, 1); err != nil {
		return nil, fmt.Errorf("copy image: %w", err)
	}

	v := &ports.RawVideo{Width: w, Height: h, Format: format, PTS: pts, TimeBase: tb}
	cw, ch := (w+1)/2, (h+1)/2
	switch format {
	case ports.PixelFormatYUV420P:
		y, u := w*h, cw*ch
		v.Planes = [][]byte{buf[:y], buf[y : y+u], buf[y+u : y+2*u]}
		v.Strides = []int{w, cw, cw}
	case ports.PixelFormatNV12:
		y := w * h
		v.Planes = [][]byte{buf[:y], buf[y : y+2*cw*ch]}
		v.Strides = []int{w, 2 * cw}
	case ports.PixelFormatRGB24:
		v.Planes = [][]byte{buf}
		v.Strides = []int{3 * w}
	case ports.PixelFormatRGBA:
		v.Planes = [][]byte{buf}
		v.Strides = []int{4 * w}
	}
	return v, nil
}

func (d *Decoder) scaleToRGBA(src *astiav.Frame) error {
	w, h := src.Width(), src.Height()
	in := scaleInput{width: w, height: h, format: src.PixelFormat()}
	if d.sws != nil && d.swsInput != in {
		d.sws.Free()
		d.sws = nil
	}
	if d.sws == nil {
		sws, err := astiav.CreateSoftwareScaleContext(w, h, src.PixelFormat(), w, h, astiav.PixelFormatRgba,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBilinear))
		if err != nil {
			return fmt.Errorf("create scale context: %w", err)
		}
		d.sws = sws
		d.swsInput = in
	}
	d.convert.SetWidth(w)
	d.convert.SetHeight(h)
	d.convert.SetPixelFormat(astiav.PixelFormatRgba)
	if err := d.convert.AllocBuffer(1); err != nil {
		return fmt.Errorf("allocate frame: %w", err)
	}
	if err := d.sws.ScaleFrame(src, d.convert); err != nil {
		d.convert.Unref()
		return fmt.Errorf("scale frame: %w", err)
	}
	return nil
}

func (d *Decoder) exportAudio(pts int64, tb ports.Rational) (*ports.RawAudio, error) {
	src := d.frame
	format := sampleFormat(src.SampleFormat())
	if format == ports.SampleFormatUnknown {
		if d.swr == nil {
			d.swr = astiav.AllocSoftwareResampleContext()
		}
		d.convert.SetChannelLayout(src.ChannelLayout())
		d.convert.SetSampleRate(src.SampleRate())
		d.convert.SetSampleFormat(astiav.SampleFormatFlt)
		if err := d.swr.ConvertFrame(src, d.convert); err != nil {
			d.convert.Unref()
			return nil, fmt.Errorf("resample frame: %w", err)
		}
		defer d.convert.Unref()
		src = d.convert
		format = ports.SampleFormatFLT
	}

	size, err := src.SamplesBufferSize(1)
	if err != nil {
		return nil, fmt.Errorf("samples buffer size: %w", err)
	}
	buf := d.scratch(size)
	if _, err := src.SamplesCopyToBuffer(buf, 1); err != nil {
		return nil, fmt.Errorf("copy samples: %w", err)
	}

	channels := src.ChannelLayout().Channels()
	if channels <= 0 {
		return nil, fmt.Errorf("avdecoder: audio frame without channels")
	}
	a := &ports.RawAudio{
		Channels:   channels,
		SampleRate: src.SampleRate(),
		Samples:    src.NbSamples(),
		Format:     format,
		PTS:        pts,
		TimeBase:   tb,
	}
	switch format {
	case ports.SampleFormatFLTP, ports.SampleFormatS16P:
		plane := len(buf) / channels
		for c := 0; c < channels; c++ {
			a.Planes = append(a.Planes, buf[c*plane:(c+1)*plane])
		}
	default:
		a.Planes = [][]byte{buf}
	}
	return a, nil
}

func (d *Decoder) scratch(size int) []byte {
	if cap(d.buf) < size {
		d.buf = make([]byte, size)
	}
	return d.buf[:size]
}

// SeekBackward implements ports.Decoder.
func (d *Decoder) SeekBackward(ts time.Duration) error {
	if d.fc == nil {
		return ErrNotOpen
	}
	if err := d.fc.SeekFrame(-1, ts.Microseconds(), astiav.NewSeekFlags(astiav.SeekFlagBackward)); err != nil {
		return fmt.Errorf("seek to %v: %w", ts, err)
	}
	d.eof = false
	d.tail = nil
	d.dropPending()
	return nil
}

// Flush implements ports.Decoder.
func (d *Decoder) Flush() {
	for _, st := range []*stream{d.video, d.audio} {
		if st != nil {
			st.cc.FlushBuffers()
		}
	}
	d.dropPending()
}

// dropPending forgets a half-consumed packet after a seek or flush.
func (d *Decoder) dropPending() {
	if d.resend != nil {
		d.pkt.Unref()
		d.resend = nil
	}
	d.draining = nil
}

// Duration implements ports.Decoder.
func (d *Decoder) Duration() time.Duration {
	return d.duration
}

// Channels implements ports.Decoder.
func (d *Decoder) Channels() int {
	if d.audio == nil {
		return 0
	}
	return d.audio.cc.ChannelLayout().Channels()
}

// SampleRate implements ports.Decoder.
func (d *Decoder) SampleRate() int {
	if d.audio == nil {
		return 0
	}
	return d.audio.cc.SampleRate()
}

// Close implements ports.Decoder.
func (d *Decoder) Close() error {
	for _, st := range []*stream{d.video, d.audio} {
		if st != nil {
			st.cc.Free()
		}
	}
	d.video, d.audio = nil, nil
	d.draining, d.resend, d.tail, d.eof = nil, nil, nil, false

	if d.sws != nil {
		d.sws.Free()
		d.sws = nil
		d.swsInput = scaleInput{}
	}
	if d.swr != nil {
		d.swr.Free()
		d.swr = nil
	}
	if d.frame != nil {
		d.frame.Free()
		d.frame = nil
	}
	if d.convert != nil {
		d.convert.Free()
		d.convert = nil
	}
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
		d.fc = nil
	}
	d.duration = 0
	return nil
}

func pixelFormat(f astiav.PixelFormat) ports.PixelFormat {
	switch f {
	case astiav.PixelFormatYuv420P, astiav.PixelFormatYuvj420P:
		return ports.PixelFormatYUV420P
	case astiav.PixelFormatNv12:
		return ports.PixelFormatNV12
	case astiav.PixelFormatRgb24:
		return ports.PixelFormatRGB24
	case astiav.PixelFormatRgba:
		return ports.PixelFormatRGBA
	}
	return ports.PixelFormatUnknown
}

func sampleFormat(f astiav.SampleFormat) ports.SampleFormat {
	switch f {
	case astiav.SampleFormatFlt:
		return ports.SampleFormatFLT
	case astiav.SampleFormatFltp:
		return ports.SampleFormatFLTP
	case astiav.SampleFormatS16:
		return ports.SampleFormatS16
	case astiav.SampleFormatS16P:
		return ports.SampleFormatS16P
	}
	return ports.SampleFormatUnknown
}

// Ensure Decoder implements ports.Decoder
var _ ports.Decoder = (*Decoder)(nil)
