// Package mp4probe reads track metadata from ISO-BMFF (MP4/MOV) files.
package mp4probe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/replayclipper/pkg/ports"
)

// ErrNoTracks is returned when the file has neither a video nor an audio track.
var ErrNoTracks = errors.New("mp4probe: no audio or video track")

// codecNames maps sample entry types to codec names.
var codecNames = map[string]string{
	"avc1": "h264",
	"avc3": "h264",
	"hvc1": "hevc",
	"hev1": "hevc",
	"av01": "av1",
	"vp08": "vp8",
	"vp09": "vp9",
	"mp4a": "aac",
	"Opus": "opus",
	"ac-3": "ac3",
	"ec-3": "eac3",
	"fLaC": "flac",
}

// Prober implements ports.Prober for MP4 files.
type Prober struct{}

// New creates a new Prober.
func New() *Prober {
	return &Prober{}
}

// Probe implements ports.Prober.
func (p *Prober) Probe(path string) (ports.MediaInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return p.ProbeReader(f, path)
}

// ProbeReader inspects an MP4 stream. path is only recorded in the result.
func (p *Prober) ProbeReader(r io.ReadSeeker, path string) (ports.MediaInfo, error) {
	file, err := mp4.DecodeFile(r)
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("decode mp4: %w", err)
	}

	moov := file.Moov
	if moov == nil && file.Init != nil {
		moov = file.Init.Moov
	}
	if moov == nil {
		return ports.MediaInfo{}, ErrNoTracks
	}

	info := ports.MediaInfo{
		Path:      path,
		Container: ports.ContainerMP4,
	}
	if moov.Mvhd != nil && moov.Mvhd.Timescale > 0 {
		info.Duration = ticks(moov.Mvhd.Duration, moov.Mvhd.Timescale)
	}

	for _, trak := range moov.Traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil {
			continue
		}
		switch trak.Mdia.Hdlr.HandlerType {
		case "vide":
			if info.Video == nil {
				info.Video = videoTrack(file, moov, trak)
			}
		case "soun":
			if info.Audio == nil {
				info.Audio = audioTrack(file, moov, trak)
			}
		}
	}

	if info.Video == nil && info.Audio == nil {
		return ports.MediaInfo{}, ErrNoTracks
	}
	if info.Video != nil && info.Video.Duration > info.Duration {
		info.Duration = info.Video.Duration
	}
	if info.Audio != nil && info.Audio.Duration > info.Duration {
		info.Duration = info.Audio.Duration
	}
	return info, nil
}

func videoTrack(file *mp4.File, moov *mp4.MoovBox, trak *mp4.TrakBox) *ports.VideoTrackInfo {
	v := &ports.VideoTrackInfo{}
	if trak.Tkhd != nil {
		v.Width = int(trak.Tkhd.Width >> 16)
		v.Height = int(trak.Tkhd.Height >> 16)
	}

	if entry := sampleEntry(trak); entry != nil {
		v.Codec = codecName(entry.Type())
		if vse, ok := entry.(*mp4.VisualSampleEntryBox); ok && vse.Width > 0 {
			v.Width = int(vse.Width)
			v.Height = int(vse.Height)
		}
	}

	st := scanTrack(file, moov, trak)
	v.Duration = st.duration
	v.Keyframes = st.syncSamples
	return v
}

func audioTrack(file *mp4.File, moov *mp4.MoovBox, trak *mp4.TrakBox) *ports.AudioTrackInfo {
	a := &ports.AudioTrackInfo{}
	if trak.Mdia.Mdhd != nil {
		a.SampleRate = int(trak.Mdia.Mdhd.Timescale)
	}

	if entry := sampleEntry(trak); entry != nil {
		a.Codec = codecName(entry.Type())
		if ase, ok := entry.(*mp4.AudioSampleEntryBox); ok {
			a.Channels = int(ase.ChannelCount)
			if ase.SampleRate > 0 {
				a.SampleRate = int(ase.SampleRate)
			}
		}
	}

	a.Duration = scanTrack(file, moov, trak).duration
	return a
}

func sampleEntry(trak *mp4.TrakBox) mp4.Box {
	if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
		return nil
	}
	children := trak.Mdia.Minf.Stbl.Stsd.Children
	if len(children) == 0 {
		return nil
	}
	return children[0]
}

func codecName(fourcc string) string {
	if name, ok := codecNames[fourcc]; ok {
		return name
	}
	return fourcc
}

type trackStats struct {
	duration    time.Duration
	syncSamples int
}

// scanTrack reads duration and sync sample count from the sample table,
// falling back to the fragments of a fragmented file.
func scanTrack(file *mp4.File, moov *mp4.MoovBox, trak *mp4.TrakBox) trackStats {
	var st trackStats
	mdhd := trak.Mdia.Mdhd
	if mdhd == nil || mdhd.Timescale == 0 {
		return st
	}
	st.duration = ticks(mdhd.Duration, mdhd.Timescale)

	if stbl := trak.Mdia.Minf.Stbl; stbl != nil && stbl.Stsz != nil {
		switch {
		case stbl.Stss != nil:
			st.syncSamples = len(stbl.Stss.SampleNumber)
		default:
			// no stss: every sample is a sync sample
			st.syncSamples = int(stbl.Stsz.SampleNumber)
		}
	}

	if !file.IsFragmented() || trak.Tkhd == nil {
		return st
	}

	trackID := trak.Tkhd.TrackID
	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var total uint64
	var syncs int
	for _, seg := range file.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil || len(frag.Moof.Trafs) != 1 || frag.Moof.Traf.Tfhd.TrackID != trackID {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				continue
			}
			for i := range samples {
				total += uint64(samples[i].Dur)
				if samples[i].IsSync() {
					syncs++
				}
			}
		}
	}
	if total > 0 {
		st.duration = ticks(total, mdhd.Timescale)
		st.syncSamples = syncs
	}
	return st
}

func ticks(n uint64, timescale uint32) time.Duration {
	secs := n / uint64(timescale)
	rem := n % uint64(timescale)
	return time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(timescale)
}

// Ensure Prober implements ports.Prober
var _ ports.Prober = (*Prober)(nil)
