package summarizer

import (
	"fmt"
	"strings"
	"time"
)

// MarkdownFormatter renders a Summary as a Markdown report.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator sets the function used to translate headings and labels.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = t
	}
}

// WithVersion adds the program version to the report footer.
func WithVersion(version string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = version
	}
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	t := f.translate
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t("Playback Summary"))
	fmt.Fprintf(&b, "- %s: `%s`\n", t("Session"), s.SessionID)
	fmt.Fprintf(&b, "- %s: %s\n\n", t("Generated"), s.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "## %s\n\n", t("Media"))
	row := tableWriter(&b, t("Item"), t("Value"))
	row(t("File"), s.Media.Path)
	row(t("Container"), orNA(s.Media.Container, t))
	row(t("Duration"), formatDuration(s.Media.Duration))
	if s.Media.VideoCodec != "" {
		row(t("Video"), fmt.Sprintf("%s %dx%d", s.Media.VideoCodec, s.Media.Width, s.Media.Height))
		row(t("Keyframes"), fmt.Sprintf("%d", s.Media.Keyframes))
	} else {
		row(t("Video"), t("N/A"))
	}
	if s.Media.AudioCodec != "" {
		row(t("Audio"), fmt.Sprintf("%s %d ch %d Hz", s.Media.AudioCodec, s.Media.Channels, s.Media.SampleRate))
	} else {
		row(t("Audio"), t("N/A"))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Playback"))
	row = tableWriter(&b, t("Item"), t("Value"))
	row(t("Frames Presented"), fmt.Sprintf("%d", s.Playback.FramesPresented))
	row(t("Audio Buffers"), fmt.Sprintf("%d", s.Playback.AudioFrames))
	row(t("Scrubs"), fmt.Sprintf("%d", s.Playback.Scrubs))
	row(t("Underruns"), fmt.Sprintf("%d", s.Playback.Underruns))
	row(t("Restarts"), fmt.Sprintf("%d", s.Playback.Restarts))
	row(t("Position"), formatDuration(s.Playback.Position))
	row(t("Wall Time"), formatDuration(s.Playback.WallTime))
	row(t("Average FPS"), fmt.Sprintf("%.2f", s.Playback.AverageFPS))
	status := t("Stopped")
	if s.Playback.Completed {
		status = t("Completed")
	}
	row(t("Status"), status)
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Settings"))
	row = tableWriter(&b, t("Item"), t("Value"))
	row(t("Pool Size"), fmt.Sprintf("%d", s.Settings.PoolSize))
	row(t("Volume"), fmt.Sprintf("%.2f", s.Settings.Volume))
	row(t("Tick Rate"), fmt.Sprintf("%d Hz", s.Settings.TickRate))
	row(t("Max Steps per Tick"), fmt.Sprintf("%d", s.Settings.MaxStepsPerTick))
	row(t("Audio Device"), orNA(s.Settings.AudioDevice, t))
	loop := t("No")
	if s.Settings.Loop {
		loop = t("Yes")
	}
	row(t("Loop"), loop)

	if f.version != "" {
		fmt.Fprintf(&b, "\n---\n\n%s %s\n", t("Generated by replayclipper"), f.version)
	}
	return b.String()
}

func tableWriter(b *strings.Builder, left, right string) func(k, v string) {
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", left, right)
	return func(k, v string) {
		fmt.Fprintf(b, "| %s | %s |\n", k, v)
	}
}

func orNA(s string, t func(string) string) string {
	if s == "" {
		return t("N/A")
	}
	return s
}

// formatDuration renders d as seconds with millisecond precision.
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.3f s", d.Seconds())
}
