package main

import (
	"fmt"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/replayclipper/pkg/adapters/smartprobe"
	"github.com/user/replayclipper/pkg/ports"
)

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Show container metadata without decoding"),
		ArgsUsage: "FILE...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit(l10n.T("probe requires at least one FILE"), 2)
			}
			prober := smartprobe.New()
			failed := 0
			for i, path := range c.Args().Slice() {
				if i > 0 {
					fmt.Println()
				}
				info, err := prober.Probe(path)
				if err != nil {
					fmt.Println(styles.Error.Render(fmt.Sprintf("%s: %s", path, err)))
					failed++
					continue
				}
				fmt.Println(renderInfo(info))
			}
			if failed > 0 {
				return cli.Exit(l10n.F("%d of %d files could not be probed", failed, c.NArg()), 1)
			}
			return nil
		},
	}
}

func renderInfo(info ports.MediaInfo) string {
	out := styles.Title.Render(info.Path) + "\n"
	out += field(l10n.T("Container"), string(info.Container)) + "\n"
	out += field(l10n.T("Duration"), info.Duration.Round(time.Millisecond).String())
	if v := info.Video; v != nil {
		out += "\n" + field(l10n.T("Video"), fmt.Sprintf("%s %dx%d", v.Codec, v.Width, v.Height))
		if v.Keyframes > 0 {
			out += styles.Dim.Render(l10n.F(" (%d keyframes)", v.Keyframes))
		}
	}
	if a := info.Audio; a != nil {
		out += "\n" + field(l10n.T("Audio"), fmt.Sprintf("%s %dch %dHz", a.Codec, a.Channels, a.SampleRate))
	}
	return out
}
