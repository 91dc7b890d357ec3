package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/user/replayclipper/pkg/adapters/avdecoder"
	"github.com/user/replayclipper/pkg/adapters/beepdevice"
	"github.com/user/replayclipper/pkg/adapters/nulldevice"
	"github.com/user/replayclipper/pkg/adapters/nullpresenter"
	"github.com/user/replayclipper/pkg/adapters/osfilesystem"
	"github.com/user/replayclipper/pkg/adapters/smartprobe"
	"github.com/user/replayclipper/pkg/adapters/snapshot"
	"github.com/user/replayclipper/pkg/config"
	"github.com/user/replayclipper/pkg/host"
	"github.com/user/replayclipper/pkg/ports"
	"github.com/user/replayclipper/pkg/session"
	"github.com/user/replayclipper/pkg/summarizer"
)

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     l10n.T("Play a video file"),
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "seek", Aliases: []string{"s"}, Usage: l10n.T("Start position")},
			&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: l10n.T("Stop after this much media time (0 plays to the end)")},
			&cli.Float64Flag{Name: "volume", Usage: l10n.T("Output volume (overrides config)")},
			&cli.StringFlag{Name: "audio", Usage: l10n.T("Audio device: beep or null (overrides config)")},
			&cli.IntFlag{Name: "width", Usage: l10n.T("Output width (overrides config)")},
			&cli.IntFlag{Name: "height", Usage: l10n.T("Output height (overrides config)")},
			&cli.StringFlag{Name: "snapshots", Usage: l10n.T("Directory for PNG snapshots")},
			&cli.StringFlag{Name: "summary", Usage: l10n.T("Write a Markdown playback summary to this file")},
			&cli.BoolFlag{Name: "loop", Usage: l10n.T("Restart from the beginning when playback ends")},
		},
		Action: runPlay,
	}
}

func runPlay(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(l10n.T("play requires exactly one FILE"), 2)
	}
	path := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyPlayFlags(c, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := newLogger(c, cfg)
	log.Info(l10n.F("replayclipper version %s", version))

	fs := osfilesystem.New()
	presenter, err := newPresenter(fs, cfg)
	if err != nil {
		return err
	}

	sess := session.New(
		cfg.ToSessionConfig(path, c.Duration("seek"), c.Duration("duration")),
		avdecoder.New(),
		newDevice(cfg),
		presenter,
		log,
	)
	h := host.New(host.Options{TickRate: cfg.TickRate}, log.WithComponent("host"))

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return h.Run(gctx, sess)
	})
	g.Go(func() error {
		select {
		case <-sigCh:
			log.Warn(l10n.T("Interrupted, shutting down..."))
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	runErr := g.Wait()

	result := sess.Result()
	printResult(result)

	if out := c.String("summary"); out != "" {
		if err := writeSummary(fs, out, path, cfg, result, log); err != nil {
			log.Error(l10n.F("Failed to write summary: %s", err))
		} else {
			log.Info(l10n.F("Summary written to %s", out))
		}
	}

	return runErr
}

func applyPlayFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("volume") {
		cfg.Volume = float32(c.Float64("volume"))
	}
	if c.IsSet("audio") {
		cfg.Audio.Device = c.String("audio")
	}
	if c.IsSet("width") {
		cfg.Video.Width = c.Int("width")
	}
	if c.IsSet("height") {
		cfg.Video.Height = c.Int("height")
	}
	if c.IsSet("snapshots") {
		cfg.Snapshot.Dir = c.String("snapshots")
	}
	if c.Bool("loop") {
		cfg.Loop = true
	}
}

func newDevice(cfg config.Config) ports.AudioDevice {
	if cfg.Audio.Device == config.DeviceNull {
		return nulldevice.New(cfg.Audio.BufferFrames)
	}
	return beepdevice.New(cfg.Audio.SampleRate, cfg.Audio.BufferFrames)
}

func newPresenter(fs ports.FileSystem, cfg config.Config) (ports.Presenter, error) {
	if cfg.Snapshot.Dir == "" {
		return nullpresenter.New(), nil
	}
	return snapshot.New(fs, snapshot.Options{
		Dir:   cfg.Snapshot.Dir,
		Every: cfg.Snapshot.Every,
		Width: cfg.Snapshot.Width,
	})
}

func printResult(r session.Result) {
	fmt.Println(styles.Title.Render(l10n.T("Playback")))
	fmt.Println(field(l10n.T("Frames"), fmt.Sprintf("%d", r.Presented)))
	fmt.Println(field(l10n.T("Audio"), fmt.Sprintf("%d", r.AudioFrames)))
	fmt.Println(field(l10n.T("Position"), r.Position.Round(time.Millisecond).String()))
	fmt.Println(field(l10n.T("Wall time"), r.WallTime.Round(time.Millisecond).String()))
	if r.Underruns > 0 {
		fmt.Println(field(l10n.T("Underruns"), fmt.Sprintf("%d", r.Underruns)))
	}
	if r.Restarts > 0 {
		fmt.Println(field(l10n.T("Restarts"), fmt.Sprintf("%d", r.Restarts)))
	}
}

func writeSummary(fs ports.FileSystem, out, path string, cfg config.Config, r session.Result, log ports.Logger) error {
	builder := summarizer.NewBuilder()

	info, err := smartprobe.New().Probe(path)
	if err != nil {
		log.Warn(l10n.F("Could not probe %s: %s", path, err))
		info = ports.MediaInfo{Path: path}
	}
	builder.WithMedia(info)

	builder.WithPlayback(summarizer.PlaybackInfo{
		FramesPresented: uint64(r.Presented),
		AudioFrames:     uint64(r.AudioFrames),
		Scrubs:          uint64(r.Scrubs),
		Underruns:       r.Underruns,
		Restarts:        r.Restarts,
		Position:        r.Position,
		WallTime:        r.WallTime,
		Completed:       r.Completed,
	})
	builder.WithSettings(summarizer.Settings{
		PoolSize:        cfg.PoolSize,
		Volume:          cfg.Volume,
		TickRate:        cfg.TickRate,
		MaxStepsPerTick: cfg.MaxStepsPerTick,
		AudioDevice:     cfg.Audio.Device,
		Loop:            cfg.Loop,
	})

	formatter := summarizer.NewMarkdownFormatter(
		summarizer.WithTranslator(l10n.T),
		summarizer.WithVersion(version),
	)
	return summarizer.NewWriter(formatter, fs).Write(out, builder.Build())
}
