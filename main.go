// main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"blurengine/internal/config"
	"blurengine/internal/diag"
	"blurengine/internal/ffmpeg"
	"blurengine/internal/interpolation"
	"blurengine/internal/pipeline"
	"blurengine/internal/ui"
	"blurengine/internal/validation"
	"blurengine/internal/video"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#06B6D4")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))
)

// staleSessionAge is how old a leftover temp session must be before it is removed.
const staleSessionAge = 24 * time.Hour

// app holds the collaborators of one CLI invocation.
type app struct {
	exec     ffmpeg.CommandExecutor
	prompt   ui.UserInteraction
	stdout   io.Writer
	stderr   io.Writer
	progress bool
}

func main() {
	a := &app{
		exec:     ffmpeg.NewSystemExecutor(),
		prompt:   ui.Prompter{},
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		progress: true,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(a.stderr, errorStyle.Render(fmt.Sprintf("❌ %v", err)))
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("blurengine", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	configPath := fs.String("config", "", "YAML configuration file")
	output := fs.String("o", "", "output file or directory")
	workers := fs.Int("workers", 0, "render workers (default one per CPU)")
	verbose := fs.Bool("v", false, "debug logging")
	writeConfig := fs.String("write-config", "", "write the default configuration to this file and exit")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: blurengine [-config file] [-o output] [-workers n] [-v] input")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *writeConfig != "" {
		if err := config.Save(*writeConfig, config.Default()); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Default configuration written to %s\n", *writeConfig)
		return nil
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *workers > 0 {
		cfg.Rendering.Workers = *workers
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	log := diag.NewLogger(cfg.LogConfig(), a.stderr)

	fmt.Fprintln(a.stdout, titleStyle.Render("🎬 blurengine"))

	version, err := ffmpeg.CheckVersion(ctx, a.exec)
	if err != nil {
		return err
	}
	log.Debug().Str("ffmpeg", version).Msg("ffmpeg found")

	input, err := a.inputPath(fs.Arg(0))
	if err != nil {
		return err
	}
	if *configPath == "" {
		fmt.Fprintln(a.stdout, promptStyle.Render("⚙️  No config given, choose the render settings:"))
		if err := ui.CollectSettings(a.prompt, cfg); err != nil {
			return err
		}
	}

	info, err := video.GetVideoInfo(ctx, a.exec.Execute, input)
	if err != nil {
		return fmt.Errorf("error reading video: %w", err)
	}
	warnings, err := validation.CheckVideo(info)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, ui.VideoInfo(info))
	for _, w := range warnings {
		fmt.Fprintln(a.stdout, warnStyle.Render("⚠️  "+w))
	}
	fmt.Fprintln(a.stdout, ui.Settings(cfg))

	outPath, err := validation.ResolveOutputPath(input, *output, cfg.Rendering.Container)
	if err != nil {
		return err
	}

	tempBase := cfg.Backend().TempDir
	if removed, err := interpolation.CleanupOldSessions(tempBase, staleSessionAge); err != nil {
		log.Warn().Err(err).Msg("stale session cleanup failed")
	} else if len(removed) > 0 {
		log.Info().Int("sessions", len(removed)).Msg("removed stale temp sessions")
	}

	events := make(chan diag.Event, 64)
	done := make(chan struct{})
	go logEvents(log, events, done)

	p, err := pipeline.New(cfg, pipeline.Options{
		Exec:        a.exec,
		Temp:        interpolation.NewTempFileManager(tempBase),
		NewProgress: a.newProgress,
		Logger:      log,
		Events:      events,
	})
	if err != nil {
		close(events)
		<-done
		return err
	}

	fmt.Fprintln(a.stdout, promptStyle.Render("🔄 Rendering..."))
	res, err := p.Run(ctx, input, outPath, info)
	close(events)
	<-done
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, ui.Result(res))
	fmt.Fprintln(a.stdout, successStyle.Render("✅ Render completed successfully!"))
	fmt.Fprintf(a.stdout, "Video saved to: %s\n", outPath)
	return nil
}

// inputPath validates arg, prompting for a path when none was given.
func (a *app) inputPath(arg string) (string, error) {
	if arg == "" {
		var err error
		arg, err = a.prompt.PromptForString("📁 Video file path", "", validation.ValidateInputPath)
		if err != nil {
			return "", err
		}
	}
	if err := validation.ValidateInputPath(arg); err != nil {
		return "", err
	}
	return validation.CleanPath(arg), nil
}

func (a *app) newProgress(total int) pipeline.Progress {
	if !a.progress {
		return nil
	}
	return ffmpeg.NewProgressBar(total, "Rendering")
}

func logEvents(log zerolog.Logger, events <-chan diag.Event, done chan<- struct{}) {
	defer close(done)
	for ev := range events {
		log.Debug().Str("event", string(ev.Type)).Fields(ev.Metadata).Msg("stage event")
	}
}
