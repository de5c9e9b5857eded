// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"blurengine/internal/adjust"
	"blurengine/internal/blend"
	"blurengine/internal/config"
	"blurengine/internal/dedup"
	"blurengine/internal/diag"
	"blurengine/internal/ffmpeg"
	"blurengine/internal/interpolation"
	"blurengine/internal/overlay"
	"blurengine/internal/video"
)

// Progress receives one Add(1) per rendered frame. It is called from the
// render workers concurrently.
type Progress interface {
	Add(n int) error
}

// Options carries the collaborators of a Pipeline. Zero fields get defaults.
type Options struct {
	Exec ffmpeg.CommandExecutor
	Temp *interpolation.TempFileManager
	// Backend overrides the backend built from the config.
	Backend interpolation.Backend
	// NewProgress is called once the output length is known.
	NewProgress func(total int) Progress
	Logger      zerolog.Logger
	Events      chan<- diag.Event
	Metrics     *diag.Metrics
}

// Pipeline wires the configured stages over a decoded video and renders
// the result with a bounded worker pool.
type Pipeline struct {
	cfg     *config.Config
	opts    Options
	backend interpolation.Backend
}

// Result summarises a finished render.
type Result struct {
	InputFrames  int
	OutputFrames int
	OutputRate   video.Rational
	Elapsed      time.Duration
	Metrics      diag.Snapshot
}

// New validates cfg and resolves the interpolation backend. Missing models
// and tools fail here, before any frame is decoded.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if opts.Exec == nil {
		opts.Exec = ffmpeg.NewSystemExecutor()
	}
	if opts.Temp == nil {
		opts.Temp = interpolation.NewTempFileManager(cfg.Rendering.TempDir)
	}
	if opts.Metrics == nil {
		opts.Metrics = &diag.Metrics{}
	}

	p := &Pipeline{cfg: cfg, opts: opts, backend: opts.Backend}
	if p.backend == nil && (cfg.Deduplication.Enabled || cfg.Interpolation.Enabled) {
		backend, err := interpolation.NewBackend(cfg.Backend(), opts.Exec, opts.Temp)
		if err != nil {
			return nil, err
		}
		p.backend = backend
	}
	if p.backend != nil {
		req := p.backend.Requirements()
		opts.Logger.Debug().
			Str("backend", p.backend.Name()).
			Str("device", req.Device).
			Str("format", req.Format.String()).
			Msg("interpolation backend ready")
	}
	return p, nil
}

// Metrics returns the counters shared by every stage.
func (p *Pipeline) Metrics() *diag.Metrics {
	return p.opts.Metrics
}

// Build stacks the enabled stages over src. The order is input timescale,
// duplicate filling, frame-rate interpolation, output timescale, blur,
// filters and finally the debug overlay.
func (p *Pipeline) Build(src video.Source) (video.Source, error) {
	cfg := p.cfg
	log := p.opts.Logger
	stage := func(name string, s video.Source) {
		log.Debug().Str("stage", name).Int("frames", s.Len()).Str("rate", s.Rate().String()).Msg("stage built")
	}
	stage("source", src)

	var err error
	if cfg.Timescale.Enabled && cfg.Timescale.Input != 1 {
		if src, err = rescale(src, cfg.Timescale.Input, true); err != nil {
			return nil, err
		}
		stage("input timescale", src)
	}

	if cfg.Deduplication.Enabled {
		maxFrames := cfg.Deduplication.Range
		if maxFrames < 0 {
			maxFrames = 0
		}
		src, err = dedup.New(src, p.backend, dedup.Options{
			Threshold: cfg.Deduplication.Threshold,
			MaxFrames: maxFrames,
			Method:    cfg.Deduplication.Method,
			Debug:     cfg.Rendering.Debug,
			Logger:    log,
			Events:    p.opts.Events,
			Metrics:   p.opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
		stage("dedup", src)
	}

	if cfg.Interpolation.Enabled {
		target, err := interpolation.ParseTargetRate(cfg.Interpolation.FPS, src.Rate())
		if err != nil {
			return nil, err
		}
		src, err = interpolation.Resample(src, p.backend, target, interpolation.ResampleOptions{
			Pairs:   cfg.Workers() + 1,
			Logger:  log,
			Events:  p.opts.Events,
			Metrics: p.opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
		stage("interpolation", src)
	}

	if cfg.Timescale.Enabled && cfg.Timescale.Output != 1 {
		if src, err = rescale(src, cfg.Timescale.Output, false); err != nil {
			return nil, err
		}
		stage("output timescale", src)
	}

	if cfg.Blur.Enabled {
		outRate, err := cfg.OutputRate()
		if err != nil {
			return nil, err
		}
		shape, err := cfg.WeightShape()
		if err != nil {
			return nil, err
		}
		weights, err := blend.Plan(src.Rate(), outRate, cfg.Blur.Amount, shape)
		if err != nil {
			return nil, err
		}
		log.Info().Int("weights", len(weights)).Str("weighting", cfg.Blur.Weighting).Msg("blur planned")
		src, err = blend.New(src, weights, blend.Options{
			Gamma:   cfg.Blur.Gamma,
			OutRate: outRate,
			Debug:   cfg.Rendering.Debug,
			Logger:  log,
			Events:  p.opts.Events,
			Metrics: p.opts.Metrics,
		})
		if err != nil {
			return nil, err
		}
		stage("blur", src)
	}

	if src, err = adjust.New(src, cfg.Levels()); err != nil {
		return nil, err
	}

	if cfg.Rendering.Debug {
		src = overlay.Source(src)
	}
	stage("output", src)
	return src, nil
}

func rescale(src video.Source, t float64, input bool) (video.Source, error) {
	factor, err := video.Timescale(t, input)
	if err != nil {
		return nil, err
	}
	return video.Rescale(src, factor)
}

// Render requests every frame of src from a pool of workers and writes
// each to dir under its index. Frames are dispatched in ascending order and
// complete in any order. The first error cancels the remaining work.
func (p *Pipeline) Render(ctx context.Context, src video.Source, dir string, progress Progress) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %v", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers())

	for n := 0; n < src.Len(); n++ {
		if gctx.Err() != nil {
			break
		}
		n := n
		g.Go(func() error {
			f, err := src.Frame(gctx, n)
			if err != nil {
				return fmt.Errorf("frame %d: %w", n, err)
			}
			if err := ffmpeg.WriteFrame(dir, f.WithIndex(n)); err != nil {
				return fmt.Errorf("frame %d: %w", n, err)
			}
			if progress != nil {
				progress.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Run decodes input, renders the configured stages and encodes output.
// Scratch frames live in the temp session, which is removed afterwards.
func (p *Pipeline) Run(ctx context.Context, input, output string, info *video.VideoInfo) (*Result, error) {
	start := time.Now()
	log := p.opts.Logger

	if !info.FrameRate.Positive() {
		return nil, fmt.Errorf("input frame rate %s: %w", info.FrameRate, diag.ErrInvalidArgument)
	}
	session, err := p.opts.Temp.CreateSessionDir()
	if err != nil {
		return nil, err
	}
	log.Debug().Str("temp_session", p.opts.Temp.SessionID()).Str("dir", session).Msg("temp session created")
	defer func() {
		if err := p.opts.Temp.CleanupSession(); err != nil {
			log.Warn().Err(err).Msg("temp session not removed")
		}
	}()

	if info.FrameCount > 0 {
		need := interpolation.EstimateFrameStorageNeeds(info.Width, info.Height, info.FrameCount, info.FrameCount)
		ok, msg, err := p.opts.Temp.CheckDiskSpace(need)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("disk space check skipped")
		case !ok:
			return nil, errors.New(msg)
		default:
			log.Debug().Msg(msg)
		}
	}

	framesDir := filepath.Join(session, "frames")
	n, err := ffmpeg.ExtractFrames(ctx, p.opts.Exec, input, framesDir)
	if err != nil {
		return nil, err
	}
	src, err := ffmpeg.NewDirSource(framesDir, info.FrameRate)
	if err != nil {
		return nil, err
	}
	log.Info().Int("frames", n).Str("rate", info.FrameRate.String()).Msg("input decoded")

	out, err := p.Build(src)
	if err != nil {
		return nil, err
	}

	var progress Progress
	if p.opts.NewProgress != nil {
		progress = p.opts.NewProgress(out.Len())
	}
	outDir := filepath.Join(session, "output")
	if err := p.Render(ctx, out, outDir, progress); err != nil {
		return nil, err
	}

	enc := ffmpeg.EncodeOptions{
		Binary: p.cfg.Backend().FFmpegBinary,
		Rate:   out.Rate(),
		CRF:    p.cfg.Rendering.Quality,
		Codec:  p.cfg.Rendering.Codec,
	}
	if info.HasAudio {
		enc.Audio = input
		enc.SampleRate = info.SampleRate
		if t := p.cfg.Timescale; t.Enabled {
			enc.InputTimescale = t.Input
			enc.OutputTimescale = t.Output
			enc.AudioPitch = t.AudioPitch
		}
		log.Debug().Str("filters", ffmpeg.AudioFilters(enc)).Msg("audio track kept")
	}
	if err := ffmpeg.Reassemble(ctx, p.opts.Exec, outDir, output, enc); err != nil {
		return nil, err
	}

	res := &Result{
		InputFrames:  n,
		OutputFrames: out.Len(),
		OutputRate:   out.Rate(),
		Elapsed:      time.Since(start),
		Metrics:      p.opts.Metrics.Snapshot(),
	}
	log.Info().
		Int("frames", res.OutputFrames).
		Str("rate", res.OutputRate.String()).
		Dur("elapsed", res.Elapsed).
		Uint64("interpolated", res.Metrics.FramesInterpolated).
		Uint64("contained_failures", res.Metrics.ContainedFailures).
		Int("tool_calls", p.opts.Temp.Calls()).
		Msg("render complete")
	return res, nil
}
