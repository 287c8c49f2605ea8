// Command pathfit approximates a raster image with layered vector
// shapes and writes the result as SVG, one snapshot per stage.
//
// Usage:
//
//	pathfit [flags] target.png
//
// Settings come from built-in defaults, then an optional TOML file
// (-config), then explicit flags, each layer overriding the previous.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/pathfit/pathfit"
	"github.com/pathfit/pathfit/diag"
	"github.com/pathfit/pathfit/render"
)

func main() {
	log.SetFlags(0)

	def := pathfit.DefaultConfig()
	var (
		configPath = flag.String("config", "", "TOML config file")
		paths      = flag.String("paths", "1,1,1", "shapes added per stage, comma separated")
		segments   = flag.Int("segments", def.Segments, "cubic segments per shape")
		iters      = flag.Int("iters", def.Iters, "optimization iterations per stage")
		pool       = flag.Int("pool", def.PoolSize, "pooled residual grid size")
		free       = flag.Bool("free", def.Free, "keep optimizing earlier stages' shapes")
		initMode   = flag.String("init", def.Init.String(), "shape initialization: random or circle")
		radius     = flag.Float64("radius", float64(def.CircleRadius), "circle radius in [0,1], 0 for random per shape")
		seed       = flag.Int64("seed", def.Seed, "random seed")
		gamma      = flag.Float64("gamma", float64(def.Gamma), "decode/encode gamma")
		samples    = flag.Int("samples", def.Samples, "renderer samples per pixel axis")
		out        = flag.String("out", def.OutDir, "output directory root")
		saveInit   = flag.Bool("save-init", def.SaveInit, "also save each stage's scene before optimizing")
		saveImage  = flag.Bool("save-image", def.SaveImage, "save each stage's final render as PNG")
		saveVideo  = flag.Bool("save-video", def.SaveVideo, "record frames and assemble GIFs")
		saveLoss   = flag.Bool("save-loss", def.SaveLoss, "save loss heatmaps and table")
		keepFrames = flag.Bool("keep-frames", false, "keep per-iteration frames after GIF assembly")
		workers    = flag.Int("workers", 0, "renderer worker count, 0 for all CPUs")
		verbose    = flag.Bool("v", false, "log stage progress")
		debug      = flag.Bool("debug", false, "log per-iteration diagnostics")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: pathfit [flags] target-image\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	target := flag.Arg(0)

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = pathfit.LoadConfig(*configPath); err != nil {
			log.Fatal(err)
		}
	}

	// Only explicitly set flags override the config file.
	var flagErr error
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "paths":
			cfg.Counts, flagErr = parseCounts(*paths)
		case "segments":
			cfg.Segments = *segments
		case "iters":
			cfg.Iters = *iters
		case "pool":
			cfg.PoolSize = *pool
		case "free":
			cfg.Free = *free
		case "init":
			flagErr = cfg.Init.UnmarshalText([]byte(*initMode))
		case "radius":
			cfg.CircleRadius = float32(*radius)
		case "seed":
			cfg.Seed = *seed
		case "gamma":
			cfg.Gamma = float32(*gamma)
		case "samples":
			cfg.Samples = *samples
		case "out":
			cfg.OutDir = *out
		case "save-init":
			cfg.SaveInit = *saveInit
		case "save-image":
			cfg.SaveImage = *saveImage
		case "save-video":
			cfg.SaveVideo = *saveVideo
		case "save-loss":
			cfg.SaveLoss = *saveLoss
		}
		if flagErr != nil {
			log.Fatalf("flag -%s: %v", fl.Name, flagErr)
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	if *verbose || *debug {
		level := slog.LevelInfo
		if *debug {
			level = slog.LevelDebug
		}
		pathfit.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var opts []pathfit.Option
	if *workers > 0 {
		r := render.NewSoft(render.WithWorkers(*workers))
		defer r.Close()
		opts = append(opts, pathfit.WithRenderer(r))
	}

	var rec *diag.Recorder
	if cfg.SaveVideo || cfg.SaveLoss {
		var err error
		rec, err = diag.NewRecorder(cfg.RunDir(target), diag.Options{
			Frames:     cfg.SaveVideo,
			KeepFrames: *keepFrames,
			Loss:       cfg.SaveLoss,
			Gamma:      cfg.Gamma,
		})
		if err != nil {
			log.Fatal(err)
		}
		opts = append(opts, pathfit.WithHooks(rec.Hooks()))
	}

	f, err := pathfit.New(cfg, opts...)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	res, err := f.Run(ctx, target)
	if err != nil {
		log.Fatal(err)
	}
	if rec != nil {
		if err := rec.Finish(); err != nil {
			log.Printf("recorder: %v", err)
		}
	}
	log.Printf("done: %d shapes, final loss %.6g, output in %s",
		res.TotalShapes(), res.FinalLoss(), res.RunDir)
}

// parseCounts parses a comma separated stage list like "1,1,1".
func parseCounts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	counts := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad stage count %q", p)
		}
		counts = append(counts, n)
	}
	return counts, nil
}
