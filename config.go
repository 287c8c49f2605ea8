package pathfit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/pathfit/pathfit/pathgen"
)

var (
	// ErrNoStages reports a configuration with an empty stage list.
	ErrNoStages = errors.New("pathfit: no stages configured")

	// ErrBadSchedule reports a non-positive count, iteration budget,
	// pool size, sampling rate, or learning-rate schedule.
	ErrBadSchedule = errors.New("pathfit: bad schedule")
)

// Config describes a progressive fitting run. The zero value is not
// usable; start from [DefaultConfig] or [LoadConfig].
type Config struct {
	// Counts lists how many shapes each stage adds, one stage per entry.
	Counts []int `toml:"counts"`

	// Segments is the number of cubic segments per closed path.
	Segments int `toml:"segments"`

	// Iters is the optimization budget per stage.
	Iters int `toml:"iters"`

	// PoolSize is the side length of the pooled residual grid used to
	// place shapes from the second stage on. Image resolutions that are
	// not divisible by PoolSize still work but place less precisely.
	PoolSize int `toml:"pool_size"`

	// Free re-opens all previously placed shapes for optimization in
	// every later stage. When false, earlier shapes stay frozen.
	Free bool `toml:"free"`

	// Init selects how new shapes are generated.
	Init pathgen.Mode `toml:"init"`

	// CircleRadius fixes the circle-mode radius in normalized units.
	// Zero draws a fresh radius per shape.
	CircleRadius float32 `toml:"circle_radius"`

	// Seed initializes the run's random generator.
	Seed int64 `toml:"seed"`

	// Gamma is applied when decoding the target and encoding output.
	Gamma float32 `toml:"gamma"`

	// Samples is the per-axis supersampling rate of the renderer.
	Samples int `toml:"samples"`

	// Learning-rate schedules: cosine decay from the base value to the
	// floor over the stage's iteration budget.
	PointLR      float64 `toml:"point_lr"`
	PointLRFloor float64 `toml:"point_lr_floor"`
	FillLR       float64 `toml:"fill_lr"`
	FillLRFloor  float64 `toml:"fill_lr_floor"`

	// OutDir is the root of the output tree. Each run writes into
	// OutDir/<target-stem>/<detail>, see [Config.RunDir].
	OutDir string `toml:"out_dir"`

	// SaveInit also writes each stage's scene before optimization.
	SaveInit bool `toml:"save_init"`

	// SaveImage writes each stage's final render as a PNG.
	SaveImage bool `toml:"save_image"`

	// SaveVideo records per-iteration frames and assembles animated
	// GIFs, one per stage plus one for the whole run.
	SaveVideo bool `toml:"save_video"`

	// SaveLoss writes loss heatmaps and a per-iteration loss table.
	SaveLoss bool `toml:"save_loss"`
}

// DefaultConfig returns the canonical run settings: three stages of one
// shape each, four segments per path, 500 iterations per stage.
func DefaultConfig() Config {
	return Config{
		Counts:       []int{1, 1, 1},
		Segments:     4,
		Iters:        500,
		PoolSize:     40,
		Init:         pathgen.ModeRandom,
		Seed:         1234,
		Gamma:        1,
		Samples:      2,
		PointLR:      1,
		PointLRFloor: 0.1,
		FillLR:       0.01,
		FillLRFloor:  0.001,
		OutDir:       "output",
	}
}

// LoadConfig reads a TOML file over the defaults and validates the
// result. Keys absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("pathfit: read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("pathfit: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration before a run so that schedule
// mistakes fail fast instead of mid-run.
func (c Config) Validate() error {
	if len(c.Counts) == 0 {
		return ErrNoStages
	}
	for i, n := range c.Counts {
		if n < 1 {
			return fmt.Errorf("%w: stage %d adds %d shapes", ErrBadSchedule, i+1, n)
		}
		if i > 0 && n > c.PoolSize*c.PoolSize {
			return fmt.Errorf("%w: stage %d adds %d shapes but the pooled grid has only %d cells",
				pathgen.ErrTooManyShapes, i+1, n, c.PoolSize*c.PoolSize)
		}
	}
	if c.Iters < 1 {
		return fmt.Errorf("%w: iters %d", ErrBadSchedule, c.Iters)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("%w: pool size %d", ErrBadSchedule, c.PoolSize)
	}
	if c.Samples < 1 {
		return fmt.Errorf("%w: samples %d", ErrBadSchedule, c.Samples)
	}
	if c.Segments < 1 || (c.Init == pathgen.ModeCircle && c.Segments < 2) {
		return fmt.Errorf("%w: %d segments in %s mode", pathgen.ErrBadSegments, c.Segments, c.Init)
	}
	if c.CircleRadius < 0 {
		return fmt.Errorf("pathfit: circle radius %g is negative", c.CircleRadius)
	}
	if c.Gamma <= 0 {
		return fmt.Errorf("pathfit: gamma %g is not positive", c.Gamma)
	}
	if c.PointLR <= 0 || c.FillLR <= 0 {
		return fmt.Errorf("%w: learning rates must be positive", ErrBadSchedule)
	}
	if c.PointLRFloor < 0 || c.PointLRFloor > c.PointLR {
		return fmt.Errorf("%w: point lr floor %g outside [0, %g]", ErrBadSchedule, c.PointLRFloor, c.PointLR)
	}
	if c.FillLRFloor < 0 || c.FillLRFloor > c.FillLR {
		return fmt.Errorf("%w: fill lr floor %g outside [0, %g]", ErrBadSchedule, c.FillLRFloor, c.FillLR)
	}
	return nil
}

// countsString joins the stage counts with commas, e.g. "1,1,1".
func (c Config) countsString() string {
	parts := make([]string, len(c.Counts))
	for i, n := range c.Counts {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

// DetailDir names the run's leaf directory after its settings, for
// example "1,1,1Seg4Iter500Pool40random" or "2,2Seg4Iter100Pool20Freecircle0.1".
func (c Config) DetailDir() string {
	var b strings.Builder
	b.WriteString(c.countsString())
	b.WriteString("Seg")
	b.WriteString(strconv.Itoa(c.Segments))
	b.WriteString("Iter")
	b.WriteString(strconv.Itoa(c.Iters))
	b.WriteString("Pool")
	b.WriteString(strconv.Itoa(c.PoolSize))
	if c.Free {
		b.WriteString("Free")
	}
	b.WriteString(c.Init.String())
	if c.Init == pathgen.ModeCircle && c.CircleRadius > 0 {
		b.WriteString(strconv.FormatFloat(float64(c.CircleRadius), 'g', -1, 32))
	}
	return b.String()
}

// RunDir returns the output directory for a given target image path:
// OutDir/<target filename without extension>/<DetailDir>.
func (c Config) RunDir(target string) string {
	stem := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target))
	return filepath.Join(c.OutDir, stem, c.DetailDir())
}
