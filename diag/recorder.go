// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package diag records fitting runs for inspection: per-iteration frame
// PNGs, animated GIFs per stage and for the whole run, loss heatmaps
// and a loss table. It observes a run through [pathfit.Hooks] and never
// feeds anything back into the optimization.
package diag

import (
	"encoding/csv"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pathfit/pathfit"
	"github.com/pathfit/pathfit/errmap"
	"github.com/pathfit/pathfit/internal/logx"
	"github.com/pathfit/pathfit/pix"
)

// ErrNoRunDir reports a recorder constructed without an output
// directory.
var ErrNoRunDir = errors.New("diag: empty run directory")

// GIF frame delays in hundredths of a second. Stage replays run at
// 20 fps, the whole-run replay is compressed to 100 fps.
const (
	stageFrameDelay = 5
	runFrameDelay   = 1
)

// Options select what a Recorder writes.
type Options struct {
	// Frames writes every iteration's render as images/<label>-<iter>.png
	// and assembles videos/<label>.gif per stage plus videos/all.gif for
	// the run.
	Frames bool

	// KeepFrames leaves images/ in place after all.gif is assembled.
	// The default removes it, keeping only the GIFs.
	KeepFrames bool

	// Loss writes per-stage residual heatmaps (<label>-loss_pixel.png,
	// <label>-loss_region.png) and a loss.csv table for the run.
	Loss bool

	// Gamma is the encoding gamma for frames, 1 when zero.
	Gamma float32
}

// Recorder captures run artifacts under a run directory. Wire it into
// a Fitter with [Recorder.Hooks]. Callbacks run synchronously on the
// fitting goroutine, so a Recorder needs no locking; it is not safe for
// concurrent use.
//
// Hook callbacks cannot return errors, so write failures are logged,
// remembered, and surfaced by [Recorder.Finish].
type Recorder struct {
	dir  string
	opts Options

	label       string
	stageFrames []*image.Paletted
	runFrames   []*image.Paletted
	records     []pathfit.StageRecord
	err         error
}

// NewRecorder creates a recorder writing into dir, which should be the
// run directory the Fitter writes its scenes to (see Config.RunDir).
func NewRecorder(dir string, opts Options) (*Recorder, error) {
	if dir == "" {
		return nil, ErrNoRunDir
	}
	return &Recorder{dir: dir, opts: opts}, nil
}

// Hooks returns the observer callbacks to pass to pathfit.WithHooks.
func (r *Recorder) Hooks() pathfit.Hooks {
	return pathfit.Hooks{
		StageStart: r.stageStart,
		Iteration:  r.iteration,
		StageDone:  r.stageDone,
	}
}

// Err returns the first write error seen so far.
func (r *Recorder) Err() error { return r.err }

func (r *Recorder) fail(op string, err error) {
	logx.Logger().Warn("recorder write failed", "op", op, "err", err)
	if r.err == nil {
		r.err = fmt.Errorf("diag: %s: %w", op, err)
	}
}

func (r *Recorder) stageStart(stage int, label string, added, total int) {
	r.label = label
	r.stageFrames = r.stageFrames[:0]
	if r.opts.Frames && stage == 1 {
		for _, sub := range []string{"images", "videos"} {
			if err := os.MkdirAll(filepath.Join(r.dir, sub), 0o755); err != nil {
				r.fail("create "+sub, err)
			}
		}
	}
}

func (r *Recorder) iteration(stage, iter int, loss float64, frame *pix.Image) {
	if !r.opts.Frames {
		return
	}
	nr, err := frame.ToNRGBA(r.opts.Gamma)
	if err != nil {
		r.fail("convert frame", err)
		return
	}
	name := r.label + "-" + strconv.Itoa(iter) + ".png"
	if err := writePNG(filepath.Join(r.dir, "images", name), nr); err != nil {
		r.fail("write frame", err)
	}

	stageCopy := cloneNRGBA(nr)
	drawLabel(stageCopy, "Path:"+r.label+" Iter:"+strconv.Itoa(iter), stageTextColor)
	r.stageFrames = append(r.stageFrames, palettize(stageCopy))

	drawLabel(nr, fmt.Sprintf("%s| Iter:%d| Loss:%.5f", r.label, iter, loss), runTextColor)
	r.runFrames = append(r.runFrames, palettize(nr))
}

func (r *Recorder) stageDone(stage int, rec pathfit.StageRecord, em *errmap.Map) {
	r.records = append(r.records, rec)
	if r.opts.Frames && len(r.stageFrames) > 0 {
		path := filepath.Join(r.dir, "videos", rec.Label+".gif")
		if err := writeGIF(path, r.stageFrames, stageFrameDelay); err != nil {
			r.fail("write stage gif", err)
		}
		r.stageFrames = r.stageFrames[:0]
	}
	if r.opts.Loss {
		w, h := em.Width(), em.Height()
		pixel := filepath.Join(r.dir, rec.Label+"-loss_pixel.png")
		if err := writeHeatmap(pixel, em.Residual(), w, h, w, h); err != nil {
			r.fail("write pixel heatmap", err)
		}
		p := em.PoolSize()
		region := filepath.Join(r.dir, rec.Label+"-loss_region.png")
		if err := writeHeatmap(region, em.Pooled(), p, p, w, h); err != nil {
			r.fail("write region heatmap", err)
		}
	}
}

// Finish assembles the whole-run GIF and the loss table and returns the
// first error the recorder ran into, if any. Call it after Fitter.Run
// returns.
func (r *Recorder) Finish() error {
	if r.opts.Frames && len(r.runFrames) > 0 {
		if err := writeGIF(filepath.Join(r.dir, "videos", "all.gif"), r.runFrames, runFrameDelay); err != nil {
			r.fail("write run gif", err)
		}
		r.runFrames = nil
		if !r.opts.KeepFrames {
			if err := os.RemoveAll(filepath.Join(r.dir, "images")); err != nil {
				r.fail("remove frames", err)
			}
		}
	}
	if r.opts.Loss && len(r.records) > 0 {
		if err := r.writeLossTable(filepath.Join(r.dir, "loss.csv")); err != nil {
			r.fail("write loss table", err)
		}
	}
	return r.err
}

func (r *Recorder) writeLossTable(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	record := []string{"stage", "iter", "loss"}
	if err := w.Write(record); err != nil {
		f.Close()
		return err
	}
	for _, rec := range r.records {
		for i, loss := range rec.Losses {
			record[0] = strconv.Itoa(rec.Stage)
			record[1] = strconv.Itoa(i)
			record[2] = strconv.FormatFloat(loss, 'g', -1, 64)
			if err := w.Write(record); err != nil {
				f.Close()
				return err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
