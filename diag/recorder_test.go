// Copyright 2026 The pathfit Authors
// SPDX-License-Identifier: BSD-3-Clause

package diag

import (
	"context"
	"encoding/csv"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathfit/pathfit"
	"github.com/pathfit/pathfit/errmap"
	"github.com/pathfit/pathfit/pix"
)

func testFrame(w, h int) *pix.Image {
	img := pix.NewImage(w, h, 3)
	for i := range img.Pix {
		img.Pix[i] = float32(i%7) / 7
	}
	return img
}

// testErrMap builds a tracker whose residual is concentrated in the
// top-left quadrant.
func testErrMap(t *testing.T, w, h int) *errmap.Map {
	t.Helper()
	em, err := errmap.New(w, h, 2)
	require.NoError(t, err)
	target := pix.NewImage(w, h, 3)
	rendered := pix.NewImage(w, h, 3)
	for y := 0; y < h/2; y++ {
		for x := 0; x < w/2; x++ {
			rendered.Set(x, y, 0, 1)
		}
	}
	require.NoError(t, em.Update(rendered, target))
	return em
}

// driveStage replays one synthetic stage through the recorder's hooks.
func driveStage(h pathfit.Hooks, stage int, label string, losses []float64, frame *pix.Image, em *errmap.Map) {
	h.StageStart(stage, label, 1, stage)
	for i, l := range losses {
		h.Iteration(stage, i, l, frame)
	}
	h.StageDone(stage, pathfit.StageRecord{
		Stage: stage, Added: 1, Total: stage, Label: label, Losses: losses,
	}, em)
}

func decodeGIF(t *testing.T, path string) *gif.GIF {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	g, err := gif.DecodeAll(f)
	require.NoError(t, err)
	return g
}

func TestNewRecorderRequiresDir(t *testing.T) {
	_, err := NewRecorder("", Options{})
	assert.ErrorIs(t, err, ErrNoRunDir)
}

func TestRecorderFrameArtifacts(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, Options{Frames: true})
	require.NoError(t, err)

	frame := testFrame(10, 8)
	em := testErrMap(t, 10, 8)
	driveStage(rec.Hooks(), 1, "2", []float64{0.5, 0.25, 0.125}, frame, em)
	require.NoError(t, rec.Finish())

	g := decodeGIF(t, filepath.Join(dir, "videos", "2.gif"))
	require.Len(t, g.Image, 3)
	assert.Equal(t, []int{5, 5, 5}, g.Delay)
	assert.Equal(t, 10, g.Image[0].Bounds().Dx())
	assert.Equal(t, 8, g.Image[0].Bounds().Dy())

	all := decodeGIF(t, filepath.Join(dir, "videos", "all.gif"))
	require.Len(t, all.Image, 3)
	assert.Equal(t, []int{1, 1, 1}, all.Delay)

	// Scratch frames are cleaned up once the run GIF exists.
	_, err = os.Stat(filepath.Join(dir, "images"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecorderKeepFrames(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, Options{Frames: true, KeepFrames: true})
	require.NoError(t, err)

	driveStage(rec.Hooks(), 1, "1", []float64{1, 0.5}, testFrame(10, 8), testErrMap(t, 10, 8))
	require.NoError(t, rec.Finish())

	f, err := os.Open(filepath.Join(dir, "images", "1-0.png"))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestRecorderLossArtifacts(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, Options{Loss: true})
	require.NoError(t, err)

	frame := testFrame(10, 8)
	em := testErrMap(t, 10, 8)
	h := rec.Hooks()
	driveStage(h, 1, "1", []float64{0.5, 0.25}, frame, em)
	driveStage(h, 2, "1,1", []float64{0.125, 0.0625}, frame, em)
	require.NoError(t, rec.Finish())

	f, err := os.Open(filepath.Join(dir, "loss.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"stage", "iter", "loss"}, rows[0])
	assert.Equal(t, []string{"1", "0", "0.5"}, rows[1])
	assert.Equal(t, []string{"2", "1", "0.0625"}, rows[4])

	for _, name := range []string{"1-loss_pixel.png", "1-loss_region.png", "1,1-loss_pixel.png", "1,1-loss_region.png"} {
		hf, err := os.Open(filepath.Join(dir, name))
		require.NoError(t, err, name)
		img, err := png.Decode(hf)
		hf.Close()
		require.NoError(t, err, name)
		assert.Equal(t, 10, img.Bounds().Dx(), name)
		assert.Equal(t, 8, img.Bounds().Dy(), name)

		// The bad top-left quadrant must come out redder (darker ramp
		// end) than the clean bottom-right corner.
		worst := color.NRGBAModel.Convert(img.At(1, 1)).(color.NRGBA)
		clean := color.NRGBAModel.Convert(img.At(9, 7)).(color.NRGBA)
		assert.Less(t, worst.R, clean.R, name)
		assert.Less(t, worst.G, clean.G, name)
	}
}

func TestRecorderDisabledWritesNothing(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, Options{})
	require.NoError(t, err)

	driveStage(rec.Hooks(), 1, "1", []float64{1}, testFrame(6, 6), testErrMap(t, 6, 6))
	require.NoError(t, rec.Finish())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// An actual fit wired through the recorder produces the full artifact
// set next to the Fitter's own scene files.
func TestRecorderWithFitter(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(dir, Options{Frames: true, Loss: true})
	require.NoError(t, err)

	cfg := pathfit.DefaultConfig()
	cfg.Counts = []int{1, 1}
	cfg.Iters = 2
	cfg.PoolSize = 4
	f, err := pathfit.New(cfg, pathfit.WithHooks(rec.Hooks()))
	require.NoError(t, err)
	defer f.Close()

	target := pix.NewImage(16, 16, 3)
	for i := range target.Pix {
		target.Pix[i] = float32(i%11) / 11
	}
	_, err = f.FitImage(context.Background(), target, dir)
	require.NoError(t, err)
	require.NoError(t, rec.Finish())

	for _, name := range []string{
		"1.svg", "1,1.svg",
		filepath.Join("videos", "1.gif"),
		filepath.Join("videos", "1,1.gif"),
		filepath.Join("videos", "all.gif"),
		"1-loss_pixel.png", "1,1-loss_region.png",
		"loss.csv",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	all := decodeGIF(t, filepath.Join(dir, "videos", "all.gif"))
	assert.Len(t, all.Image, 4)
}
