package ui

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/augcam/internal/pipeline"
)

// Key codes returned by WaitKey
const (
	KeyNone   = -1
	KeyEscape = 27
)

// Window manages the preview display. Publish may be called from any
// goroutine; Run and Show must run on the main OS thread.
type Window struct {
	window     *gocv.Window
	name       string
	latest     chan pipeline.Output
	lastFrame  time.Time
	frameCount int
	fps        float64
}

var _ pipeline.Sink = (*Window)(nil)

// NewWindow creates a new preview window
func NewWindow(name string, width, height int) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(width, height)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		latest:    make(chan pipeline.Output, 1),
		lastFrame: time.Now(),
	}
}

// Publish hands the newest composited frame to the window, replacing one
// that was not shown yet
func (w *Window) Publish(out pipeline.Output) error {
	for {
		select {
		case w.latest <- out:
			return nil
		default:
		}
		select {
		case <-w.latest:
		default:
		}
	}
}

// Run shows published frames until ctx is done or onKey returns false.
// onKey receives every key press.
func (w *Window) Run(ctx context.Context, onKey func(key int) bool) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case out := <-w.latest:
			if err := w.Show(out.Image, out.Timing); err != nil {
				return err
			}
		default:
		}

		// WaitKey must be called to process window events on macOS
		key := w.window.WaitKey(10)
		if key != KeyNone && !onKey(key) {
			return nil
		}
	}
}

// Show displays an image and updates the FPS counter
func (w *Window) Show(img image.Image, timing pipeline.Timing) error {
	w.frameCount++
	now := time.Now()

	// Calculate FPS every second
	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}

	rgba, err := gocv.ImageToMatRGBA(img)
	if err != nil {
		return fmt.Errorf("failed to convert preview: %w", err)
	}
	defer rgba.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	gocv.CvtColor(rgba, &frame, gocv.ColorRGBAToBGR)

	green := color.RGBA{R: 0, G: 255, B: 0, A: 255}
	gocv.PutText(&frame, fmt.Sprintf("FPS: %.1f", w.fps), image.Pt(10, 30),
		gocv.FontHersheyPlain, 2, green, 2)
	gocv.PutText(&frame, fmt.Sprintf("D:%.0fms P:%.1fms C:%.0fms T:%.0fms",
		ms(timing.Detection), ms(timing.Placement), ms(timing.Compose), ms(timing.Total)),
		image.Pt(10, 60), gocv.FontHersheyPlain, 1.5, green, 2)

	w.window.IMShow(frame)
	return nil
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
