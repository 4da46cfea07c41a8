// Package render composites placed overlays onto preview images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync/atomic"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/dudu/augcam/internal/geometry"
	"github.com/dudu/augcam/internal/overlay"
)

// Options configures a Compositor.
type Options struct {
	// Debug draws the face box and landmark markers.
	Debug bool
	// Background fills the letterbox bars.
	Background color.Color
	// Scaler resamples the frame. Defaults to bilinear.
	Scaler xdraw.Transformer
}

// Compositor draws a frame and its overlay into a preview-sized image.
// SetDebug may be called while another goroutine composes.
type Compositor struct {
	opts  Options
	debug atomic.Bool
}

// NewCompositor creates a compositor.
func NewCompositor(opts Options) *Compositor {
	if opts.Background == nil {
		opts.Background = color.Black
	}
	if opts.Scaler == nil {
		opts.Scaler = xdraw.BiLinear
	}
	c := &Compositor{opts: opts}
	c.debug.Store(opts.Debug)
	return c
}

// SetDebug toggles debug drawing.
func (c *Compositor) SetDebug(on bool) {
	c.debug.Store(on)
}

// Debug reports whether debug drawing is on.
func (c *Compositor) Debug() bool {
	return c.debug.Load()
}

// Compose returns a new image covering p.View.Preview: frame aspect-fit
// (and mirrored for front cameras), glasses over the eyes rect, and the
// debug markers when enabled. glasses may be nil. In a mirrored view the
// glasses are mirrored along with the frame.
func (c *Compositor) Compose(frame image.Image, p overlay.Placement, glasses image.Image) (image.Image, error) {
	debug := c.debug.Load()
	preview := p.View.Preview
	if err := preview.Validate(); err != nil {
		return nil, fmt.Errorf("failed to compose: %w", err)
	}
	canvas := image.NewRGBA(image.Rect(0, 0, int(preview.Width), int(preview.Height)))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.opts.Background), image.Point{}, draw.Src)

	toCanvas := geometry.Translation(-preview.X, -preview.Y)
	b := frame.Bounds()
	frameToCanvas := geometry.Concat(
		geometry.Translation(-float64(b.Min.X), -float64(b.Min.Y)),
		p.View.FrameTransform(),
		toCanvas,
	)
	c.opts.Scaler.Transform(canvas, Aff3(frameToCanvas), frame, b, draw.Over, nil)

	if !p.Visible || (glasses == nil && !debug) {
		return canvas, nil
	}

	dc := gg.NewContextForImage(canvas)
	defer dc.Close()

	if glasses != nil && p.Eyes != nil {
		if p.View.Mirrored {
			glasses = MirrorImage(glasses)
		}
		eyes := toCanvas.ApplyRect(*p.Eyes)
		dc.DrawImageEx(gg.ImageBufFromImage(glasses), gg.DrawImageOptions{
			X:         eyes.X,
			Y:         eyes.Y,
			DstWidth:  eyes.Width,
			DstHeight: eyes.Height,
		})
	}
	if debug {
		if err := drawDebug(dc, p, toCanvas); err != nil {
			return nil, err
		}
	}
	return dc.Image(), nil
}

func drawDebug(dc *gg.Context, p overlay.Placement, toCanvas geometry.Transform) error {
	face := toCanvas.ApplyRect(p.Face)
	dc.SetRGBA(0, 1, 0, 0.9)
	dc.SetLineWidth(2)
	dc.DrawRectangle(face.X, face.Y, face.Width, face.Height)
	if err := dc.Stroke(); err != nil {
		return fmt.Errorf("failed to draw face box: %w", err)
	}

	radius := face.Width / 30
	if radius < 2 {
		radius = 2
	}
	markers := []struct {
		pt      *geometry.Point
		r, g, b float64
	}{
		{p.LeftEye, 0.2, 0.6, 1},
		{p.RightEye, 0.2, 0.6, 1},
		{p.Mouth, 1, 0.3, 0.3},
	}
	for _, m := range markers {
		if m.pt == nil {
			continue
		}
		q := toCanvas.Apply(*m.pt)
		dc.SetRGBA(m.r, m.g, m.b, 0.9)
		dc.DrawCircle(q.X, q.Y, radius)
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("failed to draw marker: %w", err)
		}
	}
	return nil
}

// Aff3 converts t into the matrix x/image/draw expects.
func Aff3(t geometry.Transform) f64.Aff3 {
	return f64.Aff3{t.A, t.B, t.TX, t.C, t.D, t.TY}
}

// MirrorImage returns img flipped horizontally.
func MirrorImage(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	t := geometry.Concat(
		geometry.Translation(-float64(b.Min.X), -float64(b.Min.Y)),
		geometry.MirrorTransform(float64(b.Dx())),
	)
	xdraw.NearestNeighbor.Transform(dst, Aff3(t), img, b, draw.Src, nil)
	return dst
}
