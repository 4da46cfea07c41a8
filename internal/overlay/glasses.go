package overlay

import (
	"image"

	"github.com/gogpu/gg"
)

// glassesStyle describes a procedurally drawn pair of glasses.
type glassesStyle struct {
	name        string
	frame, lens string
	round       bool
}

var builtinStyles = []glassesStyle{
	{name: "aviator", frame: "#c9a227", lens: "#1b1b1bcc"},
	{name: "round", frame: "#2b2b2b", lens: "#5a7fa855", round: true},
	{name: "party", frame: "#e0218a", lens: "#ffd70088"},
}

// BuiltinCatalog returns a catalog of glasses drawn at the given width.
// Height follows GlassesAspect.
func BuiltinCatalog(width int) (*Catalog, error) {
	items := make([]Item, 0, len(builtinStyles))
	for _, s := range builtinStyles {
		img, err := drawGlasses(s, width)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Name: s.name, Image: img})
	}
	return NewCatalog(items...), nil
}

func drawGlasses(s glassesStyle, width int) (image.Image, error) {
	w := float64(width)
	h := w * GlassesAspect
	dc := gg.NewContext(width, int(h))
	defer dc.Close()

	lensW, lensH := w*0.36, h*0.8
	lx, rx := w*0.07, w*0.57
	y := h * 0.1
	lw := w * 0.025

	dc.SetHexColor(s.lens)
	if s.round {
		dc.DrawEllipse(lx+lensW/2, y+lensH/2, lensW/2, lensH/2)
		dc.DrawEllipse(rx+lensW/2, y+lensH/2, lensW/2, lensH/2)
	} else {
		dc.DrawRoundedRectangle(lx, y, lensW, lensH, lensH*0.3)
		dc.DrawRoundedRectangle(rx, y, lensW, lensH, lensH*0.3)
	}
	if err := dc.FillPreserve(); err != nil {
		return nil, err
	}
	dc.SetHexColor(s.frame)
	dc.SetLineWidth(lw)
	if err := dc.Stroke(); err != nil {
		return nil, err
	}

	// bridge and temples
	dc.DrawLine(lx+lensW, y+lensH*0.35, rx, y+lensH*0.35)
	dc.DrawLine(0, y+lensH*0.25, lx, y+lensH*0.25)
	dc.DrawLine(rx+lensW, y+lensH*0.25, w, y+lensH*0.25)
	if err := dc.Stroke(); err != nil {
		return nil, err
	}
	return dc.Image(), nil
}
