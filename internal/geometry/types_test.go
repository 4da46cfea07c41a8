package geometry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointApproxEqual(t *testing.T) {
	p := Pt(1, 2)
	assert.True(t, p.ApproxEqual(Pt(1+1e-10, 2-1e-10), 1e-9))
	assert.False(t, p.ApproxEqual(Pt(1.1, 2), 1e-9))
}

func TestRectApproxEqual(t *testing.T) {
	r := R(10, 20, 30, 40)
	assert.True(t, r.ApproxEqual(R(10, 20, 30, 40+1e-12), 1e-9))
	assert.False(t, r.ApproxEqual(R(10, 20, 31, 40), 1e-9))
}

func TestAspectFitRandomRects(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	extent := func() float64 { return 1 + rng.Float64()*2000 }
	for i := 0; i < 2000; i++ {
		source := R(rng.Float64()*100, rng.Float64()*100, extent(), extent())
		target := R(rng.Float64()*100, rng.Float64()*100, extent(), extent())

		tr := MakeAspectFitTransform(source, target)
		mapped := tr.ApplyRect(source)
		assert.True(t, target.ContainsRect(mapped, 1e-6), "%v mapped to %v outside %v", source, mapped, target)

		inv, ok := tr.Invert()
		if assert.True(t, ok) {
			assert.True(t, inv.ApplyRect(mapped).ApproxEqual(source, 1e-6))
		}
	}
}
