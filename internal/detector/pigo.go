package detector

import (
	"context"
	"fmt"
	"image"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/sirupsen/logrus"

	"github.com/dudu/augcam/internal/geometry"
)

// PigoConfig holds cascade paths and detection parameters for Pigo.
type PigoConfig struct {
	FaceCascade   string
	PuplocCascade string // optional, enables eye positions
	FlplocDir     string // optional, enables the mouth position; needs PuplocCascade

	MinSize          int
	MaxSize          int
	ShiftFactor      float64
	ScaleFactor      float64
	IoUThreshold     float64
	QualityThreshold float32
	Perturbs         int
}

// DefaultPigoConfig returns the parameters used for live webcam frames.
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		MinSize:          60,
		MaxSize:          1000,
		ShiftFactor:      0.1,
		ScaleFactor:      1.1,
		IoUThreshold:     0.2,
		QualityThreshold: 5.0,
		Perturbs:         63,
	}
}

// mouthCascades are the flploc cascades that sit on the lips.
var mouthCascades = []string{"lp93", "lp84", "lp82", "lp81"}

// Pigo is a pure Go face detector with optional pupil and mouth
// localisation.
type Pigo struct {
	cfg    PigoConfig
	face   *pigo.Pigo
	puploc *pigo.PuplocCascade
	flp    map[string][]*pigo.FlpCascade
	log    logrus.FieldLogger
}

// NewPigo loads the cascades named in cfg.
func NewPigo(cfg PigoConfig, log logrus.FieldLogger) (*Pigo, error) {
	data, err := os.ReadFile(cfg.FaceCascade)
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}
	face, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}

	p := &Pigo{cfg: cfg, face: face, log: log}

	if cfg.PuplocCascade != "" {
		data, err := os.ReadFile(cfg.PuplocCascade)
		if err != nil {
			return nil, fmt.Errorf("failed to read puploc cascade: %w", err)
		}
		p.puploc, err = pigo.NewPuplocCascade().UnpackCascade(data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack puploc cascade: %w", err)
		}

		if cfg.FlplocDir != "" {
			p.flp, err = p.puploc.ReadCascadeDir(cfg.FlplocDir)
			if err != nil {
				return nil, fmt.Errorf("failed to read flploc cascades: %w", err)
			}
		}
	}

	log.WithFields(logrus.Fields{
		"min_size": cfg.MinSize,
		"quality":  cfg.QualityThreshold,
		"eyes":     p.puploc != nil,
		"mouth":    p.flp != nil,
	}).Info("pigo detector ready")

	return p, nil
}

// Detect finds faces in img.
func (p *Pigo) Detect(ctx context.Context, img image.Image) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if p.face == nil {
		return Result{}, ErrClosed
	}

	src := pigo.ImgToNRGBA(img)
	cols, rows := src.Bounds().Dx(), src.Bounds().Dy()
	frame := geometry.Sz(float64(cols), float64(rows))

	params := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}

	dets := p.face.RunCascade(pigo.CascadeParams{
		MinSize:     p.cfg.MinSize,
		MaxSize:     p.cfg.MaxSize,
		ShiftFactor: p.cfg.ShiftFactor,
		ScaleFactor: p.cfg.ScaleFactor,
		ImageParams: params,
	}, 0.0)
	dets = p.face.ClusterDetections(dets, p.cfg.IoUThreshold)

	faces := make([]FaceFeature, 0, len(dets))
	for _, det := range dets {
		if det.Q < p.cfg.QualityThreshold {
			continue
		}
		f := p.landmarks(det, params)
		faces = append(faces, FromTopLeft(f, frame))
	}

	return Result{Frame: frame, Faces: NMS(faces, p.cfg.IoUThreshold)}, nil
}

// landmarks builds a top-left face from a detection, adding whatever
// landmarks the loaded cascades can find.
func (p *Pigo) landmarks(det pigo.Detection, params pigo.ImageParams) FaceFeature {
	// Pigo reports a centre and a diameter.
	half := float64(det.Scale) / 2
	f := FaceFeature{
		Bounds: geometry.R(float64(det.Col)-half, float64(det.Row)-half, float64(det.Scale), float64(det.Scale)),
		Score:  det.Q,
	}
	if p.puploc == nil {
		return f
	}

	scale := float32(det.Scale)
	left := p.puploc.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: p.cfg.Perturbs,
	}, params, 0.0, false)
	right := p.puploc.RunDetector(pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: p.cfg.Perturbs,
	}, params, 0.0, false)

	f.LeftEye = puplocPoint(left)
	f.RightEye = puplocPoint(right)
	if !f.HasEyes() || p.flp == nil {
		return f
	}

	var mouth []geometry.Point
	for _, name := range mouthCascades {
		for _, c := range p.flp[name] {
			if pt := puplocPoint(c.GetLandmarkPoint(left, right, params, p.cfg.Perturbs, false)); pt != nil {
				mouth = append(mouth, *pt)
			}
		}
	}
	if len(mouth) > 0 {
		c := geometry.BoundingRect(mouth...).Center()
		f.Mouth = &c
	}
	return f
}

func puplocPoint(pl *pigo.Puploc) *geometry.Point {
	if pl == nil || pl.Row <= 0 || pl.Col <= 0 {
		return nil
	}
	return &geometry.Point{X: float64(pl.Col), Y: float64(pl.Row)}
}

// Close releases the cascades. Detect fails with ErrClosed afterwards.
func (p *Pigo) Close() error {
	p.face = nil
	p.puploc = nil
	p.flp = nil
	return nil
}
