// Package scrfd wraps the SCRFD ONNX face detector. Its five keypoints give
// both eyes and the mouth corners.
package scrfd

import (
	"context"
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/augcam/internal/detector"
	"github.com/dudu/augcam/internal/geometry"
	"github.com/dudu/augcam/internal/inference"
)

// Config holds model and threshold settings.
type Config struct {
	ModelPath     string
	InputSize     int
	ConfThreshold float32
	NMSThreshold  float64
}

// Detector implements detector.Detector with SCRFD.
type Detector struct {
	session        *inference.Session
	inputSize      int
	confThreshold  float32
	nmsThreshold   float64
	featureStrides []int
	numAnchors     int
}

var _ detector.Detector = (*Detector)(nil)

// New creates a SCRFD detector. inference.Initialize must have been called.
func New(cfg Config) (*Detector, error) {
	// 1 input, 9 outputs (3 levels x score, bbox, kps)
	inputNames := []string{"input.1"}
	outputNames := []string{
		"score_8", "score_16", "score_32",
		"bbox_8", "bbox_16", "bbox_32",
		"kps_8", "kps_16", "kps_32",
	}

	session, err := inference.NewSession(cfg.ModelPath, inputNames, outputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create SCRFD session: %w", err)
	}

	return &Detector{
		session:        session,
		inputSize:      cfg.InputSize,
		confThreshold:  cfg.ConfThreshold,
		nmsThreshold:   cfg.NMSThreshold,
		featureStrides: []int{8, 16, 32},
		numAnchors:     2,
	}, nil
}

// Detect finds faces in img and reports them in sensor space.
func (s *Detector) Detect(ctx context.Context, img image.Image) (detector.Result, error) {
	if err := ctx.Err(); err != nil {
		return detector.Result{}, err
	}
	if s.session == nil {
		return detector.Result{}, detector.ErrClosed
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return detector.Result{}, fmt.Errorf("failed to convert frame: %w", err)
	}
	defer mat.Close()

	frame := geometry.Sz(float64(mat.Cols()), float64(mat.Rows()))

	inputBlob, scale := s.preprocess(mat)
	defer inputBlob.Close()

	blobData, err := inputBlob.DataPtrFloat32()
	if err != nil {
		return detector.Result{}, fmt.Errorf("failed to read input blob: %w", err)
	}

	inputTensor, err := ort.NewTensor(
		ort.NewShape(1, 3, int64(s.inputSize), int64(s.inputSize)),
		blobData,
	)
	if err != nil {
		return detector.Result{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, 9)
	outputTensors := make([]*ort.Tensor[float32], 9)
	defer func() {
		for _, t := range outputTensors {
			if t != nil {
				t.Destroy()
			}
		}
	}()

	for i, stride := range s.featureStrides {
		fm := s.inputSize / stride
		anchors := int64(fm * fm * s.numAnchors)

		for j, width := range []int64{1, 4, 10} {
			t, err := inference.CreateEmptyTensor[float32]([]int64{anchors, width})
			if err != nil {
				return detector.Result{}, fmt.Errorf("failed to create output tensor: %w", err)
			}
			outputs[i+3*j] = t
			outputTensors[i+3*j] = t
		}
	}

	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return detector.Result{}, fmt.Errorf("inference failed: %w", err)
	}

	faces := s.postprocess(outputTensors, scale, frame)
	faces = detector.NMS(faces, s.nmsThreshold)

	for i := range faces {
		faces[i] = detector.FromTopLeft(faces[i], frame)
	}
	return detector.Result{Frame: frame, Faces: faces}, nil
}

// preprocess letterboxes the frame into the model's square input and
// normalises it to CHW float32.
func (s *Detector) preprocess(img gocv.Mat) (gocv.Mat, float32) {
	height := img.Rows()
	width := img.Cols()

	scale := float32(s.inputSize) / float32(max(height, width))
	newWidth := int(float32(width) * scale)
	newHeight := int(float32(height) * scale)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(newWidth, newHeight), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMatWithSize(s.inputSize, s.inputSize, gocv.MatTypeCV8UC3)
	defer padded.Close()
	padded.SetTo(gocv.NewScalar(0, 0, 0, 0))

	roi := padded.Region(image.Rect(0, 0, newWidth, newHeight))
	resized.CopyTo(&roi)
	roi.Close()

	// (x - 127.5) / 128, BGR to RGB, HWC to CHW
	blob := gocv.BlobFromImage(padded, 1.0/128.0, image.Pt(s.inputSize, s.inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)

	return blob, scale
}

// postprocess decodes anchor outputs into top-left faces in frame pixels.
func (s *Detector) postprocess(outputs []*ort.Tensor[float32], scale float32, frame geometry.Size) []detector.FaceFeature {
	var faces []detector.FaceFeature

	for level, stride := range s.featureStrides {
		fm := s.inputSize / stride
		st := float32(stride)

		scoreData := outputs[level].GetData()
		bboxData := outputs[level+3].GetData()
		kpsData := outputs[level+6].GetData()

		anchorIdx := 0
		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				for a := 0; a < s.numAnchors; a++ {
					score := sigmoid(scoreData[anchorIdx])
					if score <= s.confThreshold {
						anchorIdx++
						continue
					}

					cx := (float32(x) + 0.5) * st
					cy := (float32(y) + 0.5) * st

					b := anchorIdx * 4
					x1 := clamp((cx-bboxData[b]*st)/scale, frame.Width)
					y1 := clamp((cy-bboxData[b+1]*st)/scale, frame.Height)
					x2 := clamp((cx+bboxData[b+2]*st)/scale, frame.Width)
					y2 := clamp((cy+bboxData[b+3]*st)/scale, frame.Height)

					k := anchorIdx * 10
					kp := func(i int) geometry.Point {
						return geometry.Pt(
							float64((cx+kpsData[k+2*i]*st)/scale),
							float64((cy+kpsData[k+2*i+1]*st)/scale),
						)
					}
					leftEye, rightEye := kp(0), kp(1)
					mouth := kp(3).Midpoint(kp(4))

					faces = append(faces, detector.FaceFeature{
						Bounds:   geometry.R(x1, y1, x2-x1, y2-y1),
						LeftEye:  &leftEye,
						RightEye: &rightEye,
						Mouth:    &mouth,
						Score:    score,
					})
					anchorIdx++
				}
			}
		}
	}

	return faces
}

// Close releases the ONNX session. Detect fails with detector.ErrClosed
// afterwards.
func (s *Detector) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	return err
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + float32(math.Exp(float64(-x))))
}

func clamp(v float32, limit float64) float64 {
	return math.Max(0, math.Min(float64(v), limit))
}
