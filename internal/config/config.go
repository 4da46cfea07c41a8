// Package config loads application settings from defaults, a .env file,
// AUGCAM_* environment variables and command line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AUGCAM_"

// Config holds application settings.
type Config struct {
	CameraIndex    int    `validate:"gte=0"`
	CameraPosition string `validate:"oneof=front back"`
	Width          int    `validate:"gte=0"`
	Height         int    `validate:"gte=0"`
	TargetFPS      int    `validate:"gte=1,lte=240"`
	QueueSize      int    `validate:"gte=1,lte=16"`
	Orientation    string `validate:"oneof=portrait portrait-upside-down landscape-left landscape-right"`

	Backend       string  `validate:"oneof=pigo scrfd"`
	CascadeDir    string  `validate:"required_if=Backend pigo"`
	ModelPath     string  `validate:"required_if=Backend scrfd"`
	ORTLibrary    string
	DetectionSize int     `validate:"gte=160,lte=1280"`
	ConfThreshold float64 `validate:"gt=0,lt=1"`
	NMSThreshold  float64 `validate:"gt=0,lt=1"`
	Smoothing     float64 `validate:"gt=0,lte=1"`

	OverlayDir    string
	PreviewWidth  int `validate:"gte=0"`
	PreviewHeight int `validate:"gte=0"`
	Mirror        bool
	Debug         bool
	Window        bool

	ServerAddr string `validate:"omitempty,hostname_port"`
	LogLevel   string `validate:"oneof=trace debug info warn error"`
	LogDir     string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		CameraPosition: "front",
		Width:          1280,
		Height:         720,
		TargetFPS:      30,
		QueueSize:      1,
		Orientation:    "landscape-right",
		Backend:        "pigo",
		CascadeDir:     "cascades",
		ModelPath:      "models/scrfd_10g.onnx",
		DetectionSize:  640,
		ConfThreshold:  0.5,
		NMSThreshold:   0.4,
		Smoothing:      1,
		Window:         true,
		LogLevel:       "info",
	}
}

// Load builds the configuration. envFile may be empty or missing.
// It returns flag.ErrHelp when -h was given.
func Load(args []string, envFile string) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.parseFlags(args, os.Stderr); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	vars := []struct {
		key string
		dst any
	}{
		{"CAMERA", &c.CameraIndex},
		{"CAMERA_POSITION", &c.CameraPosition},
		{"WIDTH", &c.Width},
		{"HEIGHT", &c.Height},
		{"FPS", &c.TargetFPS},
		{"QUEUE_SIZE", &c.QueueSize},
		{"ORIENTATION", &c.Orientation},
		{"BACKEND", &c.Backend},
		{"CASCADE_DIR", &c.CascadeDir},
		{"MODEL", &c.ModelPath},
		{"ORT_LIBRARY", &c.ORTLibrary},
		{"DETECTION_SIZE", &c.DetectionSize},
		{"CONF_THRESHOLD", &c.ConfThreshold},
		{"NMS_THRESHOLD", &c.NMSThreshold},
		{"SMOOTHING", &c.Smoothing},
		{"OVERLAY_DIR", &c.OverlayDir},
		{"PREVIEW_WIDTH", &c.PreviewWidth},
		{"PREVIEW_HEIGHT", &c.PreviewHeight},
		{"MIRROR", &c.Mirror},
		{"DEBUG", &c.Debug},
		{"WINDOW", &c.Window},
		{"SERVER_ADDR", &c.ServerAddr},
		{"LOG_LEVEL", &c.LogLevel},
		{"LOG_DIR", &c.LogDir},
	}

	for _, v := range vars {
		raw, ok := lookup(EnvPrefix + v.key)
		if !ok {
			continue
		}
		if err := setValue(v.dst, raw); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, v.key, err)
		}
	}
	return nil
}

func setValue(dst any, raw string) error {
	switch p := dst.(type) {
	case *string:
		*p = raw
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*p = n
	case *float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*p = f
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*p = b
	default:
		return fmt.Errorf("unsupported type %T", dst)
	}
	return nil
}

func (c *Config) parseFlags(args []string, out io.Writer) error {
	flags := flag.NewFlagSet("augcam", flag.ContinueOnError)
	flags.SetOutput(out)

	flags.IntVar(&c.CameraIndex, "camera", c.CameraIndex, "Camera device index")
	flags.IntVar(&c.CameraIndex, "c", c.CameraIndex, "Camera device index (shorthand)")
	flags.StringVar(&c.CameraPosition, "position", c.CameraPosition, "Camera position: front or back")
	flags.IntVar(&c.Width, "width", c.Width, "Capture width")
	flags.IntVar(&c.Height, "height", c.Height, "Capture height")
	flags.IntVar(&c.TargetFPS, "fps", c.TargetFPS, "Target frames per second")
	flags.IntVar(&c.QueueSize, "queue", c.QueueSize, "Frame queue size; late frames beyond it are dropped")
	flags.StringVar(&c.Orientation, "orientation", c.Orientation, "Interface orientation frames are shown in: portrait, portrait-upside-down, landscape-left or landscape-right")
	flags.StringVar(&c.Backend, "backend", c.Backend, "Face detector: pigo or scrfd")
	flags.StringVar(&c.Backend, "b", c.Backend, "Face detector (shorthand)")
	flags.StringVar(&c.CascadeDir, "cascades", c.CascadeDir, "Pigo cascade directory")
	flags.StringVar(&c.ModelPath, "model", c.ModelPath, "SCRFD ONNX model")
	flags.StringVar(&c.ModelPath, "m", c.ModelPath, "SCRFD ONNX model (shorthand)")
	flags.StringVar(&c.ORTLibrary, "ort", c.ORTLibrary, "ONNX Runtime shared library")
	flags.IntVar(&c.DetectionSize, "det-size", c.DetectionSize, "SCRFD input size")
	flags.Float64Var(&c.ConfThreshold, "conf", c.ConfThreshold, "Detection confidence threshold")
	flags.Float64Var(&c.NMSThreshold, "nms", c.NMSThreshold, "NMS IoU threshold")
	flags.Float64Var(&c.Smoothing, "smoothing", c.Smoothing, "Face smoothing factor, 1 disables")
	flags.StringVar(&c.OverlayDir, "overlays", c.OverlayDir, "Directory of glasses images")
	flags.StringVar(&c.OverlayDir, "o", c.OverlayDir, "Directory of glasses images (shorthand)")
	flags.IntVar(&c.PreviewWidth, "preview-width", c.PreviewWidth, "Preview width, 0 follows the frame")
	flags.IntVar(&c.PreviewHeight, "preview-height", c.PreviewHeight, "Preview height, 0 follows the frame")
	flags.BoolVar(&c.Mirror, "mirror", c.Mirror, "Mirror the preview")
	flags.BoolVar(&c.Debug, "debug", c.Debug, "Draw face box and landmarks")
	flags.BoolVar(&c.Debug, "d", c.Debug, "Draw face box and landmarks (shorthand)")
	flags.BoolVar(&c.Window, "window", c.Window, "Show preview window")
	flags.BoolVar(&c.Window, "w", c.Window, "Show preview window (shorthand)")
	flags.StringVar(&c.ServerAddr, "addr", c.ServerAddr, "Debug server address, empty disables")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level")
	flags.StringVar(&c.LogDir, "log-dir", c.LogDir, "Directory for rotated log files")

	flags.Usage = func() {
		fmt.Fprintf(out, "augcam - augmented camera preview\n\n")
		fmt.Fprintf(out, "Usage: augcam [options]\n\n")
		fmt.Fprintf(out, "Options:\n")
		flags.PrintDefaults()
		fmt.Fprintf(out, "\nEvery option can also be set as %s<NAME> in the environment or .env.\n", EnvPrefix)
		fmt.Fprintf(out, "\nExamples:\n")
		fmt.Fprintf(out, "  augcam --cascades ./cascades --overlays ./glasses\n")
		fmt.Fprintf(out, "  augcam --backend scrfd --model models/scrfd_10g.onnx --addr :8080\n")
	}

	return flags.Parse(args)
}
