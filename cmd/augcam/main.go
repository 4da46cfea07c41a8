package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dudu/augcam/internal/camera"
	"github.com/dudu/augcam/internal/camera/webcam"
	"github.com/dudu/augcam/internal/config"
	"github.com/dudu/augcam/internal/detector"
	"github.com/dudu/augcam/internal/detector/scrfd"
	"github.com/dudu/augcam/internal/geometry"
	"github.com/dudu/augcam/internal/inference"
	"github.com/dudu/augcam/internal/overlay"
	"github.com/dudu/augcam/internal/pipeline"
	"github.com/dudu/augcam/internal/render"
	"github.com/dudu/augcam/internal/server"
	"github.com/dudu/augcam/internal/tracking"
	"github.com/dudu/augcam/internal/ui"
	"github.com/dudu/augcam/pkg/log"
)

func init() {
	// Lock the main goroutine to the main OS thread.
	// This is required on macOS for OpenCV's highgui (window creation).
	runtime.LockOSThread()
}

func main() {
	cfg, err := config.Load(os.Args[1:], ".env")
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger, err := log.New(log.Config{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("augcam failed")
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	det, err := newDetector(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create detector: %w", err)
	}

	glasses, err := newCatalog(cfg)
	if err != nil {
		det.Close()
		return fmt.Errorf("failed to load overlays: %w", err)
	}

	position := camera.PositionFront
	if cfg.CameraPosition == "back" {
		position = camera.PositionBack
	}
	src, err := webcam.New(webcam.Options{
		Devices: []camera.Device{{
			ID:       strconv.Itoa(cfg.CameraIndex),
			Name:     fmt.Sprintf("camera %d", cfg.CameraIndex),
			Position: position,
			Kind:     camera.KindWideAngle,
		}},
		Width:       cfg.Width,
		Height:      cfg.Height,
		TargetFPS:   cfg.TargetFPS,
		QueueSize:   cfg.QueueSize,
		Orientation: geometry.InitialVideoOrientation(geometry.ParseInterfaceOrientation(cfg.Orientation)),
	}, logger)
	if err != nil {
		det.Close()
		return fmt.Errorf("failed to create camera: %w", err)
	}
	defer src.Close()

	tracker := tracking.New(tracking.WithLogger(logger), tracking.WithSmoothing(cfg.Smoothing))
	tracker.OnClear(func() { logger.WithField("session", tracker.Session()).Debug("overlay cleared") })
	compositor := render.NewCompositor(render.Options{Debug: cfg.Debug})

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithTracker(tracker),
		pipeline.WithCompositor(compositor),
		pipeline.WithImages(glasses),
	}

	var window *ui.Window
	if cfg.Window {
		window = ui.NewWindow("augcam", cfg.Width, cfg.Height)
		opts = append(opts, pipeline.WithSink(window))
	}
	var srv *server.Server
	if cfg.ServerAddr != "" {
		srv = server.New(logger)
		opts = append(opts, pipeline.WithSink(srv))
	}

	p := pipeline.New(pipeline.Config{
		Preview: geometry.Sz(float64(cfg.PreviewWidth), float64(cfg.PreviewHeight)),
		Mirror:  cfg.Mirror,
	}, src, det, opts...)
	defer func() {
		if err := p.Close(); err != nil {
			logger.WithError(err).Warn("pipeline close failed")
		}
		if cfg.Backend == string(pipeline.BackendSCRFD) {
			inference.Shutdown()
		}
	}()

	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("failed to start camera: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := p.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if srv != nil {
		g.Go(func() error {
			return srv.Listen(cfg.ServerAddr)
		})
	}

	logger.WithFields(logrus.Fields{
		"backend": cfg.Backend,
		"session": tracker.Session(),
		"glasses": glasses.Len(),
	}).Info("running, press q to quit")

	if window != nil {
		rotations := []geometry.DeviceOrientation{
			geometry.DevicePortrait,
			geometry.DeviceLandscapeLeft,
			geometry.DevicePortraitUpsideDown,
			geometry.DeviceLandscapeRight,
		}
		turn := len(rotations) - 1
		err = window.Run(ctx, func(key int) bool {
			switch key {
			case 'q', ui.KeyEscape:
				return false
			case 'n':
				logger.WithField("glasses", glasses.Next().Name).Info("glasses selected")
			case 'p':
				logger.WithField("glasses", glasses.Prev().Name).Info("glasses selected")
			case 'm':
				compositor.SetDebug(!compositor.Debug())
			case 'r':
				turn = (turn + 1) % len(rotations)
				src.SetDeviceOrientation(rotations[turn])
				logger.WithField("orientation", src.Orientation()).Info("rotated")
			}
			return true
		})
		stop()
	} else {
		<-ctx.Done()
	}

	if stopErr := src.Stop(); stopErr != nil && !errors.Is(stopErr, camera.ErrNotRunning) {
		logger.WithError(stopErr).Warn("camera stop failed")
	}
	if srv != nil {
		srv.Close()
	}
	if waitErr := g.Wait(); waitErr != nil && err == nil {
		err = waitErr
	}

	processed, failed := p.Stats()
	logger.WithFields(logrus.Fields{
		"frames":  processed,
		"dropped": src.Dropped(),
		"failed":  failed,
	}).Info("shutting down")
	return err
}

func newDetector(cfg config.Config, logger *logrus.Logger) (pipeline.FaceDetector, error) {
	switch pipeline.Backend(cfg.Backend) {
	case pipeline.BackendSCRFD:
		if err := inference.Initialize(cfg.ORTLibrary, logger); err != nil {
			return nil, err
		}
		return scrfd.New(scrfd.Config{
			ModelPath:     cfg.ModelPath,
			InputSize:     cfg.DetectionSize,
			ConfThreshold: float32(cfg.ConfThreshold),
			NMSThreshold:  cfg.NMSThreshold,
		})
	default:
		pc := detector.DefaultPigoConfig()
		pc.FaceCascade = filepath.Join(cfg.CascadeDir, "facefinder")
		if _, err := os.Stat(filepath.Join(cfg.CascadeDir, "puploc")); err == nil {
			pc.PuplocCascade = filepath.Join(cfg.CascadeDir, "puploc")
			if _, err := os.Stat(filepath.Join(cfg.CascadeDir, "lps")); err == nil {
				pc.FlplocDir = filepath.Join(cfg.CascadeDir, "lps")
			}
		}
		return detector.NewPigo(pc, logger)
	}
}

func newCatalog(cfg config.Config) (*overlay.Catalog, error) {
	if cfg.OverlayDir != "" {
		return overlay.LoadCatalog(cfg.OverlayDir)
	}
	return overlay.BuiltinCatalog(400)
}
