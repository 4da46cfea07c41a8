package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tsawler/go-metal/checkpoints"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/augcam/internal/inference"
	"github.com/dudu/augcam/pkg/log"
)

// scrfdOutputs are the tensors the SCRFD detector reads.
var scrfdOutputs = []string{
	"score_8", "score_16", "score_32",
	"bbox_8", "bbox_16", "bbox_32",
	"kps_8", "kps_16", "kps_32",
}

type Config struct {
	ModelPath  string
	ORTLibrary string
	Metal      bool
}

func main() {
	config := parseFlags()
	if config.ModelPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --model flag is required")
		flag.Usage()
		os.Exit(1)
	}

	logger, err := log.New(log.Config{Level: "info"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(config, logger); err != nil {
		logger.WithError(err).Error("model check failed")
		os.Exit(1)
	}
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.ModelPath, "model", "", "ONNX detector model (required)")
	flag.StringVar(&config.ModelPath, "m", "", "ONNX detector model (shorthand)")
	flag.StringVar(&config.ORTLibrary, "ort", "", "ONNX Runtime shared library")
	flag.BoolVar(&config.Metal, "metal", false, "Also try importing the model with go-metal")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "modelcheck - verify a face detector model before running augcam\n\n")
		fmt.Fprintf(os.Stderr, "Usage: modelcheck [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  modelcheck --model models/scrfd_10g.onnx\n")
		fmt.Fprintf(os.Stderr, "  modelcheck --model models/scrfd_10g.onnx --metal\n")
	}

	flag.Parse()
	return config
}

func run(config Config, logger *logrus.Logger) error {
	if _, err := os.Stat(config.ModelPath); err != nil {
		return fmt.Errorf("model not found: %w", err)
	}

	if err := inference.Initialize(config.ORTLibrary, logger); err != nil {
		return err
	}
	defer inference.Shutdown()

	inputs, outputs, err := ort.GetInputOutputInfo(config.ModelPath)
	if err != nil {
		return fmt.Errorf("failed to get model info: %w", err)
	}
	for _, info := range inputs {
		logger.WithFields(logrus.Fields{"name": info.Name, "shape": info.Dimensions, "type": info.DataType}).Info("input")
	}
	found := make(map[string]bool, len(outputs))
	for _, info := range outputs {
		found[info.Name] = true
		logger.WithFields(logrus.Fields{"name": info.Name, "shape": info.Dimensions, "type": info.DataType}).Info("output")
	}

	var missing []string
	for _, name := range scrfdOutputs {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("model lacks SCRFD outputs %v", missing)
	}

	if metadata, err := ort.GetModelMetadata(config.ModelPath); err == nil {
		entry := logger.WithField("model", config.ModelPath)
		if producer, err := metadata.GetProducerName(); err == nil {
			entry = entry.WithField("producer", producer)
		}
		if version, err := metadata.GetVersion(); err == nil {
			entry = entry.WithField("version", version)
		}
		entry.Info("metadata")
		metadata.Destroy()
	}

	if config.Metal {
		checkpoint, err := checkpoints.NewONNXImporter().ImportFromONNX(config.ModelPath)
		if err != nil {
			// go-metal supports a small operator set.
			logger.WithError(err).Warn("go-metal import failed")
		} else {
			logger.WithFields(logrus.Fields{
				"layers":  len(checkpoint.ModelSpec.Layers),
				"weights": len(checkpoint.Weights),
			}).Info("go-metal import succeeded")
		}
	}

	logger.Info("model is usable by the SCRFD detector")
	return nil
}
