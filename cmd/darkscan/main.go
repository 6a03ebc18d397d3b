package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"go.uber.org/zap"

	"github.com/jamesainslie/darkscan"
	"github.com/jamesainslie/darkscan/inference"
)

func main() {
	modelDir := flag.String("model", "dark_pattern_model", "Path to the trained artifact directory")
	mode := flag.String("mode", "paragraph", "Mode: sentence or paragraph")
	asJSON := flag.Bool("json", false, "Print detections as JSON records")
	threshold := flag.Float64("threshold", -1, "Override the stored decision threshold")
	strict := flag.Bool("strict", false, "Fail when meta.json has no decision threshold")
	device := flag.String("device", "auto", "ONNX execution provider: auto, cpu, cuda or cuda:N")
	verbose := flag.Bool("verbose", false, "Enable debug logging")

	flag.Parse()

	text := strings.Join(flag.Args(), " ")
	if text == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
			os.Exit(1)
		}
		text = string(data)
	}
	if strings.TrimSpace(text) == "" {
		fmt.Fprintln(os.Stderr, "Usage: darkscan [-model DIR] [-mode sentence|paragraph] [-json] TEXT")
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()

	dev, err := inference.ParseDevice(*device)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := []darkscan.Option{darkscan.WithLogger(logger), darkscan.WithDevice(dev)}
	if *threshold >= 0 {
		opts = append(opts, darkscan.WithThreshold(*threshold))
	}
	if *strict {
		opts = append(opts, darkscan.WithStrictThreshold())
	}

	det, err := darkscan.Load(*modelDir, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = det.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch *mode {
	case "sentence":
		label, prob, err := det.ScoreSentence(ctx, strings.TrimSpace(text))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *asJSON {
			printJSON(map[string]any{
				"sentence":    strings.TrimSpace(text),
				"label":       label.String(),
				"probability": prob,
				"threshold":   det.Threshold(),
			})
			return
		}
		fmt.Printf("Sentence: %q\n", strings.TrimSpace(text))
		fmt.Printf("Prediction: %s\n", strings.ToUpper(strings.ReplaceAll(label.String(), "_", " ")))
		fmt.Printf("Probability: %.4f\n", prob)
		fmt.Printf("Threshold: %.4f\n", det.Threshold())

	case "paragraph":
		detections, err := det.Detect(ctx, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if *asJSON {
			printJSON(detections)
			return
		}
		fmt.Printf("Decision threshold: %.4f\n", det.Threshold())
		fmt.Printf("Detected dark sentences (%d):\n", len(detections))
		for _, d := range detections {
			fmt.Printf("  - [%.4f] %s\n", d.Probability, d.Sentence)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown mode: %s\n", *mode)
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
