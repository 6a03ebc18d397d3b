package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/jamesainslie/darkscan"
	"github.com/jamesainslie/darkscan/train"
)

const demoText = "Continue to your free trial! You will be charged automatically " +
	"each month unless you cancel within 24 hours. " +
	"We respect your privacy and never misuse your data."

func main() {
	configPath := flag.String("config", "", "Optional YAML training config")
	dataPath := flag.String("data", "", "Labeled dataset (.csv, .tsv or .xlsx)")
	outputDir := flag.String("output", "", "Artifact output directory")
	tokenizerPath := flag.String("tokenizer", "", "tokenizer.json, sentencepiece model or vocab.json (default: build from data)")
	epochs := flag.Int("epochs", 0, "Number of epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	lr := flag.Float64("lr", 0, "Peak learning rate")
	maxLen := flag.Int("max-len", 0, "Maximum sequence length including BOS/EOS")
	seed := flag.Uint64("seed", 0, "Random seed")
	demo := flag.Bool("demo", false, "Reload the artifact and run detection on a sample paragraph")
	verbose := flag.Bool("verbose", false, "Enable debug logging")

	flag.Parse()

	cfg := train.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = train.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	// flags override the file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DataPath = *dataPath
		case "output":
			cfg.OutputDir = *outputDir
		case "tokenizer":
			cfg.Tokenizer = *tokenizerPath
		case "epochs":
			cfg.Epochs = *epochs
		case "batch-size":
			cfg.BatchSize = *batchSize
		case "lr":
			cfg.LearningRate = *lr
		case "max-len":
			cfg.MaxLen = *maxLen
		case "seed":
			cfg.Seed = *seed
		}
	})

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := train.Run(ctx, cfg, logger)
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	fmt.Printf("Saved model to %s (decision threshold %.3f)\n", summary.OutputDir, summary.Threshold)

	if *demo {
		if err := runDemo(ctx, summary.OutputDir, logger); err != nil {
			logger.Error("demo failed", zap.Error(err))
			_ = logger.Sync()
			os.Exit(1)
		}
	}
}

func runDemo(ctx context.Context, dir string, logger *zap.Logger) error {
	det, err := darkscan.Load(dir, darkscan.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = det.Close() }()

	detections, err := det.Detect(ctx, demoText)
	if err != nil {
		return err
	}

	fmt.Printf("\nDecision threshold used: %.3f\n", det.Threshold())
	fmt.Printf("Input text:\n%s\n\nDetected dark sentences:\n", demoText)
	for _, d := range detections {
		fmt.Printf("- [%.3f] %s\n", d.Probability, d.Sentence)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
