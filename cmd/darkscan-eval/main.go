package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/jamesainslie/darkscan"
	"github.com/jamesainslie/darkscan/dataset"
	"github.com/jamesainslie/darkscan/internal/calibrate"
)

func main() {
	var (
		modelDir = flag.String("model", "", "Artifact directory (required unless -models is set)")
		models   = flag.String("models", "", "Comma-separated artifact directories for comparison")
		dataPath = flag.String("data", "", "Labeled evaluation file (.csv, .tsv or .xlsx, required)")
		sweepMin = flag.Float64("sweep-min", calibrate.GridMin, "Sweep minimum threshold")
		sweepMax = flag.Float64("sweep-max", calibrate.GridMax, "Sweep maximum threshold")
		steps    = flag.Int("steps", calibrate.GridSteps, "Number of thresholds in the sweep")
		wp       = flag.Float64("wp", 1.0, "Precision weight")
		wr       = flag.Float64("wr", 1.0, "Recall weight")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if (*modelDir == "" && *models == "") || *dataPath == "" {
		fmt.Fprintln(os.Stderr, "error: -data and -model or -models required")
		flag.Usage()
		os.Exit(1)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}

	ds, err := dataset.Load(*dataPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading data: %v\n", err)
		os.Exit(1)
	}
	counts := ds.Counts()
	fmt.Printf("Loaded %d examples from %s (not_dark=%d, dark=%d)\n\n", len(ds.Examples), *dataPath, counts[0], counts[1])

	thresholds := calibrate.SweepThresholds(*sweepMin, *sweepMax, *steps)
	w := weights{precision: *wp, recall: *wr}
	ctx := context.Background()

	if *models != "" {
		runModelComparison(ctx, strings.Split(*models, ","), ds, thresholds, w, logger)
		return
	}
	runSweep(ctx, *modelDir, ds, thresholds, w, logger)
}

type weights struct {
	precision, recall float64
}

func (w weights) score(m calibrate.Metrics) float64 {
	if w.precision+w.recall == 0 {
		return 0
	}
	return (w.precision*m.Precision + w.recall*m.Recall) / (w.precision + w.recall)
}

// score loads the artifact in dir and returns its probabilities with the
// stored threshold.
func score(ctx context.Context, dir string, ds *dataset.Dataset, logger *zap.Logger) ([]float64, []int, float64, error) {
	det, err := darkscan.Load(dir, darkscan.WithLogger(logger))
	if err != nil {
		return nil, nil, 0, err
	}
	defer func() { _ = det.Close() }()

	texts := make([]string, len(ds.Examples))
	labels := make([]int, len(ds.Examples))
	for i, ex := range ds.Examples {
		texts[i] = ex.Text
		labels[i] = ex.Label
	}
	probs, err := det.Score(ctx, texts)
	if err != nil {
		return nil, nil, 0, err
	}
	return probs, labels, det.Threshold(), nil
}

func runSweep(ctx context.Context, dir string, ds *dataset.Dataset, thresholds []float64, w weights, logger *zap.Logger) {
	probs, labels, stored, err := score(ctx, dir, ds, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error scoring %s: %v\n", dir, err)
		os.Exit(1)
	}

	rows := calibrate.Sweep(probs, labels, thresholds)

	fmt.Printf("Threshold Sweep Results (wp=%.1f, wr=%.1f)\n", w.precision, w.recall)
	fmt.Println(strings.Repeat("-", 66))
	fmt.Printf("%-8s %-8s %-8s %-8s %-8s %-6s %-6s\n", "Thresh", "Prec", "Rec", "F1", "Weighted", "FP", "FN")
	for _, r := range rows {
		fmt.Printf("%-8.3f %-8.3f %-8.3f %-8.3f %-8.3f %-6d %-6d\n",
			r.Threshold, r.Metrics.Precision, r.Metrics.Recall, r.Metrics.F1, w.score(r.Metrics),
			r.Metrics.FalsePositives, r.Metrics.FalseNegatives)
	}
	fmt.Println(strings.Repeat("-", 66))

	if chosen, ok := calibrate.Select(rows); ok {
		policy := "highest precision"
		if chosen.Metrics.FalsePositives == 0 {
			policy = "zero false positives"
		}
		fmt.Printf("Selected: %.3f (%s, F1 %.3f)\n", chosen.Threshold, policy, chosen.Metrics.F1)
	}

	m := calibrate.Evaluate(probs, labels, stored)
	fmt.Printf("Stored:   %.3f (Prec %.3f, Rec %.3f, F1 %.3f, Acc %.3f)\n",
		stored, m.Precision, m.Recall, m.F1, m.Accuracy())
}

func runModelComparison(ctx context.Context, dirs []string, ds *dataset.Dataset, thresholds []float64, w weights, logger *zap.Logger) {
	fmt.Printf("Model Comparison (wp=%.1f, wr=%.1f)\n", w.precision, w.recall)
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("%-30s %-8s %-8s %-8s %-8s %-6s\n", "Model", "Thresh", "Prec", "F1", "Weighted", "FP")

	for _, dir := range dirs {
		probs, labels, _, err := score(ctx, dir, ds, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error with %s: %v\n", dir, err)
			continue
		}
		chosen, _ := calibrate.Select(calibrate.Sweep(probs, labels, thresholds))
		fmt.Printf("%-30s %-8.3f %-8.3f %-8.3f %-8.3f %-6d\n",
			dir, chosen.Threshold, chosen.Metrics.Precision, chosen.Metrics.F1,
			w.score(chosen.Metrics), chosen.Metrics.FalsePositives)
	}
}
