//go:build ignore

// Merge labeled dark-pattern files into one training CSV with the columns
// text,is_dark. Every .csv, .tsv and .xlsx under -in is loaded with the same
// schema detection as training; duplicate texts keep their first label.
// Usage: go run ./scripts/merge-datasets.go -in data/raw -out data/dataset.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jamesainslie/darkscan/dataset"
)

func main() {
	inDir := flag.String("in", "data/raw", "Directory with labeled files")
	outFile := flag.String("out", "data/dataset.csv", "Merged CSV to write")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	files, err := findFiles(*inDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error scanning %s: %v\n", *inDir, err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No .csv, .tsv or .xlsx files in %s\n", *inDir)
		os.Exit(1)
	}

	var (
		merged     []dataset.Example
		seen       = map[string]bool{}
		duplicates int
	)
	for _, path := range files {
		fmt.Printf("Processing %s...\n", path)
		ds, err := dataset.Load(path, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", path, err)
			continue
		}
		for _, ex := range ds.Examples {
			key := strings.ToLower(strings.Join(strings.Fields(ex.Text), " "))
			if seen[key] {
				duplicates++
				continue
			}
			seen[key] = true
			merged = append(merged, ex)
		}
	}

	if err := writeCSV(*outFile, merged); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *outFile, err)
		os.Exit(1)
	}

	counts := dataset.CountLabels(merged)
	fmt.Printf("\nDone! %d examples (not_dark=%d, dark=%d, %d duplicates dropped) -> %s\n",
		len(merged), counts[0], counts[1], duplicates, *outFile)
}

func findFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv", ".tsv", ".xlsx", ".xlsm":
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func writeCSV(path string, examples []dataset.Example) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"text", "is_dark"}); err != nil {
		return err
	}
	for _, ex := range examples {
		if err := w.Write([]string{ex.Text, strconv.Itoa(ex.Label)}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}
