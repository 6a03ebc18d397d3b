// Package dataset loads labeled text tables and normalizes them to binary
// dark-pattern examples.
package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Example is a single labeled sentence. Label is 1 for a dark pattern.
type Example struct {
	Text  string
	Label int
}

// Dataset is a normalized set of examples and the columns they came from.
type Dataset struct {
	Examples    []Example
	TextColumn  string
	LabelColumn string
}

// canonical column names
const (
	textColumn  = "text"
	labelColumn = "is_dark"
)

var (
	textHints    = []string{"text", "body", "content", "sentence"}
	labelAliases = []string{"is_dark", "isdark", "dark", "binary_label", "label", "target"}
	// Any lowercased label value containing one of these maps to 0.
	negativeMarkers = []string{"not dark", "no dark", "no", "none", "normal", "clean"}
)

// Load reads a tabular file and returns its normalized examples.
// A nil logger disables logging.
func Load(path string, logger *zap.Logger) (*Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("loading dataset", zap.String("path", path))
	table, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	logger.Info("dataset parsed",
		zap.Strings("columns", table.Header),
		zap.Int("rows", len(table.Rows)))

	textCol, err := DetectTextColumn(table.Header)
	if err != nil {
		return nil, err
	}
	labelCol, err := DetectLabelColumn(table)
	if err != nil {
		return nil, err
	}
	logger.Info("columns detected",
		zap.String("text_column", textCol),
		zap.String("label_column", labelCol))

	labels, err := NormalizeLabels(table.Column(labelCol))
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", labelCol, err)
	}

	texts := table.Column(textCol)
	ds := &Dataset{
		Examples:    make([]Example, len(texts)),
		TextColumn:  textCol,
		LabelColumn: labelCol,
	}
	for i, text := range texts {
		ds.Examples[i] = Example{Text: text, Label: labels[i]}
	}

	counts := ds.Counts()
	logger.Info("label distribution",
		zap.Int("not_dark", counts[0]),
		zap.Int("dark", counts[1]))
	for i := range min(5, len(ds.Examples)) {
		logger.Debug("sample example",
			zap.Int("row", i),
			zap.String("text", ds.Examples[i].Text),
			zap.Int("is_dark", ds.Examples[i].Label))
	}

	return ds, nil
}

// DetectTextColumn prefers an exact "text" header, then the first header
// containing text, body, content or sentence.
func DetectTextColumn(header []string) (string, error) {
	if slices.Contains(header, textColumn) {
		return textColumn, nil
	}
	for _, h := range header {
		low := strings.ToLower(h)
		for _, hint := range textHints {
			if strings.Contains(low, hint) {
				return h, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no text column in %v (want 'text' or a name containing text/body/content/sentence)",
		ErrSchema, header)
}

// DetectLabelColumn prefers an exact "is_dark" header, then the first header
// matching a known alias, then the first numeric column with exactly two
// distinct values.
//
// The numeric fallback is a heuristic: with several binary columns it takes
// the leftmost one.
func DetectLabelColumn(t *Table) (string, error) {
	if slices.Contains(t.Header, labelColumn) {
		return labelColumn, nil
	}
	for _, h := range t.Header {
		if slices.Contains(labelAliases, strings.ToLower(h)) {
			return h, nil
		}
	}
	for _, h := range t.Header {
		values := t.Column(h)
		if isNumeric(values) && distinct(values) == 2 {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: no binary label column in %v (add 'is_dark' or a 0/1 column)",
		ErrSchema, t.Header)
}

// NormalizeLabels maps raw label values to 0/1.
//
// Numeric columns are cast to integers. Textual columns map each lowercased
// value to 0 when it contains a negative marker (not dark, no dark, no, none,
// normal, clean) and to 1 otherwise. The result must contain exactly the
// values 0 and 1.
func NormalizeLabels(values []string) ([]int, error) {
	labels := make([]int, len(values))

	if isNumeric(values) {
		for i, v := range values {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d has no numeric label", ErrDataInvariant, i)
			}
			labels[i] = int(f)
		}
	} else {
		mapping := make(map[string]int)
		for i, v := range values {
			low := strings.ToLower(v)
			label, ok := mapping[low]
			if !ok {
				label = textLabel(low)
				mapping[low] = label
			}
			labels[i] = label
		}
	}

	if err := checkBinary(labels); err != nil {
		return nil, err
	}
	return labels, nil
}

func textLabel(low string) int {
	for _, marker := range negativeMarkers {
		if strings.Contains(low, marker) {
			return 0
		}
	}
	return 1
}

func checkBinary(labels []int) error {
	seen := make(map[int]bool)
	for _, l := range labels {
		seen[l] = true
	}
	values := make([]int, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	slices.Sort(values)
	if !slices.Equal(values, []int{0, 1}) {
		return fmt.Errorf("%w: got values %v", ErrDataInvariant, values)
	}
	return nil
}

// isNumeric reports whether every non-empty value parses as a number and at
// least one value is present.
func isNumeric(values []string) bool {
	found := false
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
		found = true
	}
	return found
}

// distinct counts distinct non-empty numeric values.
func distinct(values []string) int {
	seen := make(map[float64]bool)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			seen[f] = true
		}
	}
	return len(seen)
}

// Counts returns the number of examples per label.
func (d *Dataset) Counts() [2]int {
	return CountLabels(d.Examples)
}

// CountLabels returns the number of examples per label.
func CountLabels(examples []Example) [2]int {
	var counts [2]int
	for _, ex := range examples {
		counts[ex.Label]++
	}
	return counts
}

// Split partitions the examples into disjoint train and validation sets,
// stratified by label. The validation size is ceil(fraction * n), shared
// between labels in proportion to their frequency. The same seed always
// yields the same partition. Each label needs at least two examples.
func (d *Dataset) Split(fraction float64, seed uint64) (train, val []Example, err error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("validation fraction %v outside (0, 1)", fraction)
	}

	var byLabel [2][]int
	for i, ex := range d.Examples {
		byLabel[ex.Label] = append(byLabel[ex.Label], i)
	}
	for label, idx := range byLabel {
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("label %d has %d examples, need at least 2 to stratify", label, len(idx))
		}
	}

	n := len(d.Examples)
	quota := allocate(int(math.Ceil(fraction*float64(n))), [2]int{len(byLabel[0]), len(byLabel[1])})

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	inVal := make([]bool, n)
	for label, idx := range byLabel {
		shuffled := slices.Clone(idx)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		for _, i := range shuffled[:quota[label]] {
			inVal[i] = true
		}
	}

	for i, ex := range d.Examples {
		if inVal[i] {
			val = append(val, ex)
		} else {
			train = append(train, ex)
		}
	}
	return train, val, nil
}

// allocate shares total between two classes proportionally, handing the
// remainder to the larger fractional part, and keeps at least one example of
// each class on both sides.
func allocate(total int, sizes [2]int) [2]int {
	n := sizes[0] + sizes[1]
	var quota [2]int
	var frac [2]float64
	for c := range sizes {
		exact := float64(total) * float64(sizes[c]) / float64(n)
		quota[c] = int(math.Floor(exact))
		frac[c] = exact - float64(quota[c])
	}
	if left := total - quota[0] - quota[1]; left > 0 {
		c := 0
		if frac[1] > frac[0] {
			c = 1
		}
		quota[c] += left
	}
	for c := range quota {
		quota[c] = min(max(quota[c], 1), sizes[c]-1)
	}
	return quota
}
