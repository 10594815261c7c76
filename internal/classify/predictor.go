package classify

import (
	"fmt"
	"sync"

	"github.com/sjwhitworth/golearn/base"
)

// Predictor produces class names for every row of a data grid.
// Implementations should be safe for concurrent use.
type Predictor interface {
	PredictClasses(grid base.FixedDataGrid) ([]string, error)
}

// MajorityFallback predicts the majority training class for every row. It
// stands in when no trained model is available, so downstream reporting
// keeps working.
type MajorityFallback struct {
	mu       sync.RWMutex
	majority string
	counts   map[string]int
}

// NewMajorityFallback builds the fallback from the training labels.
func NewMajorityFallback(labels []string) (*MajorityFallback, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("classify: fallback needs at least one label")
	}
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	majority, best := "", -1
	for l, c := range counts {
		if c > best || (c == best && l < majority) {
			majority, best = l, c
		}
	}
	return &MajorityFallback{majority: majority, counts: counts}, nil
}

// PredictClasses returns the majority class once per row of grid.
func (m *MajorityFallback) PredictClasses(grid base.FixedDataGrid) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, rows := grid.Size()
	out := make([]string, rows)
	for i := range out {
		out[i] = m.majority
	}
	return out, nil
}

// Majority returns the fallback's class.
func (m *MajorityFallback) Majority() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.majority
}

// EvaluateClasses scores predicted class names against the true labels,
// deriving accuracy, confusion counts, and per-class precision/recall/F1.
// It evaluates any Predictor's output, trained forest or fallback alike.
func EvaluateClasses(predicted, truth []string) (*Evaluation, error) {
	if len(truth) == 0 {
		return nil, fmt.Errorf("classify: cannot evaluate on empty test set")
	}
	if len(predicted) != len(truth) {
		return nil, fmt.Errorf("classify: %d predictions for %d labels", len(predicted), len(truth))
	}

	classes := make(map[string]bool)
	confusion := make(map[string]map[string]int)
	correct := 0
	for i, ref := range truth {
		classes[ref] = true
		classes[predicted[i]] = true
		if confusion[ref] == nil {
			confusion[ref] = make(map[string]int)
		}
		confusion[ref][predicted[i]]++
		if ref == predicted[i] {
			correct++
		}
	}
	for c := range classes {
		if confusion[c] == nil {
			confusion[c] = make(map[string]int)
		}
	}

	eval := &Evaluation{
		Accuracy:  float64(correct) / float64(len(truth)),
		Confusion: confusion,
		PerClass:  make(map[string]ClassMetrics, len(classes)),
	}
	for c := range classes {
		tp := confusion[c][c]
		fp, fn := 0, 0
		for other := range classes {
			if other == c {
				continue
			}
			fp += confusion[other][c]
			fn += confusion[c][other]
		}
		var precision, recall, f1 float64
		if tp+fp > 0 {
			precision = float64(tp) / float64(tp+fp)
		}
		if tp+fn > 0 {
			recall = float64(tp) / float64(tp+fn)
		}
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		eval.PerClass[c] = ClassMetrics{Precision: precision, Recall: recall, F1: f1}
	}
	return eval, nil
}
