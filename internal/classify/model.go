package classify

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/ensemble"
	"github.com/sjwhitworth/golearn/evaluation"
)

// MetricsInterface defines metrics methods needed by training and selection
type MetricsInterface interface {
	TrainingDurationObserve(seconds float64)
	CVFoldsInc()
	PredictionsInc(n int)
	PredictionFailuresInc()
}

// Params are the random-forest hyperparameters the grid search explores.
type Params struct {
	Trees    int `json:"trees"`
	Features int `json:"features"`
}

func (p Params) String() string {
	return fmt.Sprintf("trees=%d features=%d", p.Trees, p.Features)
}

// CVResult holds the per-fold accuracies for one parameter combination.
type CVResult struct {
	Params Params    `json:"params"`
	Scores []float64 `json:"scores"`
	Mean   float64   `json:"mean"`
}

// ClassMetrics are the per-class evaluation figures.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Evaluation summarizes held-out performance of a predictor.
type Evaluation struct {
	Accuracy  float64                   `json:"accuracy"`
	Confusion map[string]map[string]int `json:"confusion"`
	PerClass  map[string]ClassMetrics   `json:"perClass"`
}

// Forest wraps a golearn random forest behind a mutex so a trained model can
// be shared with the dashboard while evaluation runs.
type Forest struct {
	mu      sync.RWMutex
	params  Params
	rf      *ensemble.RandomForest
	metrics MetricsInterface
}

func NewForest(params Params, metrics MetricsInterface) *Forest {
	return &Forest{params: params, metrics: metrics}
}

// Params returns the hyperparameters the forest was built with.
func (f *Forest) Params() Params {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.params
}

// Fit trains the forest on the given instances.
func (f *Forest) Fit(train base.FixedDataGrid) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	start := time.Now()
	rf := ensemble.NewRandomForest(f.params.Trees, f.params.Features)
	if err := rf.Fit(train); err != nil {
		return fmt.Errorf("classify: forest fit failed (%s): %w", f.params, err)
	}
	f.rf = rf

	elapsed := time.Since(start)
	if f.metrics != nil {
		f.metrics.TrainingDurationObserve(elapsed.Seconds())
	}
	log.Info().Int("trees", f.params.Trees).Int("features", f.params.Features).
		Dur("elapsed", elapsed).Msg("forest trained")
	return nil
}

// PredictClasses implements Predictor over the trained forest.
func (f *Forest) PredictClasses(grid base.FixedDataGrid) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.rf == nil {
		if f.metrics != nil {
			f.metrics.PredictionFailuresInc()
		}
		return nil, fmt.Errorf("classify: forest not trained")
	}
	pred, err := f.rf.Predict(grid)
	if err != nil {
		if f.metrics != nil {
			f.metrics.PredictionFailuresInc()
		}
		return nil, fmt.Errorf("classify: prediction failed: %w", err)
	}

	_, rows := pred.Size()
	out := make([]string, rows)
	for i := range out {
		out[i] = base.GetClass(pred, i)
	}
	if f.metrics != nil {
		f.metrics.PredictionsInc(rows)
	}
	return out, nil
}

// GridSearch cross-validates every parameter combination on the training
// instances and returns the combination with the best mean accuracy,
// together with all fold results sorted best-first. Feature counts wider
// than the attribute set are skipped.
func GridSearch(train base.FixedDataGrid, treeCounts, featureCounts []int, folds int, metrics MetricsInterface) (Params, []CVResult, error) {
	if folds < 2 {
		return Params{}, nil, fmt.Errorf("classify: need at least 2 folds, got %d", folds)
	}
	_, rows := train.Size()
	if rows < folds {
		return Params{}, nil, fmt.Errorf("classify: %d folds exceed %d training rows", folds, rows)
	}
	width := len(base.NonClassAttributes(train))

	var results []CVResult
	for _, trees := range treeCounts {
		for _, feats := range featureCounts {
			if feats > width {
				log.Warn().Int("features", feats).Int("width", width).
					Msg("skipping grid point wider than attribute set")
				continue
			}

			rf := ensemble.NewRandomForest(trees, feats)
			cms, err := evaluation.GenerateCrossFoldValidationConfusionMatrices(train, rf, folds)
			if err != nil {
				return Params{}, nil, fmt.Errorf("classify: cross-validation failed (trees=%d features=%d): %w", trees, feats, err)
			}

			res := CVResult{Params: Params{Trees: trees, Features: feats}}
			for _, cm := range cms {
				score := evaluation.GetAccuracy(cm)
				res.Scores = append(res.Scores, score)
				res.Mean += score
				if metrics != nil {
					metrics.CVFoldsInc()
				}
			}
			res.Mean /= float64(len(res.Scores))
			results = append(results, res)

			log.Debug().Int("trees", trees).Int("features", feats).
				Float64("meanAccuracy", res.Mean).Msg("grid point evaluated")
		}
	}

	if len(results) == 0 {
		return Params{}, nil, fmt.Errorf("classify: parameter grid produced no usable combinations")
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Mean > results[j].Mean })
	best := results[0]
	log.Info().Str("params", best.Params.String()).Float64("meanAccuracy", best.Mean).
		Int("combinations", len(results)).Msg("grid search complete")
	return best.Params, results, nil
}
