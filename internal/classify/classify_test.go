package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"winepress/internal/features"
)

type mockMetrics struct {
	trainObserved int
	folds         int
	predictions   int
	failures      int
}

func (m *mockMetrics) TrainingDurationObserve(float64) { m.trainObserved++ }
func (m *mockMetrics) CVFoldsInc()                     { m.folds++ }
func (m *mockMetrics) PredictionsInc(n int)            { m.predictions += n }
func (m *mockMetrics) PredictionFailuresInc()          { m.failures++ }

// separableSet builds two well-separated clusters so a forest should have no
// trouble telling them apart.
func separableSet(n int) *features.Set {
	set := &features.Set{Names: []string{"x", "y"}}
	for i := 0; i < n; i++ {
		jitter := float64(i%5) / 10
		if i%2 == 0 {
			set.X = append(set.X, []float64{1 + jitter, 2 + jitter})
			set.Labels = append(set.Labels, "low")
		} else {
			set.X = append(set.X, []float64{10 + jitter, 20 + jitter})
			set.Labels = append(set.Labels, "high")
		}
	}
	return set
}

func TestInstances(t *testing.T) {
	set := separableSet(10)

	inst, err := Instances(set)
	require.NoError(t, err)

	cols, rows := inst.Size()
	assert.Equal(t, 10, rows)
	assert.Equal(t, 3, cols) // two features plus the class attribute

	classAttrs := inst.AllClassAttributes()
	require.Len(t, classAttrs, 1)
	assert.Equal(t, classAttrName, classAttrs[0].GetName())
}

func TestInstancesEmpty(t *testing.T) {
	_, err := Instances(&features.Set{})
	assert.Error(t, err)
	_, err = Instances(nil)
	assert.Error(t, err)
}

func TestSplitDeterministic(t *testing.T) {
	set := separableSet(40)

	train1, test1, err := Split(set, 0.30, 42)
	require.NoError(t, err)
	train2, test2, err := Split(set, 0.30, 42)
	require.NoError(t, err)

	assert.Equal(t, test1.Labels, test2.Labels)
	assert.Equal(t, train1.Labels, train2.Labels)
	assert.Len(t, test1.X, 12)
	assert.Len(t, train1.X, 28)

	// A different seed shuffles differently (40 rows make a collision
	// vanishingly unlikely).
	_, test3, err := Split(set, 0.30, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test1.X, test3.X)
}

func TestSplitRejectsBadFractions(t *testing.T) {
	set := separableSet(10)
	for _, frac := range []float64{0, 1, -0.5, 1.5, 0.01} {
		_, _, err := Split(set, frac, 1)
		assert.Error(t, err, "fraction %f", frac)
	}
	_, _, err := Split(&features.Set{}, 0.3, 1)
	assert.Error(t, err)
}

func TestMajorityFallback(t *testing.T) {
	fb, err := NewMajorityFallback([]string{"a", "b", "b", "c", "b"})
	require.NoError(t, err)
	assert.Equal(t, "b", fb.Majority())

	inst, err := Instances(separableSet(6))
	require.NoError(t, err)

	preds, err := fb.PredictClasses(inst)
	require.NoError(t, err)
	require.Len(t, preds, 6)
	for _, p := range preds {
		assert.Equal(t, "b", p)
	}

	_, err = NewMajorityFallback(nil)
	assert.Error(t, err)
}

func TestForestFitEvaluate(t *testing.T) {
	set := separableSet(60)
	train, test, err := Split(set, 0.30, 42)
	require.NoError(t, err)

	trainInst, err := Instances(train)
	require.NoError(t, err)
	testInst, err := Instances(test)
	require.NoError(t, err)

	m := &mockMetrics{}
	forest := NewForest(Params{Trees: 10, Features: 2}, m)
	require.NoError(t, forest.Fit(trainInst))
	assert.Equal(t, 1, m.trainObserved)

	preds, err := forest.PredictClasses(testInst)
	require.NoError(t, err)
	require.Len(t, preds, len(test.X))
	assert.Positive(t, m.predictions)

	eval, err := EvaluateClasses(preds, test.Labels)
	require.NoError(t, err)
	assert.Greater(t, eval.Accuracy, 0.7, "separable data should classify well")
	assert.NotEmpty(t, eval.Confusion)
	assert.NotEmpty(t, eval.PerClass)
}

func TestForestNotTrained(t *testing.T) {
	inst, err := Instances(separableSet(6))
	require.NoError(t, err)

	m := &mockMetrics{}
	forest := NewForest(Params{Trees: 5, Features: 1}, m)
	_, err = forest.PredictClasses(inst)
	assert.Error(t, err)
	assert.Equal(t, 1, m.failures)
}

func TestEvaluateClasses(t *testing.T) {
	truth := []string{"low", "low", "high", "high"}
	preds := []string{"low", "high", "high", "high"}

	eval, err := EvaluateClasses(preds, truth)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, eval.Accuracy, 1e-9)
	assert.Equal(t, 1, eval.Confusion["low"]["high"])
	assert.Equal(t, 2, eval.Confusion["high"]["high"])
	assert.InDelta(t, 1.0, eval.PerClass["low"].Precision, 1e-9)
	assert.InDelta(t, 0.5, eval.PerClass["low"].Recall, 1e-9)
	assert.InDelta(t, 2.0/3, eval.PerClass["high"].Precision, 1e-9)

	_, err = EvaluateClasses(nil, nil)
	assert.Error(t, err, "empty test set")
	_, err = EvaluateClasses([]string{"low"}, truth)
	assert.Error(t, err, "length mismatch")
}

func TestFallbackEvaluates(t *testing.T) {
	// An untrained run still produces a full evaluation through the
	// majority-class fallback.
	set := separableSet(20)
	fb, err := NewMajorityFallback(set.Labels)
	require.NoError(t, err)

	inst, err := Instances(set)
	require.NoError(t, err)
	preds, err := fb.PredictClasses(inst)
	require.NoError(t, err)

	eval, err := EvaluateClasses(preds, set.Labels)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, eval.Accuracy, 1e-9)
	assert.InDelta(t, 1.0, eval.PerClass[fb.Majority()].Recall, 1e-9)
}

func TestGridSearch(t *testing.T) {
	set := separableSet(60)
	inst, err := Instances(set)
	require.NoError(t, err)

	m := &mockMetrics{}
	best, results, err := GridSearch(inst, []int{5, 10}, []int{1, 2}, 2, m)
	require.NoError(t, err)

	assert.Len(t, results, 4)
	assert.Positive(t, best.Trees)
	assert.Positive(t, m.folds)
	// Results are sorted best-first.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Mean, results[i].Mean)
	}
	assert.Equal(t, best, results[0].Params)
}

func TestGridSearchSkipsWideFeatureCounts(t *testing.T) {
	inst, err := Instances(separableSet(20))
	require.NoError(t, err)

	// Width 2 attribute set: the 10-feature grid point must be skipped.
	best, results, err := GridSearch(inst, []int{5}, []int{1, 10}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, best.Features)
}

func TestGridSearchErrors(t *testing.T) {
	inst, err := Instances(separableSet(20))
	require.NoError(t, err)

	_, _, err = GridSearch(inst, []int{5}, []int{1}, 1, nil)
	assert.Error(t, err, "single fold")

	_, _, err = GridSearch(inst, []int{5}, []int{100}, 2, nil)
	assert.Error(t, err, "grid with no usable combinations")

	small, err := Instances(separableSet(2))
	require.NoError(t, err)
	_, _, err = GridSearch(small, []int{5}, []int{1}, 10, nil)
	assert.Error(t, err, "more folds than rows")
}
