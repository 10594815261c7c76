// Package classify trains and selects a tree-ensemble classifier over
// assembled feature vectors. Estimators come from golearn; this package owns
// instance construction, the seeded train/test split, grid search with
// k-fold cross-validation, and evaluation.
package classify

import (
	"fmt"

	"github.com/sjwhitworth/golearn/base"

	"winepress/internal/features"
)

// classAttrName is the categorical attribute golearn predicts.
const classAttrName = "label"

// Instances converts an assembled feature set into golearn dense instances:
// one float attribute per feature column plus a categorical class attribute.
func Instances(set *features.Set) (*base.DenseInstances, error) {
	if set == nil || len(set.X) == 0 {
		return nil, fmt.Errorf("classify: empty feature set")
	}

	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, 0, len(set.Names)+1)
	for _, name := range set.Names {
		specs = append(specs, inst.AddAttribute(base.NewFloatAttribute(name)))
	}
	classAttr := base.NewCategoricalAttribute()
	classAttr.SetName(classAttrName)
	classSpec := inst.AddAttribute(classAttr)
	if err := inst.AddClassAttribute(classAttr); err != nil {
		return nil, fmt.Errorf("classify: failed to set class attribute: %w", err)
	}

	if err := inst.Extend(len(set.X)); err != nil {
		return nil, fmt.Errorf("classify: failed to allocate %d rows: %w", len(set.X), err)
	}
	for i, row := range set.X {
		for j, v := range row {
			inst.Set(specs[j], i, base.PackFloatToBytes(v))
		}
		inst.Set(classSpec, i, classAttr.GetSysValFromString(set.Labels[i]))
	}
	return inst, nil
}
