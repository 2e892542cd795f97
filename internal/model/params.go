package model

import (
	"fmt"
	"strconv"

	"rul-pipeline/internal/common/validation"
)

// Supported objectives and boosters.
const (
	ObjectiveSquaredError     = "reg:squarederror"
	ObjectivePseudoHuberError = "reg:pseudohubererror"
	BoosterGBTree             = "gbtree"
)

// Params is the frozen hyperparameter set of a boosted-tree regressor.
type Params struct {
	Objective       string  `yaml:"objective" json:"objective"`
	Booster         string  `yaml:"booster" json:"booster"`
	NEstimators     int     `yaml:"n_estimators" json:"n_estimators"`
	LearningRate    float64 `yaml:"learning_rate" json:"learning_rate"`
	MaxDepth        int     `yaml:"max_depth" json:"max_depth"`
	MinChildWeight  float64 `yaml:"min_child_weight" json:"min_child_weight"`
	Gamma           float64 `yaml:"gamma" json:"gamma"`
	Subsample       float64 `yaml:"subsample" json:"subsample"`
	ColsampleBytree float64 `yaml:"colsample_bytree" json:"colsample_bytree"`
	RegAlpha        float64 `yaml:"reg_alpha" json:"reg_alpha"`
	RegLambda       float64 `yaml:"reg_lambda" json:"reg_lambda"`
	RandomState     int64   `yaml:"random_state" json:"random_state"`
	// ScalePosWeight only affects binary objectives; regression accepts and ignores it.
	ScalePosWeight float64 `yaml:"scale_pos_weight" json:"scale_pos_weight"`
}

// DefaultParams mirrors the usual XGBoost defaults.
func DefaultParams() Params {
	return Params{
		Objective:       ObjectiveSquaredError,
		Booster:         BoosterGBTree,
		NEstimators:     100,
		LearningRate:    0.3,
		MaxDepth:        6,
		MinChildWeight:  1,
		Gamma:           0,
		Subsample:       1,
		ColsampleBytree: 1,
		RegAlpha:        0,
		RegLambda:       1,
		RandomState:     0,
		ScalePosWeight:  1,
	}
}

// Validate reports every out-of-range hyperparameter.
func (p Params) Validate() error {
	v := validation.NewChecker("XGBRegressor")

	v.OneOf("objective", p.Objective, ObjectiveSquaredError, ObjectivePseudoHuberError).
		OneOf("booster", p.Booster, BoosterGBTree).
		Positive("n_estimators", p.NEstimators).
		NonNegative("max_depth", p.MaxDepth).
		AtLeast("min_child_weight", p.MinChildWeight, 0).
		AtLeast("gamma", p.Gamma, 0).
		AtLeast("reg_alpha", p.RegAlpha, 0).
		AtLeast("reg_lambda", p.RegLambda, 0).
		AtLeast("scale_pos_weight", p.ScalePosWeight, 0)

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"learning_rate", p.LearningRate},
		{"subsample", p.Subsample},
		{"colsample_bytree", p.ColsampleBytree},
	} {
		if !(f.value > 0 && f.value <= 1) {
			v.Check(fmt.Errorf("%s must be in (0, 1], got %g", f.name, f.value))
		}
	}

	return v.Err()
}

// Map renders the parameters as strings for experiment tracking.
func (p Params) Map() map[string]string {
	f := func(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }
	return map[string]string{
		"objective":        p.Objective,
		"booster":          p.Booster,
		"n_estimators":     strconv.Itoa(p.NEstimators),
		"learning_rate":    f(p.LearningRate),
		"max_depth":        strconv.Itoa(p.MaxDepth),
		"min_child_weight": f(p.MinChildWeight),
		"gamma":            f(p.Gamma),
		"subsample":        f(p.Subsample),
		"colsample_bytree": f(p.ColsampleBytree),
		"reg_alpha":        f(p.RegAlpha),
		"reg_lambda":       f(p.RegLambda),
		"random_state":     strconv.FormatInt(p.RandomState, 10),
		"scale_pos_weight": f(p.ScalePosWeight),
	}
}
