// Package predict scores single observations with the persisted
// preprocessor and model.
package predict

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"rul-pipeline/internal/common/errors"
	"rul-pipeline/internal/configstore"
	"rul-pipeline/internal/dataset"
	"rul-pipeline/internal/model"
	"rul-pipeline/internal/transform"
)

// Fields lists the raw inputs of a prediction in column order.
var Fields = []string{
	"cycle_index",
	"discharge_time_s",
	"decrement_3_6_3_4v_s",
	"max_voltage_discharge_v",
	"min_voltage_charge_v",
	"time_at_4_15v_s",
	"time_constant_current_s",
	"charging_time_s",
}

// CustomData is one observation as submitted by a client. Values are kept
// as strings until Dataset parses them.
type CustomData struct {
	CycleIndex           string `json:"cycle_index"`
	DischargeTimeS       string `json:"discharge_time_s"`
	Decrement3634VS      string `json:"decrement_3_6_3_4v_s"`
	MaxVoltageDischargeV string `json:"max_voltage_discharge_v"`
	MinVoltageChargeV    string `json:"min_voltage_charge_v"`
	TimeAt415VS          string `json:"time_at_4_15v_s"`
	TimeConstantCurrentS string `json:"time_constant_current_s"`
	ChargingTimeS        string `json:"charging_time_s"`
}

func (c CustomData) values() []string {
	return []string{
		c.CycleIndex,
		c.DischargeTimeS,
		c.Decrement3634VS,
		c.MaxVoltageDischargeV,
		c.MinVoltageChargeV,
		c.TimeAt415VS,
		c.TimeConstantCurrentS,
		c.ChargingTimeS,
	}
}

// Dataset converts the observation into a single-row dataset. Every field
// must be a finite number.
func (c CustomData) Dataset() (*dataset.Dataset, error) {
	ds := dataset.New()
	for i, raw := range c.values() {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.ValidationError(fmt.Sprintf("%s must be a number", Fields[i])).
				WithContext("value", raw)
		}
		if err := ds.AddColumn(Fields[i], dataset.Float, []interface{}{v}); err != nil {
			return nil, errors.InternalError("failed to build input row", err)
		}
	}
	return ds, nil
}

// Predictor applies the fitted preprocessing and the trained model.
type Predictor struct {
	pre   *transform.Preprocessor
	model model.Regressor
}

// New creates a predictor from loaded artifacts.
func New(pre *transform.Preprocessor, m model.Regressor) *Predictor {
	return &Predictor{pre: pre, model: m}
}

// Load reads the preprocessor and model artifacts.
func Load(preprocessorPath, modelPath string) (*Predictor, error) {
	pre, err := transform.LoadPreprocessor(preprocessorPath)
	if err != nil {
		return nil, errors.NotFoundError("preprocessor "+preprocessorPath).WithContext("cause", err.Error())
	}
	m, err := model.Load(modelPath)
	if err != nil {
		return nil, errors.NotFoundError("model "+modelPath).WithContext("cause", err.Error())
	}
	return New(pre, m), nil
}

// ArtifactPaths returns where the pipeline writes the preprocessor and the
// model.
func ArtifactPaths(store *configstore.Store) (preprocessorPath, modelPath string, err error) {
	tc, err := store.DataTransformationConfig()
	if err != nil {
		return "", "", err
	}
	ec, err := store.ModelEvaluationConfig()
	if err != nil {
		return "", "", err
	}
	return filepath.Join(tc.RootDir, transform.PreprocessorFile), ec.ModelPath, nil
}

// LoadFromStore loads the artifacts named by the configuration.
func LoadFromStore(store *configstore.Store) (*Predictor, error) {
	pre, m, err := ArtifactPaths(store)
	if err != nil {
		return nil, err
	}
	return Load(pre, m)
}

// Predict scores one observation.
func (p *Predictor) Predict(data CustomData) (float64, error) {
	ds, err := data.Dataset()
	if err != nil {
		return 0, err
	}
	X, err := p.pre.Transform(ds)
	if err != nil {
		return 0, errors.ValidationError("input does not match the preprocessor").WithContext("cause", err.Error())
	}
	out, err := p.model.Predict(X.Rows)
	if err != nil {
		return 0, errors.InternalError("prediction failed", err)
	}
	if len(out) != 1 {
		return 0, errors.InternalError(fmt.Sprintf("expected one prediction, got %d", len(out)), nil)
	}
	return out[0], nil
}
