package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"rul-pipeline/internal/common/logging"
	"rul-pipeline/internal/predict"
)

const maxPredictBody = 64 << 10

// PredictResponse is the body of a successful prediction.
type PredictResponse struct {
	Prediction float64 `json:"prediction"`
}

// Predict scores one observation sent as JSON or as a form. Any failure is
// answered with InvalidInputMessage; details only reach the log.
func (h *Handlers) Predict(w http.ResponseWriter, r *http.Request) {
	data, err := decodeCustomData(w, r)
	if err != nil {
		h.reject(w, "Failed to decode prediction request", err)
		return
	}
	if h.predictor == nil {
		h.reject(w, "Prediction requested without a loaded model", nil)
		return
	}

	h.logger.Debug("Prediction requested", logging.Any("input", data))

	prediction, err := h.predictor.Predict(data)
	if err != nil {
		h.reject(w, "Prediction failed", err)
		return
	}

	if h.metrics != nil {
		h.metrics.ObservePrediction(true)
	}
	writeJSON(w, http.StatusOK, PredictResponse{Prediction: prediction})
}

func (h *Handlers) reject(w http.ResponseWriter, msg string, err error) {
	h.logger.Warn(msg, logging.Err(err))
	if h.metrics != nil {
		h.metrics.ObservePrediction(false)
	}
	writeError(w, http.StatusBadRequest, InvalidInputMessage)
}

func decodeCustomData(w http.ResponseWriter, r *http.Request) (predict.CustomData, error) {
	var data predict.CustomData
	r.Body = http.MaxBytesReader(w, r.Body, maxPredictBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return data, err
		}
		data = predict.CustomData{
			CycleIndex:           r.PostFormValue("cycle_index"),
			DischargeTimeS:       r.PostFormValue("discharge_time_s"),
			Decrement3634VS:      r.PostFormValue("decrement_3_6_3_4v_s"),
			MaxVoltageDischargeV: r.PostFormValue("max_voltage_discharge_v"),
			MinVoltageChargeV:    r.PostFormValue("min_voltage_charge_v"),
			TimeAt415VS:          r.PostFormValue("time_at_4_15v_s"),
			TimeConstantCurrentS: r.PostFormValue("time_constant_current_s"),
			ChargingTimeS:        r.PostFormValue("charging_time_s"),
		}
		return data, nil
	default:
		err := json.NewDecoder(r.Body).Decode(&data)
		return data, err
	}
}
