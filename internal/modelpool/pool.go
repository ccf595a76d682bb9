// Package modelpool holds the per-model (predictor, scaler) pairs loaded at
// startup and exposes a scale-then-predict operation.
package modelpool

import (
	"fmt"
	"sort"

	"energy-forecast/internal/models"
)

// Predictor is a scalar-output regression model
type Predictor interface {
	Predict(row []float64) (float64, error)
}

// Scaler normalizes a feature row before prediction
type Scaler interface {
	Transform(row []float64) ([]float64, error)
}

// PredictorFunc adapts a function to Predictor
type PredictorFunc func(row []float64) (float64, error)

// Predict calls f(row)
func (f PredictorFunc) Predict(row []float64) (float64, error) { return f(row) }

// IdentityScaler returns rows unchanged
type IdentityScaler struct{}

// Transform returns a copy of row
func (IdentityScaler) Transform(row []float64) ([]float64, error) {
	return append([]float64(nil), row...), nil
}

// Entry pairs a predictor with the scaler it was trained behind
type Entry struct {
	Predictor Predictor
	Scaler    Scaler
}

// Pool is immutable after construction and safe for concurrent use
type Pool struct {
	entries map[string]Entry
	names   []string
}

// NewPool copies entries into a new pool
func NewPool(entries map[string]Entry) (*Pool, error) {
	p := &Pool{entries: make(map[string]Entry, len(entries))}
	for name, e := range entries {
		if e.Predictor == nil || e.Scaler == nil {
			return nil, fmt.Errorf("model %q: predictor and scaler are both required", name)
		}
		p.entries[name] = e
		p.names = append(p.names, name)
	}
	sort.Strings(p.names)
	return p, nil
}

// Has reports whether a model is loaded
func (p *Pool) Has(name string) bool {
	_, ok := p.entries[name]
	return ok
}

// Names returns the loaded model names, sorted
func (p *Pool) Names() []string {
	return append([]string(nil), p.names...)
}

// Len is the number of loaded models
func (p *Pool) Len() int {
	return len(p.entries)
}

// Predict scales v with the model's scaler and returns the raw prediction.
// The result may be negative; callers clamp.
func (p *Pool) Predict(name string, v models.FeatureVector) (float64, error) {
	entry, ok := p.entries[name]
	if !ok {
		return 0, &models.NotFoundError{Resource: "model", ID: name}
	}

	scaled, err := entry.Scaler.Transform(v.Slice())
	if err != nil {
		return 0, fmt.Errorf("model %q: scale features: %w", name, err)
	}

	out, err := entry.Predictor.Predict(scaled)
	if err != nil {
		return 0, fmt.Errorf("model %q: predict: %w", name, err)
	}
	return out, nil
}
