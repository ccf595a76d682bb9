package modelpool

import (
	"context"
	"fmt"

	"energy-forecast/pkg/logging"
)

// LoadEntry reads and decodes the model and scaler artifacts for name
func LoadEntry(ctx context.Context, store ArtifactStore, name string) (Entry, error) {
	mr, err := store.Open(ctx, name, ModelFile)
	if err != nil {
		return Entry{}, err
	}
	defer mr.Close()

	ensemble, err := DecodeTreeEnsemble(mr)
	if err != nil {
		return Entry{}, fmt.Errorf("model %q: %w", name, err)
	}

	sr, err := store.Open(ctx, name, ScalerFile)
	if err != nil {
		return Entry{}, fmt.Errorf("scaler file not found for %q: %w", name, err)
	}
	defer sr.Close()

	scaler, err := DecodeStandardScaler(sr)
	if err != nil {
		return Entry{}, fmt.Errorf("model %q: %w", name, err)
	}

	return Entry{Predictor: ensemble, Scaler: scaler}, nil
}

// Load loads every named model. A model that fails to load is logged and left
// out of the pool; its cities will fail with a configuration error.
func Load(ctx context.Context, store ArtifactStore, names []string, logger *logging.StructuredLogger) (*Pool, []error) {
	entries := make(map[string]Entry, len(names))
	var failures []error

	for _, name := range names {
		entry, err := LoadEntry(ctx, store, name)
		if err != nil {
			failures = append(failures, err)
			logger.Error(ctx, "[MODEL_LOAD_ERROR] Failed to load model", logging.Fields{
				"model": name,
				"store": store.String(),
			}, err)
			continue
		}
		entries[name] = entry
		fields := logging.Fields{"model": name}
		if ens, ok := entry.Predictor.(*TreeEnsemble); ok {
			fields["trees"] = len(ens.Trees)
		}
		logger.Info(ctx, "[MODEL_LOADED] Loaded model and scaler", fields)
	}

	pool, err := NewPool(entries)
	if err != nil {
		// NewPool only fails on nil members, which LoadEntry never returns.
		return &Pool{entries: map[string]Entry{}}, append(failures, err)
	}
	return pool, failures
}
