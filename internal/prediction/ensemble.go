package prediction

import (
	"context"
	"fmt"
	"strings"
)

// Member is one independently-queried, independently-keyed sub-source of
// an ensemble. Weights are caller-supplied and not required to sum to 1.
type Member struct {
	Name      string
	Weight    float64
	Predictor *Predictor
}

// Ensemble aggregates several predictors into one confidence source.
// The aggregate confidence is Σ(confidence_i × weight_i).
type Ensemble struct {
	members []Member
}

// NewEnsemble creates an ensemble over the given members.
func NewEnsemble(members []Member) *Ensemble {
	return &Ensemble{members: members}
}

// Members returns the configured sub-sources.
func (e *Ensemble) Members() []Member {
	return e.members
}

// Predict queries every sub-source (or its cache) independently and
// weight-averages the confidences. If any sub-source fails at the
// transport level, the aggregate result is a failure carrying a composite
// message listing every failing endpoint and status. Contract violations
// from any sub-source propagate as errors.
func (e *Ensemble) Predict(ctx context.Context, window *FeatureWindow) (*Result, error) {
	var (
		aggregate float64
		failures  []string
	)

	for _, m := range e.members {
		res, err := m.Predictor.Predict(ctx, window)
		if err != nil {
			return nil, fmt.Errorf("ensemble member %s: %w", m.Name, err)
		}
		if !res.OK {
			failures = append(failures, fmt.Sprintf("%s (%s): status %d", m.Name, m.Predictor.Endpoint(), res.Status))
			continue
		}
		aggregate += res.Confidence * m.Weight
	}

	if len(failures) > 0 {
		return &Result{
			OK:   false,
			Body: "ensemble sub-source failures: " + strings.Join(failures, "; "),
		}, nil
	}

	return &Result{OK: true, Confidence: aggregate, Status: 200}, nil
}
