// Package anomaly scores visits by autoencoder reconstruction error.
//
// Scoring is best effort: any failure yields a zero, non-anomalous score
// carrying ReasonProcessingError instead of an error.
package anomaly

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/footprint/internal/domain/features"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/internal/domain/nn"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
)

// DefaultThreshold separates normal from anomalous reconstruction error.
const DefaultThreshold = 0.1

// Human-readable reasons, most severe first.
const (
	ReasonUnusualFingerprint = "Unusual browser fingerprint"
	ReasonSuspiciousScreen   = "Suspicious screen resolution"
	ReasonAtypicalTime       = "Atypical visit time"
	ReasonProcessingError    = "Error processing visitor data"
)

var reasonLevels = []struct {
	multiple float64
	reason   string
}{
	{2.0, ReasonUnusualFingerprint},
	{1.5, ReasonSuspiciousScreen},
	{1.2, ReasonAtypicalTime},
}

// Source hands out the initialized autoencoder.
type Source interface {
	Autoencoder(ctx context.Context) (*nn.Sequential, error)
}

// Detector computes AnomalyScores.
type Detector struct {
	source    Source
	threshold float64
	logger    logger.Logger
}

// New creates a Detector backed by source.
func New(source Source, opts ...Option) *Detector {
	d := &Detector{source: source, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("anomaly")
	}
	return d
}

// Threshold returns the configured threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

// Score evaluates vec. It never fails.
func (d *Detector) Score(ctx context.Context, vec features.Vector) (score model.AnomalyScore) {
	defer func() {
		if r := recover(); r != nil {
			score = d.failed(ctx, fmt.Errorf("%w: panic: %v", ErrInference, r))
		}
	}()

	mse, err := d.reconstructionError(ctx, vec)
	if err != nil {
		return d.failed(ctx, err)
	}

	score = model.AnomalyScore{
		Score:     mse,
		Threshold: d.threshold,
		IsAnomaly: mse > d.threshold,
		Reasons:   Reasons(mse, d.threshold),
	}
	metrics.RecordAnomalyScore(mse)
	if score.IsAnomaly {
		metrics.RecordAnomaly(metrics.AnomalyKindModel)
	}
	return score
}

func (d *Detector) reconstructionError(ctx context.Context, vec features.Vector) (float64, error) {
	net, err := d.source.Autoencoder(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInference, err)
	}

	start := time.Now()
	out, err := net.Forward(vec)
	metrics.RecordInferenceLatency(metrics.ModelAutoencoder, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInference, err)
	}
	return ReconstructionError(vec, out)
}

func (d *Detector) failed(ctx context.Context, err error) model.AnomalyScore {
	metrics.RecordInferenceError(metrics.ModelAutoencoder)
	d.logger.Warn(ctx, "anomaly scoring failed", logger.Error(err))
	return model.AnomalyScore{
		Score:     0,
		Threshold: d.threshold,
		IsAnomaly: false,
		Reasons:   []string{ReasonProcessingError},
	}
}

// ReconstructionError is the mean squared error between input and output.
func ReconstructionError(input, output []float64) (float64, error) {
	if len(input) != len(output) || len(input) == 0 {
		return 0, fmt.Errorf("%w: input %d, output %d", ErrInference, len(input), len(output))
	}
	var sum float64
	for i := range input {
		d := input[i] - output[i]
		sum += d * d
	}
	return sum / float64(len(input)), nil
}

// Reasons explains an anomalous score by threshold multiples. It is empty
// unless score exceeds threshold.
func Reasons(score, threshold float64) []string {
	reasons := []string{}
	if score <= threshold {
		return reasons
	}
	for _, lvl := range reasonLevels {
		if score > threshold*lvl.multiple {
			reasons = append(reasons, lvl.reason)
		}
	}
	return reasons
}
