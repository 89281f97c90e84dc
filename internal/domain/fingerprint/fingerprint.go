// Package fingerprint derives stable pseudo-identifiers from feature vectors.
package fingerprint

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/footprint/internal/domain/features"
	"github.com/okian/footprint/internal/domain/nn"
	"github.com/okian/footprint/pkg/metrics"
)

const (
	// DefaultSeparator joins output components into the identifier.
	DefaultSeparator = "-"
	// DefaultPrecision is the number of decimals kept per component.
	DefaultPrecision = 6
)

// Source hands out the initialized fingerprint network.
type Source interface {
	Fingerprint(ctx context.Context) (*nn.Sequential, error)
}

// Model maps a feature vector to an identifier string.
type Model struct {
	source    Source
	separator string
	precision int
}

// New creates a Model backed by source.
func New(source Source, opts ...Option) *Model {
	m := &Model{source: source, separator: DefaultSeparator, precision: DefaultPrecision}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Predict runs vec through the network and serializes the output.
// Initialization failures are returned unchanged so callers can treat
// them as fatal.
func (m *Model) Predict(ctx context.Context, vec features.Vector) (string, error) {
	net, err := m.source.Fingerprint(ctx)
	if err != nil {
		return "", err
	}

	start := time.Now()
	out, err := net.Forward(vec)
	metrics.RecordInferenceLatency(metrics.ModelFingerprint, float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		metrics.RecordInferenceError(metrics.ModelFingerprint)
		return "", fmt.Errorf("%w: %v", ErrPredict, err)
	}

	metrics.RecordFingerprintGenerated()
	return m.encode(out), nil
}

func (m *Model) encode(out []float64) string {
	parts := make([]string, len(out))
	for i, v := range out {
		parts[i] = strconv.FormatFloat(v, 'f', m.precision, 64)
	}
	return strings.Join(parts, m.separator)
}
