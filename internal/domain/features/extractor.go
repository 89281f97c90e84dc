// Package features turns validated visit observations into fixed-width
// numeric vectors consumed by the fingerprint and anomaly networks.
//
// Layout, in order: identity hash block, screen width and height, six
// cyclic time components, the browser one-hot block, an optional country
// hash, then neutral padding up to the configured size.
package features

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/footprint/internal/domain/model"
	"github.com/spaolacci/murmur3"
)

const (
	// NeutralValue fills padding and stands in for missing identity strings.
	NeutralValue = 0.5
	// ReferenceDimension normalizes screen sizes (4K width).
	ReferenceDimension = 3840.0

	maxHashWidth = 16
	screenWidth  = 2
	timeWidth    = 6
)

// Vector is a feature vector; every component lies in [0,1].
type Vector []float64

// Extractor builds vectors of one fixed size. It holds no mutable state.
type Extractor struct {
	size       int
	hashWidth  int
	geoFeature bool
	location   *time.Location
}

// New returns an Extractor producing vectors of exactly size components.
func New(size int, opts ...Option) (*Extractor, error) {
	e := &Extractor{size: size, location: time.UTC}
	for _, opt := range opts {
		opt(e)
	}

	fixed := e.fixedWidth()
	if size <= fixed {
		return nil, fmt.Errorf("%w: size %d leaves no room for the %d fixed components",
			ErrInvalidSize, size, fixed)
	}
	e.hashWidth = min(maxHashWidth, size-fixed)
	return e, nil
}

func (e *Extractor) fixedWidth() int {
	n := screenWidth + timeWidth + len(model.Browsers)
	if e.geoFeature {
		n++
	}
	return n
}

// Size returns the vector width.
func (e *Extractor) Size() int { return e.size }

// Extract encodes obs. It never fails; missing fields map to defaults.
func (e *Extractor) Extract(obs model.VisitObservation) Vector {
	v := make(Vector, 0, e.size+e.hashWidth)

	v = append(v, HashString(obs.UserAgent, e.hashWidth)...)

	w, h := obs.Width, obs.Height
	if w <= 0 || h <= 0 {
		var ok bool
		if w, h, ok = model.ParseResolution(obs.ScreenResolution); !ok {
			w, h, _ = model.ParseResolution(model.DefaultScreenResolution)
		}
	}
	sw, sh := ScreenComponents(w, h)
	v = append(v, sw, sh)

	ts := obs.Timestamp
	if ts.IsZero() {
		ts = time.Unix(0, 0)
	}
	v = append(v, TimeComponents(ts.In(e.location))...)

	v = append(v, BrowserOneHot(obs.Browser)...)

	if e.geoFeature {
		v = append(v, CountryComponent(obs.CountryCode))
	}

	return fit(v, e.size)
}

// HashString folds the character codes of s into width buckets, each
// normalized to [0,1]. The empty string yields a neutral block.
func HashString(s string, width int) []float64 {
	out := make([]float64, width)
	if s == "" {
		for i := range out {
			out[i] = NeutralValue
		}
		return out
	}

	acc := make([]int, width)
	i := 0
	for _, r := range s {
		acc[i%width] = (acc[i%width] + int(r)) % 256
		i++
	}
	for j, a := range acc {
		out[j] = float64(a) / 255
	}
	return out
}

// ScreenComponents normalizes dimensions by ReferenceDimension, clamped to [0,1].
func ScreenComponents(width, height int) (float64, float64) {
	return clamp01(float64(width) / ReferenceDimension), clamp01(float64(height) / ReferenceDimension)
}

// TimeComponents encodes hour, minute and second as sine/cosine pairs,
// shifted from [-1,1] into [0,1], so 23:59 sits next to 00:00.
func TimeComponents(t time.Time) []float64 {
	fractions := [3]float64{
		float64(t.Hour()) / 24,
		float64(t.Minute()) / 60,
		float64(t.Second()) / 60,
	}
	out := make([]float64, 0, timeWidth)
	for _, f := range fractions {
		angle := 2 * math.Pi * f
		out = append(out, (math.Sin(angle)+1)/2, (math.Cos(angle)+1)/2)
	}
	return out
}

// BrowserOneHot sets exactly one entry, Unknown for unrecognized labels.
func BrowserOneHot(b model.Browser) []float64 {
	out := make([]float64, len(model.Browsers))
	out[b.Index()] = 1
	return out
}

// CountryComponent hashes a country code into [0,1].
func CountryComponent(code string) float64 {
	if code == "" {
		return NeutralValue
	}
	return float64(murmur3.Sum32([]byte(code))) / math.MaxUint32
}

// fit pads with NeutralValue or truncates to exactly size components.
func fit(v Vector, size int) Vector {
	if len(v) >= size {
		return v[:size:size]
	}
	for len(v) < size {
		v = append(v, NeutralValue)
	}
	return v
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
