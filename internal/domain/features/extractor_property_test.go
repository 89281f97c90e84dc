package features_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/okian/footprint/internal/domain/features"
	"github.com/okian/footprint/internal/domain/model"
)

// For any raw observation, the vector has the configured length and every
// component lies in [0,1].
func TestProperty_VectorShapeAndRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	for _, size := range []int{16, 40} {
		ex, err := features.New(size, features.WithGeoFeature(size == 40))
		if err != nil {
			t.Fatalf("new extractor: %v", err)
		}

		properties.Property(fmt.Sprintf("vector of size %d is well formed", size), prop.ForAll(
			func(ua, res, browser, code string, ts int64) bool {
				obs := model.NewVisitObservation(model.RawObservation{
					UserAgent:        ua,
					ScreenResolution: res,
					Browser:          browser,
					CountryCode:      code,
					TimestampMs:      ts,
				}, time.Unix(0, 0))

				v := ex.Extract(obs)
				if len(v) != size {
					return false
				}
				for _, x := range v {
					if x < 0 || x > 1 {
						return false
					}
				}
				return true
			},
			gen.AnyString(),
			gen.OneGenOf(gen.AnyString(), gen.Const("1920x1080"), gen.Const("0x0"), gen.Const("99999x1")),
			gen.OneConstOf("Chrome", "Firefox", "Safari", "Edge", "Opera", "", "lynx"),
			gen.AlphaString(),
			gen.Int64Range(-1, 4_102_444_800_000),
		))
	}

	properties.TestingRun(t)
}

// Exactly one browser bit is set for any label.
func TestProperty_BrowserOneHot(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("one-hot has a single set bit", prop.ForAll(
		func(label string) bool {
			var ones int
			for _, x := range features.BrowserOneHot(model.ParseBrowser(label)) {
				if x == 1 {
					ones++
				} else if x != 0 {
					return false
				}
			}
			return ones == 1
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
