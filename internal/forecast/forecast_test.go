package forecast

import (
	"errors"
	"testing"
	"time"

	"github.com/theirongolddev/fincast/internal/timeseries"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// monthly builds a series starting January 2025.
func monthly(values ...float64) timeseries.Series {
	start := timeseries.Period{Year: 2025, Month: time.January}
	s := make(timeseries.Series, len(values))
	for i, v := range values {
		s[i] = timeseries.Point{Period: start.AddMonths(i), Value: v}
	}
	return s
}

func TestLinearRegression_InsufficientData(t *testing.T) {
	_, err := LinearRegression(monthly(100), 1)
	require.Error(t, err)

	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, 2, ide.Need)
	assert.Equal(t, 1, ide.Have)
}

func TestLinearRegression_IncreasingSeriesBounds(t *testing.T) {
	for n := 2; n <= 24; n++ {
		values := make([]float64, n)
		for i := range values {
			values[i] = 100 + float64(i*i)*7
		}
		reg, err := LinearRegression(monthly(values...), 1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, reg.Correlation, -1.0, "n=%d", n)
		assert.LessOrEqual(t, reg.Correlation, 1.0, "n=%d", n)
		assert.GreaterOrEqual(t, reg.Confidence, 0.0, "n=%d", n)
		assert.LessOrEqual(t, reg.Confidence, 95.0, "n=%d", n)
		assert.Greater(t, reg.Slope, 0.0, "n=%d", n)
	}
}

func TestLinearRegression_ConfidenceCapped(t *testing.T) {
	values := make([]float64, 12)
	for i := range values {
		values[i] = 1000 + float64(i)*250
	}
	reg, err := LinearRegression(monthly(values...), 1)
	require.NoError(t, err)
	assert.InDelta(t, 95, reg.Confidence, 1e-9)
	assert.InDelta(t, 4000, reg.Prediction, 60)
}

func TestLinearRegression_FlooredAtZero(t *testing.T) {
	reg, err := LinearRegression(monthly(1000, 500, 100), 6)
	require.NoError(t, err)
	assert.Equal(t, 0.0, reg.Prediction)
	assert.Less(t, reg.Slope, 0.0)
}

func TestLinearRegression_FlatSeries(t *testing.T) {
	reg, err := LinearRegression(monthly(500, 500, 500, 500), 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, reg.Correlation)
	assert.Equal(t, 0.0, reg.Confidence)
	assert.InDelta(t, 500, reg.Prediction, 1e-9)
}

func TestExponentialMovingAverage_InvalidParameters(t *testing.T) {
	cases := []struct {
		name   string
		series timeseries.Series
		alpha  float64
	}{
		{"alpha above one", monthly(1, 2), 1.5},
		{"alpha negative", monthly(1, 2), -0.1},
		{"empty series", monthly(), 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExponentialMovingAverage(tc.series, tc.alpha, 1)
			var ipe *InvalidParameterError
			require.True(t, errors.As(err, &ipe), "got %v", err)
		})
	}
}

func TestExponentialMovingAverage_Recursive(t *testing.T) {
	v, err := ExponentialMovingAverage(monthly(100, 200), 0.5, 1)
	require.NoError(t, err)
	assert.InDelta(t, 150, v, 1e-9)

	v, err = ExponentialMovingAverage(monthly(10000, 12000, 15000, 11000), DefaultAlpha, 1)
	require.NoError(t, err)
	assert.InDelta(t, 11644, v, 1e-6)
}

func TestExponentialMovingAverage_ExtrapolatesTrend(t *testing.T) {
	s := monthly(100, 200, 300)
	one, err := ExponentialMovingAverage(s, DefaultAlpha, 1)
	require.NoError(t, err)
	three, err := ExponentialMovingAverage(s, DefaultAlpha, 3)
	require.NoError(t, err)
	assert.InDelta(t, one+200, three, 1e-9)
}

func TestExponentialMovingAverage_NeverNegative(t *testing.T) {
	v, err := ExponentialMovingAverage(monthly(1000, 800, 600, 400, 200, 100), DefaultAlpha, 12)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestDetectSeasonality_ShortSeries(t *testing.T) {
	s := DetectSeasonality(monthly(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11))
	assert.False(t, s.Detected)
	assert.Equal(t, PatternNone, s.Pattern)
	assert.Equal(t, 1.0, s.Factor(time.March))
}

func TestDetectSeasonality_FlatSeries(t *testing.T) {
	values := make([]float64, 24)
	for i := range values {
		values[i] = 750
	}
	s := DetectSeasonality(monthly(values...))
	assert.False(t, s.Detected)
	assert.Equal(t, 0.0, s.Intensity)
	assert.Equal(t, PatternNone, s.Pattern)
}

func TestDetectSeasonality_DecemberSpike(t *testing.T) {
	s := DetectSeasonality(monthly(5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 30000))
	assert.True(t, s.Detected)
	assert.Greater(t, s.Intensity, 0.15)
	assert.Greater(t, s.Factor(time.December), 3.0)
	assert.Less(t, s.Factor(time.June), 1.0)
	assert.Equal(t, PatternQuarterly, s.Pattern)
}

func TestDetectAnomalies(t *testing.T) {
	assert.Equal(t, []int{4}, DetectAnomalies(monthly(10, 10, 10, 10, 100)))
	assert.Empty(t, DetectAnomalies(monthly(10, 10, 100)))
	assert.Empty(t, DetectAnomalies(monthly(100, 110, 95, 105, 102)))
}

func TestHybridPrediction_InsufficientData(t *testing.T) {
	_, err := HybridPrediction(monthly(1, 2), 1)
	var ide *InsufficientDataError
	require.True(t, errors.As(err, &ide))
	assert.Equal(t, MinHybridPoints, ide.Need)
}

func TestHybridPrediction_FourMonthScenario(t *testing.T) {
	h, err := HybridPrediction(monthly(10000, 12000, 15000, 11000), 1)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, h.Prediction, 9000.0)
	assert.LessOrEqual(t, h.Prediction, 17000.0)
	assert.Greater(t, h.Confidence, 20.0)
	assert.Equal(t, []Algorithm{AlgoLinearRegression, AlgoEMA}, h.Algorithms)
	assert.False(t, h.Seasonality.Detected)
}

func TestHybridPrediction_ConfidenceDropsWhenModelsDiverge(t *testing.T) {
	control, err := HybridPrediction(monthly(1000, 1000, 1000, 1000, 1000, 1000), 1)
	require.NoError(t, err)

	divergent, err := HybridPrediction(monthly(1000, 2000, 3000, 4000, 5000, 6000), 1)
	require.NoError(t, err)

	assert.InDelta(t, 90, control.Confidence, 1e-9)
	assert.Less(t, divergent.Confidence, control.Confidence)
	assert.GreaterOrEqual(t, divergent.Confidence, 20.0)
}

func TestHybridPrediction_UsesSeasonalModel(t *testing.T) {
	s := monthly(5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 30000,
		5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000, 5000)
	h, err := HybridPrediction(s, 1)
	require.NoError(t, err)

	assert.Contains(t, h.Algorithms, AlgoSeasonal)
	assert.True(t, h.Seasonality.Detected)
	for _, e := range h.Estimates {
		assert.GreaterOrEqual(t, e.Value, 0.0)
	}
}
