package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/dispatch-api/internal/model"
	apperrors "github.com/relayops/dispatch-api/pkg/errors"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		calc   model.MetricCalculation
		values []string
		want   float64
	}{
		{"sum", model.MetricCalculation{Type: model.MetricTypeSum}, []string{"10", "15", "25"}, 50},
		{"average", model.MetricCalculation{Type: model.MetricTypeAverage}, []string{"10", "20", "30"}, 20},
		{"divide", model.MetricCalculation{Type: model.MetricTypeDivide}, []string{"10", "4"}, 2.5},
		{"multiply", model.MetricCalculation{Type: model.MetricTypeMultiply}, []string{"2", "3", "4"}, 24},
		{"subtract", model.MetricCalculation{Type: model.MetricTypeSubtract}, []string{"10", "4"}, 6},
		{"count", model.MetricCalculation{Type: model.MetricTypeCount}, []string{"100", "200", "300"}, 3},
		{"sum of floats", model.MetricCalculation{Type: model.MetricTypeSum}, []string{"1.5", "2.5"}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.calc, tt.values)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	_, err := Evaluate(model.MetricCalculation{Type: model.MetricTypeDivide, Label: "ratio"}, []string{"10", "0"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrMetricInput))
}

func TestEvaluateAverageOfNothing(t *testing.T) {
	_, err := Evaluate(model.MetricCalculation{Type: model.MetricTypeAverage, Label: "avg"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrMetricInput))
}

func TestEvaluateRejectsNonNumericInput(t *testing.T) {
	for _, values := range [][]string{
		{"10", "abc"},
		{"10", ""},
		{"10", "  "},
	} {
		_, err := Evaluate(model.MetricCalculation{Type: model.MetricTypeSum, Label: "deals"}, values)
		require.Error(t, err, "values %v", values)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrMetricInput))
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$1234.50", Format(model.MetricCalculation{DisplayFormat: "currency"}, 1234.5))
	assert.Equal(t, "42.5%", Format(model.MetricCalculation{DisplayFormat: "percent"}, 42.5))
	assert.Equal(t, "42", Format(model.MetricCalculation{DisplayFormat: "integer"}, 42.9))
	assert.Equal(t, "42.9", Format(model.MetricCalculation{}, 42.9))
}
