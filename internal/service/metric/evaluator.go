package metric

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relayops/dispatch-api/internal/model"
	apperrors "github.com/relayops/dispatch-api/pkg/errors"
)

// Evaluate reduces the supplied property values to a scalar. Inputs arrive as
// strings because that is how the CRM serves property bags; every value must
// coerce to a number, missing or non-numeric inputs are rejected rather than
// treated as zero.
func Evaluate(calc model.MetricCalculation, values []string) (float64, error) {
	nums, err := coerce(calc, values)
	if err != nil {
		return 0, err
	}

	switch calc.Type {
	case model.MetricTypeSum:
		var total float64
		for _, n := range nums {
			total += n
		}
		return total, nil

	case model.MetricTypeAverage:
		if len(nums) == 0 {
			return 0, apperrors.MetricInputInvalid(
				fmt.Sprintf("metric %q: average of zero values", calc.Label))
		}
		var total float64
		for _, n := range nums {
			total += n
		}
		return total / float64(len(nums)), nil

	case model.MetricTypeDivide:
		if len(nums) < 2 {
			return 0, apperrors.MetricInputInvalid(
				fmt.Sprintf("metric %q: divide needs two values", calc.Label))
		}
		if nums[1] == 0 {
			return 0, apperrors.MetricInputInvalid(
				fmt.Sprintf("metric %q: division by zero", calc.Label))
		}
		return nums[0] / nums[1], nil

	case model.MetricTypeMultiply:
		product := 1.0
		for _, n := range nums {
			product *= n
		}
		return product, nil

	case model.MetricTypeSubtract:
		if len(nums) < 2 {
			return 0, apperrors.MetricInputInvalid(
				fmt.Sprintf("metric %q: subtract needs two values", calc.Label))
		}
		return nums[0] - nums[1], nil

	case model.MetricTypeCount:
		return float64(len(nums)), nil

	default:
		return 0, apperrors.MetricInputInvalid(
			fmt.Sprintf("unknown metric type %q", calc.Type))
	}
}

// Format renders a computed value using the calculation's display format.
func Format(calc model.MetricCalculation, value float64) string {
	switch calc.DisplayFormat {
	case "currency":
		return fmt.Sprintf("$%.2f", value)
	case "percent":
		return fmt.Sprintf("%.1f%%", value)
	case "integer":
		return strconv.FormatInt(int64(value), 10)
	default:
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
}

func coerce(calc model.MetricCalculation, values []string) ([]float64, error) {
	nums := make([]float64, 0, len(values))
	for i, raw := range values {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			return nil, apperrors.MetricInputInvalid(
				fmt.Sprintf("metric %q: value %d is missing", calc.Label, i))
		}
		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, apperrors.MetricInputInvalid(
				fmt.Sprintf("metric %q: value %q is not numeric", calc.Label, raw))
		}
		nums = append(nums, n)
	}
	return nums, nil
}
