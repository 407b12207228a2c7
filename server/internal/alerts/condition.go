package alerts

import (
	"strconv"
	"strings"
	"time"

	"github.com/festtally/festtally/server/internal/pipeline"
)

// evalCondition evaluates a rule condition string against a feed Status.
//
// Supported expressions (field operator value):
//
//	consecutive_failures >= 3
//	stale_seconds > 600
//	standings == 0
//	state == failing
//	error_kind == parse
//	serving_stale == true
//
// Returns (fires bool, triggering value float64).
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, st pipeline.Status, now time.Time) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	switch field {
	case "state":
		return compareString(st.State, op, rhs), 0
	case "error_kind":
		return compareString(st.LastErrorKind, op, rhs), 0
	case "serving_stale":
		return compareString(strconv.FormatBool(st.ServingStale), op, rhs), 0
	}

	v, ok := numericField(field, st, now)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the status.
func numericField(field string, st pipeline.Status, now time.Time) (float64, bool) {
	switch field {
	case "consecutive_failures":
		return float64(st.ConsecutiveFailures), true
	case "stale_seconds":
		return st.StaleFor(now).Seconds(), true
	case "standings":
		return float64(st.Standings), true
	default:
		return 0, false
	}
}

func compareString(v, op, want string) bool {
	switch op {
	case "==":
		return v == want
	case "!=":
		return v != want
	default:
		return false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
