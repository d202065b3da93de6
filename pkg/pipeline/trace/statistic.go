package trace

import (
	"strconv"
)

// A value of the simulation statistics summary. The simulator prints integer counters
// and floating point ratios, and each keeps the type it was printed with.
type Statistic struct {
	isFloat bool
	integer int64
	float   float64
}

// Returns an integer statistic
func IntStatistic(value int64) Statistic {
	return Statistic{integer: value}
}

// Returns a floating point statistic
func FloatStatistic(value float64) Statistic {
	return Statistic{isFloat: true, float: value}
}

// Returns whether the statistic was printed with a decimal point
func (s Statistic) IsFloat() bool {
	return s.isFloat
}

// Returns the statistic as an integer, truncating floating point values
func (s Statistic) Int() int64 {
	if s.isFloat {
		return int64(s.float)
	}

	return s.integer
}

// Returns the statistic as a floating point value
func (s Statistic) Float() float64 {
	if s.isFloat {
		return s.float
	}

	return float64(s.integer)
}

// Returns the native value of the statistic, either an int64 or a float64
func (s Statistic) Value() any {
	if s.isFloat {
		return s.float
	}

	return s.integer
}

func (s Statistic) String() string {
	if s.isFloat {
		return strconv.FormatFloat(s.float, 'f', -1, 64)
	}

	return strconv.FormatInt(s.integer, 10)
}
