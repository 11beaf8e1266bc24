package stats

import (
	"encoding/json"
	"math"
	"strconv"
)

// Estimate is a correlation point estimate that may be absent. An absent
// estimate means the data was insufficient or degenerate, which is a normal
// outcome for sparse annotations rather than an error.
type Estimate struct {
	value float64
	ok    bool
}

// Insufficient returns an absent estimate.
func Insufficient() Estimate {
	return Estimate{}
}

// Of converts a raw float into an Estimate, mapping NaN and ±Inf to Insufficient.
func Of(v float64) Estimate {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Estimate{}
	}
	return Estimate{value: v, ok: true}
}

// Value returns the estimate and whether it is present.
func (e Estimate) Value() (float64, bool) {
	return e.value, e.ok
}

// Valid reports whether the estimate is present.
func (e Estimate) Valid() bool {
	return e.ok
}

// Float returns the estimate, or NaN when absent.
func (e Estimate) Float() float64 {
	if !e.ok {
		return math.NaN()
	}
	return e.value
}

// Or returns the estimate, or fallback when absent.
func (e Estimate) Or(fallback float64) float64 {
	if !e.ok {
		return fallback
	}
	return e.value
}

// String formats the estimate with three decimals, or "nan" when absent.
func (e Estimate) String() string {
	if !e.ok {
		return "nan"
	}
	return strconv.FormatFloat(e.value, 'f', 3, 64)
}

// MarshalJSON encodes an absent estimate as null.
func (e Estimate) MarshalJSON() ([]byte, error) {
	if !e.ok {
		return []byte("null"), nil
	}
	return json.Marshal(e.value)
}

// UnmarshalJSON decodes null as absent.
func (e *Estimate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = Estimate{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = Of(v)
	return nil
}
