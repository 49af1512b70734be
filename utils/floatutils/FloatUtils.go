// Package floatutils implements functions for working with floats
package floatutils

import (
	"math"
)

// Equal returns whether two slices of floats are equal, with elements
// compared up to the argued tolerance.
func Equal(a, b []float64, tolerance float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tolerance {
			return false
		}
	}
	return true
}
