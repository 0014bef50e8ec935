package render

import (
	"fmt"
	"math"
)

// NormalizeMemoryGB rounds a memory request up to the platform's 0.1 GB
// granularity. Container Instances rejects memoryInGB values that are not a
// multiple of 0.1.
//
// Example:
//
//	NormalizeMemoryGB(1.23) // returns 1.3
//	NormalizeMemoryGB(2.0)  // returns 2.0
func NormalizeMemoryGB(gb float64) (float64, error) {
	if gb <= 0 {
		return 0, fmt.Errorf("%w: memoryInGB must be positive, got %v", ErrUnrenderable, gb)
	}
	return math.Ceil(gb*10) / 10, nil
}
