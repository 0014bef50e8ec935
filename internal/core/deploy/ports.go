package deploy

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Port Ranges
// =============================================================================

// PortRange is an inclusive span of ports, e.g. an FTP passive range.
type PortRange struct {
	Lo int
	Hi int
}

// ParsePortRange parses "lo-hi" into a PortRange.
func ParsePortRange(s string) (PortRange, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return PortRange{}, NewValueError("port range", s, "expected lo-hi")
	}
	l, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return PortRange{}, NewValueError("port range", s, "low bound is not a number")
	}
	h, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return PortRange{}, NewValueError("port range", s, "high bound is not a number")
	}
	r := PortRange{Lo: l, Hi: h}
	if err := r.Validate(); err != nil {
		return PortRange{}, err
	}
	return r, nil
}

// Validate checks bounds and ordering.
func (r PortRange) Validate() error {
	if r.Lo < 1 || r.Hi > 65535 || r.Lo > r.Hi {
		return NewValueError("port range", r.String(), "bounds must satisfy 1 <= lo <= hi <= 65535")
	}
	return nil
}

// Span returns the number of ports in the range.
func (r PortRange) Span() int {
	return r.Hi - r.Lo + 1
}

// Ports expands the range into individual ports.
func (r PortRange) Ports() []int {
	out := make([]int, 0, r.Span())
	for p := r.Lo; p <= r.Hi; p++ {
		out = append(out, p)
	}
	return out
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Lo, r.Hi)
}

// =============================================================================
// Port Sets
// =============================================================================

// mergePorts combines port lists, deduplicating while keeping first-seen order.
func mergePorts(lists ...[]int) []int {
	seen := map[int]bool{}
	var out []int
	for _, list := range lists {
		for _, p := range list {
			if p == 0 || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
