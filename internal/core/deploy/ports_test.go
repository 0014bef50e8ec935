package deploy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortRange_Valid(t *testing.T) {
	r, err := ParsePortRange("21000-21010")
	require.NoError(t, err)
	assert.Equal(t, 21000, r.Lo)
	assert.Equal(t, 21010, r.Hi)
	assert.Equal(t, 11, r.Span())
}

func TestParsePortRange_TrimsSpace(t *testing.T) {
	r, err := ParsePortRange(" 21000 - 21010 ")
	require.NoError(t, err)
	assert.Equal(t, "21000-21010", r.String())
}

func TestParsePortRange_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no separator", "21000"},
		{"low not a number", "abc-21010"},
		{"high not a number", "21000-xyz"},
		{"inverted", "21010-21000"},
		{"zero low", "0-1024"},
		{"above max", "65000-70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePortRange(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrBadValue)
		})
	}
}

func TestPortRange_Ports(t *testing.T) {
	r := PortRange{Lo: 21, Hi: 23}
	assert.Equal(t, []int{21, 22, 23}, r.Ports())
}

func TestPortRange_SinglePort(t *testing.T) {
	r := PortRange{Lo: 21, Hi: 21}
	assert.Equal(t, 1, r.Span())
	assert.Equal(t, []int{21}, r.Ports())
}

func TestMergePorts_DedupesKeepingFirstSeenOrder(t *testing.T) {
	merged := mergePorts([]int{443, 80}, []int{80, 8080, 443}, []int{0, 21})
	assert.Equal(t, []int{443, 80, 8080, 21}, merged)
}

func TestMergePorts_Empty(t *testing.T) {
	assert.Nil(t, mergePorts(nil, []int{}))
}
