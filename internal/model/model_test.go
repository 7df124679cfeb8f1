package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("week")
	require.NoError(t, err)
	assert.Equal(t, Weekly, g)

	g, err = ParseGranularity("month")
	require.NoError(t, err)
	assert.Equal(t, Monthly, g)

	_, err = ParseGranularity("fortnight")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown granularity")
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fune", "Fune"},
		{"FUNE ", "Fune"},
		{" fune", "Fune"},
		{"potiskum  town", "Potiskum Town"},
		{"\tBade \n", "Bade"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestEnvRowKey(t *testing.T) {
	r := EnvRow{District: "Fune", Year: 2024, Period: 23}
	assert.Equal(t, PeriodKey{District: "Fune", Year: 2024, Period: 23}, r.Key())
}
