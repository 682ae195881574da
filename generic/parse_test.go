package generic_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fleet-engine/generic"
)

func TestParseAmount_SeparatorHeuristic(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234.56", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"12,5", "12.5"},
		{" 7 ", "7"},
		{"-3,75", "-3.75"},
		{"1.234.567,89", "1234567.89"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := generic.ParseAmount(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "12,3,4x"} {
		_, err := generic.ParseAmount(in)
		require.Error(t, err, in)

		var fe *generic.FieldError
		assert.True(t, errors.As(err, &fe))
		assert.ErrorIs(t, err, generic.ErrMalformedInput)
	}
}

func TestParseDate_AcceptedForms(t *testing.T) {
	for _, in := range []string{"2025-02-12", "12/02/2025", "12/2/25", "12-02-2025", "12-2-25"} {
		got, err := generic.ParseDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, "2025-02-12", got.String(), in)
	}

	_, err := generic.ParseDate("2025.02.12")
	assert.ErrorIs(t, err, generic.ErrMalformedInput)
}

func TestFormatEUR(t *testing.T) {
	assert.Equal(t, "1.234,50 €", generic.FormatEUR(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "0,00 €", generic.FormatEUR(decimal.Zero))
	assert.Equal(t, "-12,35 €", generic.FormatEUR(decimal.RequireFromString("-12.345")))
	assert.Equal(t, "1.000.000,00 €", generic.FormatEUR(decimal.NewFromInt(1000000)))
}
