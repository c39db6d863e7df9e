package cli

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{name: "zero", value: "0", want: "0"},
		{name: "hundreds", value: "950", want: "950"},
		{name: "grouped", value: "1234567", want: "1.234.567"},
		{name: "fraction", value: "1234567.5", want: "1.234.567,5"},
		{name: "rounded", value: "10.256", want: "10,26"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(decimal.RequireFromString(tt.value)))
		})
	}
}

func TestFormatNullAmount(t *testing.T) {
	assert.Equal(t, "-", FormatNullAmount(decimal.NullDecimal{}))
	assert.Equal(t, "2.500", FormatNullAmount(decimal.NewNullDecimal(decimal.NewFromInt(2500))))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "50,0%", FormatPercent(decimal.NewFromInt(50)))
	assert.Equal(t, "0,0%", FormatPercent(decimal.Zero))
	assert.Contains(t, FormatPercent(decimal.RequireFromString("-12.34")), "12,3%")
}
