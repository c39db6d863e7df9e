package model

import (
	"testing"

	"github.com/Veraticus/alco/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		input   string
		want    Month
		wantErr bool
	}{
		{input: "Jan", want: Jan},
		{input: "mei", want: Mei},
		{input: " Agu ", want: Agu},
		{input: "May", want: Mei},
		{input: "Dec", want: Des},
		{input: "Oktober", want: Okt},
		{input: "august", want: Agu},
		{input: "12", want: Des},
		{input: "13", wantErr: true},
		{input: "", wantErr: true},
		{input: "Smarch", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMonthsCalendarOrder(t *testing.T) {
	tokens := make([]string, 0, 12)
	for _, m := range Months() {
		tokens = append(tokens, m.String())
	}

	assert.Equal(t, []string{"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}, tokens)
	assert.False(t, Month(0).Valid())
	assert.Equal(t, "Month(13)", Month(13).String())
}

func TestParseProvince(t *testing.T) {
	p, err := ParseProvince("jawa barat")
	require.NoError(t, err)
	assert.Equal(t, JawaBarat, p)

	_, err = ParseProvince("Atlantis")
	assert.ErrorIs(t, err, common.ErrValidation)
}
