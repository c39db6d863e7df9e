package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/alco/internal/common"
)

// Month is a calendar month, 1 (Jan) through 12 (Des). The zero value is
// not a valid month.
type Month int

// Calendar months.
const (
	Jan Month = iota + 1
	Feb
	Mar
	Apr
	Mei
	Jun
	Jul
	Agu
	Sep
	Okt
	Nov
	Des
)

// monthTokens are the canonical tokens stored in the Month column.
var monthTokens = [...]string{"", "Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"}

// monthAliases maps lower-cased spellings onto months.
var monthAliases = map[string]Month{
	"may": Mei, "aug": Agu, "oct": Okt, "dec": Des,
	"january": Jan, "february": Feb, "march": Mar, "april": Apr,
	"june": Jun, "july": Jul, "august": Agu, "september": Sep,
	"october": Okt, "november": Nov, "december": Des,
	"januari": Jan, "februari": Feb, "maret": Mar, "juni": Jun,
	"juli": Jul, "agustus": Agu, "oktober": Okt, "desember": Des,
}

// Months returns the twelve months in calendar order.
func Months() []Month {
	months := make([]Month, 0, 12)
	for m := Jan; m <= Des; m++ {
		months = append(months, m)
	}
	return months
}

// Valid reports whether m is one of the twelve calendar months.
func (m Month) Valid() bool {
	return m >= Jan && m <= Des
}

// String returns the canonical three-letter token.
func (m Month) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Month(%d)", int(m))
	}
	return monthTokens[m]
}

// ParseMonth accepts canonical tokens, English abbreviations, full English or
// Indonesian names and the numbers 1-12.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for m := Jan; m <= Des; m++ {
		if strings.ToLower(monthTokens[m]) == lower {
			return m, nil
		}
	}
	if m, ok := monthAliases[lower]; ok {
		return m, nil
	}
	if n, err := strconv.Atoi(s); err == nil && Month(n).Valid() {
		return Month(n), nil
	}
	return 0, fmt.Errorf("%w: unknown month %q", common.ErrValidation, s)
}
