package cli

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Amounts are shown the way the regional offices write them: "." groups
// thousands and "," separates decimals.
var printer = message.NewPrinter(language.Indonesian)

// FormatAmount renders d with Indonesian digit grouping and at most two
// decimals.
func FormatAmount(d decimal.Decimal) string {
	return printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.MaxFractionDigits(2)))
}

// FormatNullAmount renders a nullable amount, "-" when missing.
func FormatNullAmount(v decimal.NullDecimal) string {
	if !v.Valid {
		return "-"
	}
	return FormatAmount(v.Decimal)
}

// FormatPercent renders pct with one decimal and a percent sign.
func FormatPercent(pct decimal.Decimal) string {
	f := pct.Round(1).InexactFloat64()
	return printer.Sprint(number.Decimal(f, number.MinFractionDigits(1), number.MaxFractionDigits(1))) + "%"
}
