package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/alco/internal/common"
)

// Year bounds accepted for a submission.
const (
	MinYear = 2024
	MaxYear = 2100
)

// FieldError reports an invalid submission field.
type FieldError struct {
	Err   error
	Field Field
	Value string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// SubmissionInput is the raw form a user fills in. Amounts holds the text
// typed for each amount field; blank or missing means "leave unchanged".
type SubmissionInput struct {
	SubmittedAt time.Time
	Amounts     map[Field]string
	Province    string
	Month       string
	Notes       string
	Year        int
}

// ParseSubmission validates input and builds the submission record. Every
// invalid field is reported; nothing is returned unless all fields parse.
func ParseSubmission(in SubmissionInput) (ReportRecord, error) {
	var (
		rec  ReportRecord
		errs []error
	)

	province, err := ParseProvince(in.Province)
	if err != nil {
		errs = append(errs, &FieldError{Field: FieldProvince, Value: in.Province, Err: err})
	}
	rec.Province = province

	month, err := ParseMonth(in.Month)
	if err != nil {
		errs = append(errs, &FieldError{Field: FieldMonth, Value: in.Month, Err: err})
	}
	rec.Month = month

	if in.Year < MinYear || in.Year > MaxYear {
		errs = append(errs, &FieldError{
			Field: FieldYear,
			Value: fmt.Sprint(in.Year),
			Err:   fmt.Errorf("%w: year must be between %d and %d", common.ErrValidation, MinYear, MaxYear),
		})
	}
	rec.Year = in.Year

	for _, f := range AmountFields {
		raw, ok := in.Amounts[f]
		if !ok {
			continue
		}
		amount, err := ParseAmount(raw)
		if err != nil {
			errs = append(errs, &FieldError{Field: f, Value: raw, Err: err})
			continue
		}
		rec.SetAmount(f, amount)
	}

	for f := range in.Amounts {
		if (&rec).amountRef(f) == nil {
			errs = append(errs, &FieldError{Field: f, Err: fmt.Errorf("%w: not an amount field", common.ErrValidation)})
		}
	}

	if strings.TrimSpace(in.Notes) != "" {
		rec.Notes = in.Notes
	}

	submittedAt := in.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	rec.Timestamp = submittedAt.Format(time.RFC3339)

	if len(errs) > 0 {
		return ReportRecord{}, errors.Join(errs...)
	}
	return rec, nil
}

// ValidateKey checks that a record carries a usable composite key.
func ValidateKey(r ReportRecord) error {
	if strings.TrimSpace(string(r.Province)) == "" {
		return &FieldError{Field: FieldProvince, Err: fmt.Errorf("%w: province is required", common.ErrValidation)}
	}
	if !r.Month.Valid() {
		return &FieldError{Field: FieldMonth, Err: fmt.Errorf("%w: month is required", common.ErrValidation)}
	}
	if r.Year == 0 {
		return &FieldError{Field: FieldYear, Err: fmt.Errorf("%w: year is required", common.ErrValidation)}
	}
	return nil
}
