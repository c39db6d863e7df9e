package model

import (
	"fmt"
	"strings"

	"github.com/Veraticus/alco/internal/common"
)

// Province names a regional office. Each province owns one partition in the
// report store.
type Province string

// Known provinces.
const (
	DKIJakarta    Province = "DKI Jakarta"
	JawaBarat     Province = "Jawa Barat"
	JawaTengah    Province = "Jawa Tengah"
	JawaTimur     Province = "Jawa Timur"
	Bali          Province = "Bali"
	SumateraUtara Province = "Sumatera Utara"
	Lampung       Province = "Lampung"
)

// Provinces returns every known province in display order.
func Provinces() []Province {
	return []Province{DKIJakarta, JawaBarat, JawaTengah, JawaTimur, Bali, SumateraUtara, Lampung}
}

// ParseProvince matches s against the known provinces, ignoring case and
// surrounding whitespace.
func ParseProvince(s string) (Province, error) {
	s = strings.TrimSpace(s)
	for _, p := range Provinces() {
		if strings.EqualFold(string(p), s) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: unknown province %q", common.ErrValidation, s)
}
