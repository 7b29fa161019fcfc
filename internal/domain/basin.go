package domain

import (
	"errors"
	"fmt"
	"strconv"
)

const UnknownReporter = "Desconocido"

var ErrEmptyBasinID = errors.New("basin identifier is empty")

// BasinID addresses a basin either by its integer code or by its exact name.
type BasinID struct {
	raw    string
	code   int64
	byCode bool
}

// ParseBasinID resolves a caller supplied identifier. A string made only of
// ASCII digits is a basin code, anything else is matched against the name.
func ParseBasinID(s string) (BasinID, error) {
	if s == "" {
		return BasinID{}, ErrEmptyBasinID
	}
	if !isDigits(s) {
		return BasinID{raw: s}, nil
	}
	code, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return BasinID{}, fmt.Errorf("basin code %q out of range: %w", s, err)
	}
	return BasinID{raw: s, code: code, byCode: true}, nil
}

func BasinCode(code int64) BasinID {
	return BasinID{raw: strconv.FormatInt(code, 10), code: code, byCode: true}
}

func BasinName(name string) BasinID {
	return BasinID{raw: name}
}

func (b BasinID) ByCode() bool   { return b.byCode }
func (b BasinID) Code() int64    { return b.code }
func (b BasinID) Name() string   { return b.raw }
func (b BasinID) String() string { return b.raw }

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// NormalizeReporter maps a missing or empty informant name to UnknownReporter.
func NormalizeReporter(name *string) string {
	if name == nil || *name == "" {
		return UnknownReporter
	}
	return *name
}
