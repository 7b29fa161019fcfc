package endpoints

import (
	"context"
	"errors"
	"net/http"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	FLOW_DATA_NOT_FOUND      = iota + 101 // 101 - No flow readings for the basin and period
	INVALID_PARAMETERS                    // 102 - Non-integer filter or limit
	MISSING_BASIN_IDENTIFIER              // 103 - cuenca_identificador absent or empty
	INVALID_BASIN_IDENTIFIER              // 104 - numeric basin code out of range
	INVALID_DATE                          // 105 - Date not in YYYY-MM-DD form
	INVALID_DATE_RANGE                    // 106 - fecha_inicio after fecha_fin
	REQUEST_CANCELLED                     // 107 - Request was cancelled by client or server timeout
	STORE_FAILURE                         // 108 - The record store failed
)

var (
	ErrFlowDataNotFound       = errors.New("no se encontraron datos de caudal para el período o cuenca especificada")
	ErrInvalidParameters      = errors.New("invalid query parameter; region, cod_cuenca, cod_subcuenca and limit must be integers")
	ErrMissingBasinIdentifier = errors.New("cuenca_identificador is required")
	ErrInvalidBasinIdentifier = errors.New("cuenca_identificador is not a valid basin code or name")
	ErrInvalidDate            = errors.New("invalid date; expected YYYY-MM-DD")
	ErrInvalidDateRange       = errors.New("fecha_inicio cannot be after fecha_fin")
	ErrRequestCancelled       = errors.New("request cancelled by client or server timeout")
	ErrStoreFailure           = errors.New("record store failure")
)

const NoFlowDataMessage = "No se encontraron datos de caudal para la cuenca especificada."

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, ErrFlowDataNotFound):
		return FLOW_DATA_NOT_FOUND
	case errors.Is(err, ErrInvalidParameters):
		return INVALID_PARAMETERS
	case errors.Is(err, ErrMissingBasinIdentifier):
		return MISSING_BASIN_IDENTIFIER
	case errors.Is(err, ErrInvalidBasinIdentifier):
		return INVALID_BASIN_IDENTIFIER
	case errors.Is(err, ErrInvalidDate):
		return INVALID_DATE
	case errors.Is(err, ErrInvalidDateRange):
		return INVALID_DATE_RANGE
	case errors.Is(err, ErrRequestCancelled):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrStoreFailure):
		return STORE_FAILURE
	default:
		return API_FAILURE
	}
}

// storeError classifies an error returned by the record store into the
// sentinel and HTTP status the client sees. The original description is kept.
func storeError(err error) (int, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusRequestTimeout, ErrRequestCancelled
	}
	return http.StatusInternalServerError, &wrappedError{kind: ErrStoreFailure, cause: err}
}

type wrappedError struct {
	kind  error
	cause error
}

func (e *wrappedError) Error() string { return e.kind.Error() + ": " + e.cause.Error() }

func (e *wrappedError) Unwrap() []error { return []error{e.kind, e.cause} }
