package endpoints

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"caudal-api/internal/domain"
)

// Limits bounds the coordinate listing.
type Limits struct {
	DefaultCoordinates int
	MaxCoordinates     int
}

func DefaultLimits() Limits {
	return Limits{DefaultCoordinates: 120, MaxCoordinates: 5000}
}

func optionalInt(q url.Values, key string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidParameters, key, raw)
	}
	return &v, nil
}

func optionalDate(q url.Values, key string) (*domain.Date, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	d, err := domain.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidDate, key, raw)
	}
	return &d, nil
}

// basinParam reads cuenca_identificador. The returned id keeps the caller's
// spelling, which responses echo verbatim.
func basinParam(q url.Values) (domain.BasinID, error) {
	raw := q.Get("cuenca_identificador")
	if raw == "" {
		return domain.BasinID{}, ErrMissingBasinIdentifier
	}
	id, err := domain.ParseBasinID(raw)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyBasinID) {
			return domain.BasinID{}, ErrMissingBasinIdentifier
		}
		return domain.BasinID{}, fmt.Errorf("%w: %v", ErrInvalidBasinIdentifier, err)
	}
	return id, nil
}

// coordinateFilter parses the optional filters of /coordenadas_unicas. A
// missing limit falls back to the default, a negative one is rejected and
// larger ones are clamped to the maximum.
func (l Limits) coordinateFilter(q url.Values) (domain.CoordinateFilter, error) {
	var (
		filter domain.CoordinateFilter
		err    error
	)

	if filter.Region, err = optionalInt(q, "region"); err != nil {
		return filter, err
	}
	if filter.CodCuenca, err = optionalInt(q, "cod_cuenca"); err != nil {
		return filter, err
	}
	if filter.CodSubcuenca, err = optionalInt(q, "cod_subcuenca"); err != nil {
		return filter, err
	}

	limit, err := optionalInt(q, "limit")
	if err != nil {
		return filter, err
	}

	switch {
	case limit == nil:
		filter.Limit = l.DefaultCoordinates
	case *limit < 0:
		return filter, fmt.Errorf("%w: limit=%d must not be negative", ErrInvalidParameters, *limit)
	default:
		filter.Limit = int(min(*limit, int64(l.MaxCoordinates)))
	}
	return filter, nil
}

func flowSeriesQuery(q url.Values) (domain.FlowSeriesQuery, error) {
	var (
		query domain.FlowSeriesQuery
		err   error
	)

	if query.Basin, err = basinParam(q); err != nil {
		return query, err
	}
	if query.From, err = optionalDate(q, "fecha_inicio"); err != nil {
		return query, err
	}
	if query.To, err = optionalDate(q, "fecha_fin"); err != nil {
		return query, err
	}
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return query, ErrInvalidDateRange
	}
	return query, nil
}
