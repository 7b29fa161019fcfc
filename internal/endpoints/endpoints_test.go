package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caudal-api/internal/domain"
	"caudal-api/internal/util"
)

type MockMeasurementStore struct {
	Count       int64
	Locations   []domain.Location
	Coordinates []domain.Coordinate
	Stats       map[string]domain.FlowStats
	Breakdown   domain.ReporterBreakdown
	Points      []domain.FlowPoint
	Err         error

	LastFilter domain.CoordinateFilter
	LastBasin  domain.BasinID
	LastSeries domain.FlowSeriesQuery
}

func (m *MockMeasurementStore) Init() error { return m.Err }

func (m *MockMeasurementStore) Ping(ctx context.Context) error { return m.Err }

func (m *MockMeasurementStore) InsertMeasurements(ctx context.Context, measurements []domain.Measurement) error {
	return m.Err
}

func (m *MockMeasurementStore) CountRecords(ctx context.Context) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Count, nil
}

func (m *MockMeasurementStore) ListLocations(ctx context.Context) ([]domain.Location, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Locations, nil
}

func (m *MockMeasurementStore) ListUniqueCoordinates(ctx context.Context, filter domain.CoordinateFilter) ([]domain.Coordinate, error) {
	m.LastFilter = filter
	if m.Err != nil {
		return nil, m.Err
	}
	if filter.Limit >= 0 && filter.Limit < len(m.Coordinates) {
		return m.Coordinates[:filter.Limit], nil
	}
	return m.Coordinates, nil
}

func (m *MockMeasurementStore) BasinFlowStats(ctx context.Context, basin domain.BasinID) (domain.FlowStats, error) {
	m.LastBasin = basin
	if m.Err != nil {
		return domain.FlowStats{}, m.Err
	}
	return m.Stats[basin.String()], nil
}

func (m *MockMeasurementStore) ReporterBreakdown(ctx context.Context, basin domain.BasinID) (domain.ReporterBreakdown, error) {
	m.LastBasin = basin
	if m.Err != nil {
		return domain.ReporterBreakdown{}, m.Err
	}
	return m.Breakdown, nil
}

func (m *MockMeasurementStore) FlowTimeSeries(ctx context.Context, query domain.FlowSeriesQuery) ([]domain.FlowPoint, error) {
	m.LastSeries = query
	if m.Err != nil {
		return nil, m.Err
	}
	var out []domain.FlowPoint
	for _, p := range m.Points {
		if query.From != nil && p.FechaMedicion.Before(query.From.Time) {
			continue
		}
		if query.To != nil && p.FechaMedicion.After(*query.To) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *MockMeasurementStore) Close() error { return m.Err }

func newHandler(store domain.MeasurementStore) *Obras {
	h := &Obras{}
	h.Init(store, &util.AppLogger{}, Limits{DefaultCoordinates: 120, MaxCoordinates: 500})
	return h
}

func serve(handler http.HandlerFunc, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var res APIResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	assert.False(t, res.Status, "Expected API status to be false for error")
	return res
}

func TestGetCountHandler(t *testing.T) {
	store := &MockMeasurementStore{Count: 42}
	h := newHandler(store)

	rr := serve(h.GetCountHandler, http.MethodGet, "/obras/count")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"total_records":42}`, rr.Body.String())

	// store failure surfaces as 500 carrying the description
	store.Err = errors.New("disk I/O error")
	rr = serve(h.GetCountHandler, http.MethodGet, "/obras/count")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	res := decodeError(t, rr)
	assert.Equal(t, STORE_FAILURE, res.ErrorCode)
	assert.Contains(t, res.Error, "disk I/O error")

	// non GET is rejected
	store.Err = nil
	rr = serve(h.MethodNotAllowedHandler, http.MethodPost, "/obras/count")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	res = decodeError(t, rr)
	assert.Equal(t, API_FAILURE, res.ErrorCode)
	assert.Contains(t, res.Error, "method Not Allowed. Only GET requests are supported")
}

func TestGetCountHandler_Cancelled(t *testing.T) {
	h := newHandler(&MockMeasurementStore{Err: context.Canceled})

	rr := serve(h.GetCountHandler, http.MethodGet, "/obras/count")
	assert.Equal(t, http.StatusRequestTimeout, rr.Code)
	res := decodeError(t, rr)
	assert.Equal(t, REQUEST_CANCELLED, res.ErrorCode)
	assert.Contains(t, res.Error, ErrRequestCancelled.Error())
}

func TestGetLocationsHandler(t *testing.T) {
	maipo := "Rio Maipo"
	region, code := int64(13), int64(57)
	store := &MockMeasurementStore{}
	h := newHandler(store)

	// empty store renders an empty array, not null
	rr := serve(h.GetLocationsHandler, http.MethodGet, "/ubicaciones")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	store.Locations = []domain.Location{{CodRegion: &region, NomCuenca: &maipo, CodCuenca: &code}}
	rr = serve(h.GetLocationsHandler, http.MethodGet, "/ubicaciones")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"cod_region":13,"nom_cuenca":"Rio Maipo","cod_cuenca":57,"nom_subcuenca":null,"cod_subcuenca":null}]`, rr.Body.String())
}

func TestGetUniqueCoordinatesHandler(t *testing.T) {
	norte, este := 6300000.5, 350000.25
	huso := "19"
	coords := make([]domain.Coordinate, 0, 200)
	for i := 0; i < 200; i++ {
		n := norte + float64(i)
		coords = append(coords, domain.Coordinate{UTMNorte: &n, UTMEste: &este, HusoUTM: &huso})
	}
	store := &MockMeasurementStore{Coordinates: coords}
	h := newHandler(store)

	// case 1: default limit and no filters
	rr := serve(h.GetUniqueCoordinatesHandler, http.MethodGet, "/coordenadas_unicas")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 120, store.LastFilter.Limit)
	assert.Nil(t, store.LastFilter.Region)
	assert.Nil(t, store.LastFilter.CodCuenca)
	assert.Nil(t, store.LastFilter.CodSubcuenca)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 120)
	assert.Equal(t, "19", got[0]["huso_utm"])
	assert.Contains(t, got[0], "nombre_cuenca")
	assert.Contains(t, got[0], "nombre_subcuenca")
	assert.Contains(t, got[0], "comuna")

	// case 2: filters and limit
	rr = serve(h.GetUniqueCoordinatesHandler, http.MethodGet, "/coordenadas_unicas?region=13&cod_cuenca=57&cod_subcuenca=573&limit=5")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, store.LastFilter.Limit)
	require.NotNil(t, store.LastFilter.Region)
	assert.Equal(t, int64(13), *store.LastFilter.Region)
	assert.Equal(t, int64(57), *store.LastFilter.CodCuenca)
	assert.Equal(t, int64(573), *store.LastFilter.CodSubcuenca)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 5)

	// case 3: oversized limit is clamped
	serve(h.GetUniqueCoordinatesHandler, http.MethodGet, "/coordenadas_unicas?limit=100000")
	assert.Equal(t, 500, store.LastFilter.Limit)

	// case 4: zero limit is an empty listing, never the default
	rr = serve(h.GetUniqueCoordinatesHandler, http.MethodGet, "/coordenadas_unicas?limit=0")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, store.LastFilter.Limit)
	assert.JSONEq(t, `[]`, rr.Body.String())

	// case 4b: negative limit is rejected before reaching the store
	store.LastFilter = domain.CoordinateFilter{Limit: 77}
	rr = serve(h.GetUniqueCoordinatesHandler, http.MethodGet, "/coordenadas_unicas?limit=-3")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, INVALID_PARAMETERS, decodeError(t, rr).ErrorCode)
	assert.Equal(t, 77, store.LastFilter.Limit)

	// case 5: non integer filters are rejected
	for _, target := range []string{
		"/coordenadas_unicas?region=RM",
		"/coordenadas_unicas?cod_cuenca=5.5",
		"/coordenadas_unicas?cod_subcuenca=x",
		"/coordenadas_unicas?limit=ten",
	} {
		rr = serve(h.GetUniqueCoordinatesHandler, http.MethodGet, target)
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		res := decodeError(t, rr)
		assert.Equal(t, INVALID_PARAMETERS, res.ErrorCode, target)
	}
}

func TestGetBasinAnalysisHandler(t *testing.T) {
	sd := 2.5
	store := &MockMeasurementStore{Stats: map[string]domain.FlowStats{
		"57":        {Count: 8, Mean: 5, Min: 2, Max: 9, StdDev: &sd},
		"Rio Maipo": {Count: 1, Mean: 10, Min: 10, Max: 10},
		"91":        {Count: 2},
	}}
	h := newHandler(store)

	// case 1: numeric identifier resolves to a code
	rr := serve(h.GetBasinAnalysisHandler, http.MethodGet, "/analisis_cuenca?cuenca_identificador=57")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, store.LastBasin.ByCode())
	assert.JSONEq(t, `{
		"cuenca_identificador": "57",
		"total_registros_con_caudal": 8,
		"caudal_promedio": 5,
		"caudal_minimo": 2,
		"caudal_maximo": 9,
		"desviacion_estandar_caudal": 2.5
	}`, rr.Body.String())

	// case 2: names are matched as names; a single value has a null deviation
	rr = serve(h.GetBasinAnalysisHandler, http.MethodGet, "/analisis_cuenca?cuenca_identificador=Rio+Maipo")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, store.LastBasin.ByCode())
	assert.Equal(t, "Rio Maipo", store.LastBasin.Name())
	var analysis map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &analysis))
	assert.Equal(t, "Rio Maipo", analysis["cuenca_identificador"])
	assert.Nil(t, analysis["desviacion_estandar_caudal"])

	// case 3: all-zero flow is still statistics, not the message
	rr = serve(h.GetBasinAnalysisHandler, http.MethodGet, "/analisis_cuenca?cuenca_identificador=91")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "message")

	// case 4: no data is a successful response with a message
	rr = serve(h.GetBasinAnalysisHandler, http.MethodGet, "/analisis_cuenca?cuenca_identificador=999")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"`+NoFlowDataMessage+`"}`, rr.Body.String())

	// case 5: identifier is required
	rr = serve(h.GetBasinAnalysisHandler, http.MethodGet, "/analisis_cuenca")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, MISSING_BASIN_IDENTIFIER, decodeError(t, rr).ErrorCode)

	// case 6: codes beyond int64
	rr = serve(h.GetBasinAnalysisHandler, http.MethodGet, "/analisis_cuenca?cuenca_identificador=123456789012345678901234")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, INVALID_BASIN_IDENTIFIER, decodeError(t, rr).ErrorCode)

	// case 7: store failure
	store.Err = errors.New("connection refused")
	rr = serve(h.GetBasinAnalysisHandler, http.MethodGet, "/analisis_cuenca?cuenca_identificador=57")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	res := decodeError(t, rr)
	assert.Equal(t, STORE_FAILURE, res.ErrorCode)
	assert.Contains(t, res.Error, "connection refused")
}

func TestGetReportersByBasinHandler(t *testing.T) {
	store := &MockMeasurementStore{Breakdown: domain.ReporterBreakdown{
		RecordCounts: []domain.ReporterRecordCount{{Informante: "DGA", CantidadRegistros: 3}, {Informante: domain.UnknownReporter, CantidadRegistros: 1}},
		FlowTotals:   []domain.ReporterFlowTotal{{Informante: "DGA", CaudalTotalExtraido: 15}},
		WorkCounts:   []domain.ReporterWorkCount{{Informante: "DGA", CantidadObrasUnicas: 2}, {Informante: domain.UnknownReporter, CantidadObrasUnicas: 1}},
	}}
	h := newHandler(store)

	rr := serve(h.GetReportersByBasinHandler, http.MethodGet, "/informantes_por_cuenca?cuenca_identificador=57")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"cuenca_identificador": "57",
		"grafico_cantidad_registros_por_informante": [
			{"informante": "DGA", "cantidad_registros": 3},
			{"informante": "Desconocido", "cantidad_registros": 1}
		],
		"grafico_caudal_total_por_informante": [
			{"informante": "DGA", "caudal_total_extraido": 15}
		],
		"grafico_cantidad_obras_unicas_por_informante": [
			{"informante": "DGA", "cantidad_obras_unicas": 2},
			{"informante": "Desconocido", "cantidad_obras_unicas": 1}
		]
	}`, rr.Body.String())

	// unknown basin yields empty groupings
	store.Breakdown = domain.ReporterBreakdown{}
	rr = serve(h.GetReportersByBasinHandler, http.MethodGet, "/informantes_por_cuenca?cuenca_identificador=Rio+Seco")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"cuenca_identificador": "Rio Seco",
		"grafico_cantidad_registros_por_informante": [],
		"grafico_caudal_total_por_informante": [],
		"grafico_cantidad_obras_unicas_por_informante": []
	}`, rr.Body.String())

	rr = serve(h.GetReportersByBasinHandler, http.MethodGet, "/informantes_por_cuenca?cuenca_identificador=")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, MISSING_BASIN_IDENTIFIER, decodeError(t, rr).ErrorCode)
}

func TestGetFlowOverTimeHandler(t *testing.T) {
	store := &MockMeasurementStore{Points: []domain.FlowPoint{
		{FechaMedicion: domain.NewDate(2024, time.January, 1), Caudal: 10},
		{FechaMedicion: domain.NewDate(2024, time.February, 1), Caudal: 12.5},
	}}
	h := newHandler(store)

	// case 1: whole series
	rr := serve(h.GetFlowOverTimeHandler, http.MethodGet, "/caudal_por_tiempo_por_cuenca?cuenca_identificador=1")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{
		"cuenca_identificador": "1",
		"caudal_por_tiempo": [
			{"fecha_medicion": "2024-01-01", "caudal": 10},
			{"fecha_medicion": "2024-02-01", "caudal": 12.5}
		]
	}`, rr.Body.String())
	assert.Nil(t, store.LastSeries.From)
	assert.Nil(t, store.LastSeries.To)

	// case 2: bounds are parsed and passed through
	rr = serve(h.GetFlowOverTimeHandler, http.MethodGet, "/caudal_por_tiempo_por_cuenca?cuenca_identificador=1&fecha_inicio=2024-01-15&fecha_fin=2024-12-31")
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, store.LastSeries.From)
	require.NotNil(t, store.LastSeries.To)
	assert.Equal(t, "2024-01-15", store.LastSeries.From.String())
	assert.Equal(t, "2024-12-31", store.LastSeries.To.String())
	assert.Contains(t, rr.Body.String(), "2024-02-01")
	assert.NotContains(t, rr.Body.String(), "2024-01-01")

	// case 3: empty series is a not-found error, unlike the statistics message
	rr = serve(h.GetFlowOverTimeHandler, http.MethodGet, "/caudal_por_tiempo_por_cuenca?cuenca_identificador=1&fecha_inicio=2025-01-01")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	res := decodeError(t, rr)
	assert.Equal(t, FLOW_DATA_NOT_FOUND, res.ErrorCode)
	assert.Contains(t, res.Error, ErrFlowDataNotFound.Error())

	// case 4: malformed date
	rr = serve(h.GetFlowOverTimeHandler, http.MethodGet, "/caudal_por_tiempo_por_cuenca?cuenca_identificador=1&fecha_inicio=01-01-2024")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, INVALID_DATE, decodeError(t, rr).ErrorCode)

	// case 5: inverted range
	rr = serve(h.GetFlowOverTimeHandler, http.MethodGet, "/caudal_por_tiempo_por_cuenca?cuenca_identificador=1&fecha_inicio=2024-03-01&fecha_fin=2024-02-01")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, INVALID_DATE_RANGE, decodeError(t, rr).ErrorCode)

	// case 6: missing identifier
	rr = serve(h.GetFlowOverTimeHandler, http.MethodGet, "/caudal_por_tiempo_por_cuenca?fecha_inicio=2024-01-01")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, MISSING_BASIN_IDENTIFIER, decodeError(t, rr).ErrorCode)

	// case 7: store failure is a 500, never a 404
	store.Err = errors.New("relation \"obras_medicion\" does not exist")
	rr = serve(h.GetFlowOverTimeHandler, http.MethodGet, "/caudal_por_tiempo_por_cuenca?cuenca_identificador=1")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, STORE_FAILURE, decodeError(t, rr).ErrorCode)
}

func TestHealthHandler(t *testing.T) {
	store := &MockMeasurementStore{}
	h := newHandler(store)

	rr := serve(h.HealthHandler, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	store.Err = errors.New("database is locked")
	rr = serve(h.HealthHandler, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestInitDefaults(t *testing.T) {
	store := &MockMeasurementStore{}
	h := &Obras{}
	h.Init(store, &util.AppLogger{}, Limits{})

	serve(h.GetUniqueCoordinatesHandler, http.MethodGet, "/coordenadas_unicas?limit=999999")
	assert.Equal(t, DefaultLimits().MaxCoordinates, store.LastFilter.Limit)
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, API_SUCCESS, GetErrorCode(nil))
	assert.Equal(t, API_FAILURE, GetErrorCode(errors.New("other")))

	status, err := storeError(context.DeadlineExceeded)
	assert.Equal(t, http.StatusRequestTimeout, status)
	assert.Equal(t, REQUEST_CANCELLED, GetErrorCode(err))

	cause := errors.New("no such table: obras_medicion")
	status, err = storeError(cause)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, STORE_FAILURE, GetErrorCode(err))
	assert.ErrorIs(t, err, cause, "the original failure stays reachable")
	assert.Equal(t, "record store failure: no such table: obras_medicion", err.Error())
}
