package endpoints

import (
	"errors"
	"net/http"

	"caudal-api/internal/domain"
	"caudal-api/internal/util"
)

type CountResponse struct {
	TotalRecords int64 `json:"total_records"`
}

type BasinAnalysisResponse struct {
	CuencaIdentificador      string   `json:"cuenca_identificador"`
	TotalRegistrosConCaudal  int64    `json:"total_registros_con_caudal"`
	CaudalPromedio           float64  `json:"caudal_promedio"`
	CaudalMinimo             float64  `json:"caudal_minimo"`
	CaudalMaximo             float64  `json:"caudal_maximo"`
	DesviacionEstandarCaudal *float64 `json:"desviacion_estandar_caudal"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ReporterBreakdownResponse struct {
	CuencaIdentificador string                       `json:"cuenca_identificador"`
	RecordCounts        []domain.ReporterRecordCount `json:"grafico_cantidad_registros_por_informante"`
	FlowTotals          []domain.ReporterFlowTotal   `json:"grafico_caudal_total_por_informante"`
	WorkCounts          []domain.ReporterWorkCount   `json:"grafico_cantidad_obras_unicas_por_informante"`
}

type FlowSeriesResponse struct {
	CuencaIdentificador string             `json:"cuenca_identificador"`
	CaudalPorTiempo     []domain.FlowPoint `json:"caudal_por_tiempo"`
}

type Obras struct {
	Response APIResponse
	logger   *util.AppLogger
	store    domain.MeasurementStore
	limits   Limits
}

func (o *Obras) Init(store domain.MeasurementStore, logger *util.AppLogger, limits Limits) {
	defaults := DefaultLimits()
	if limits.DefaultCoordinates <= 0 {
		limits.DefaultCoordinates = defaults.DefaultCoordinates
	}
	if limits.MaxCoordinates <= 0 {
		limits.MaxCoordinates = defaults.MaxCoordinates
	}

	o.store = store
	o.logger = logger
	o.limits = limits
}

// MethodNotAllowedHandler answers routes hit with anything but GET.
func (o *Obras) MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	o.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", r.Method, r.URL.Path)
	o.Response.WriteErrorResponseWithStatusCode(w, errors.New("method Not Allowed. Only GET requests are supported"), http.StatusMethodNotAllowed)
}

func (o *Obras) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	o.logger.LogEvent(util.LOG_LEVEL_WARN, "Invalid request", r.URL.RequestURI(), "Err -", err)
	o.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusBadRequest)
}

func (o *Obras) storeFailure(w http.ResponseWriter, op string, err error) {
	status, apiErr := storeError(err)
	if status == http.StatusRequestTimeout {
		o.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled during", op)
	} else {
		o.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while", op, "Err -", err)
	}
	o.Response.WriteErrorResponseWithStatusCode(w, apiErr, status)
}

// GetCountHandler serves /obras/count.
func (o *Obras) GetCountHandler(w http.ResponseWriter, r *http.Request) {
	count, err := o.store.CountRecords(r.Context())
	if err != nil {
		o.storeFailure(w, "CountRecords()", err)
		return
	}
	o.Response.WriteResultResponse(w, CountResponse{TotalRecords: count})
}

// GetLocationsHandler serves /ubicaciones.
func (o *Obras) GetLocationsHandler(w http.ResponseWriter, r *http.Request) {
	locations, err := o.store.ListLocations(r.Context())
	if err != nil {
		o.storeFailure(w, "ListLocations()", err)
		return
	}
	o.Response.WriteResultResponse(w, nonNil(locations))
}

// GetUniqueCoordinatesHandler serves /coordenadas_unicas.
func (o *Obras) GetUniqueCoordinatesHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := o.limits.coordinateFilter(r.URL.Query())
	if err != nil {
		o.badRequest(w, r, err)
		return
	}

	coordinates, err := o.store.ListUniqueCoordinates(r.Context(), filter)
	if err != nil {
		o.storeFailure(w, "ListUniqueCoordinates()", err)
		return
	}
	o.Response.WriteResultResponse(w, nonNil(coordinates))
}

// GetBasinAnalysisHandler serves /analisis_cuenca. A basin without flow
// readings is answered with 200 and a message, unlike the time series which
// answers 404.
func (o *Obras) GetBasinAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	basin, err := basinParam(r.URL.Query())
	if err != nil {
		o.badRequest(w, r, err)
		return
	}

	stats, err := o.store.BasinFlowStats(r.Context(), basin)
	if err != nil {
		o.storeFailure(w, "BasinFlowStats()", err)
		return
	}

	if !stats.HasData() {
		o.logger.LogEvent(util.LOG_LEVEL_INFO, "No flow data for basin", basin.String())
		o.Response.WriteResultResponse(w, MessageResponse{Message: NoFlowDataMessage})
		return
	}

	o.Response.WriteResultResponse(w, BasinAnalysisResponse{
		CuencaIdentificador:      basin.String(),
		TotalRegistrosConCaudal:  stats.Count,
		CaudalPromedio:           stats.Mean,
		CaudalMinimo:             stats.Min,
		CaudalMaximo:             stats.Max,
		DesviacionEstandarCaudal: stats.StdDev,
	})
}

// GetReportersByBasinHandler serves /informantes_por_cuenca.
func (o *Obras) GetReportersByBasinHandler(w http.ResponseWriter, r *http.Request) {
	basin, err := basinParam(r.URL.Query())
	if err != nil {
		o.badRequest(w, r, err)
		return
	}

	breakdown, err := o.store.ReporterBreakdown(r.Context(), basin)
	if err != nil {
		o.storeFailure(w, "ReporterBreakdown()", err)
		return
	}

	o.Response.WriteResultResponse(w, ReporterBreakdownResponse{
		CuencaIdentificador: basin.String(),
		RecordCounts:        nonNil(breakdown.RecordCounts),
		FlowTotals:          nonNil(breakdown.FlowTotals),
		WorkCounts:          nonNil(breakdown.WorkCounts),
	})
}

// GetFlowOverTimeHandler serves /caudal_por_tiempo_por_cuenca.
func (o *Obras) GetFlowOverTimeHandler(w http.ResponseWriter, r *http.Request) {
	query, err := flowSeriesQuery(r.URL.Query())
	if err != nil {
		o.badRequest(w, r, err)
		return
	}

	points, err := o.store.FlowTimeSeries(r.Context(), query)
	if err != nil {
		o.storeFailure(w, "FlowTimeSeries()", err)
		return
	}

	if len(points) == 0 {
		o.logger.LogEvent(util.LOG_LEVEL_WARN, "No flow time series for basin", query.Basin.String())
		o.Response.WriteErrorResponseWithStatusCode(w, ErrFlowDataNotFound, http.StatusNotFound)
		return
	}

	o.Response.WriteResultResponse(w, FlowSeriesResponse{
		CuencaIdentificador: query.Basin.String(),
		CaudalPorTiempo:     points,
	})
}

// HealthHandler serves /healthz.
func (o *Obras) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := o.store.Ping(r.Context()); err != nil {
		o.storeFailure(w, "Ping()", err)
		return
	}
	o.Response.WriteResultResponse(w, map[string]string{"status": "ok"})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
