package domain

import "context"

// Measurement is one row of the obras_medicion table.
type Measurement struct {
	ID            int64    `json:"id"`
	Region        *int64   `json:"region"`
	NomCuenca     *string  `json:"nom_cuenca"`
	CodCuenca     *int64   `json:"cod_cuenca"`
	NomSubcuenca  *string  `json:"nom_subcuenca"`
	CodSubcuenca  *int64   `json:"cod_subcuenca"`
	Comuna        *string  `json:"comuna"`
	UTMNorte      *float64 `json:"utm_norte"`
	UTMEste       *float64 `json:"utm_este"`
	Huso          *string  `json:"huso"`
	NombInf       *string  `json:"nomb_inf"`
	NombreObra    *string  `json:"nombre_obra"`
	Caudal        *float64 `json:"caudal"`
	FechaMedicion *Date    `json:"fecha_medicion"`
}

type Location struct {
	CodRegion    *int64  `json:"cod_region"`
	NomCuenca    *string `json:"nom_cuenca"`
	CodCuenca    *int64  `json:"cod_cuenca"`
	NomSubcuenca *string `json:"nom_subcuenca"`
	CodSubcuenca *int64  `json:"cod_subcuenca"`
}

type Coordinate struct {
	NombreCuenca    *string  `json:"nombre_cuenca"`
	NombreSubcuenca *string  `json:"nombre_subcuenca"`
	Comuna          *string  `json:"comuna"`
	UTMNorte        *float64 `json:"utm_norte"`
	UTMEste         *float64 `json:"utm_este"`
	HusoUTM         *string  `json:"huso_utm"`
}

// NoLimit disables the row cap of a CoordinateFilter.
const NoLimit = -1

// CoordinateFilter narrows ListUniqueCoordinates. Nil filters are ignored.
// Limit caps the number of rows; zero yields none and NoLimit returns all.
type CoordinateFilter struct {
	Region       *int64
	CodCuenca    *int64
	CodSubcuenca *int64
	Limit        int
}

// FlowStats summarises the non-null caudal values of a basin.
// Count == 0 means the basin had no flow data; the other fields are then meaningless.
// StdDev is nil when fewer than two values exist.
type FlowStats struct {
	Count  int64
	Mean   float64
	Min    float64
	Max    float64
	StdDev *float64
}

func (s FlowStats) HasData() bool {
	return s.Count > 0
}

type ReporterRecordCount struct {
	Informante        string `json:"informante"`
	CantidadRegistros int64  `json:"cantidad_registros"`
}

type ReporterFlowTotal struct {
	Informante          string  `json:"informante"`
	CaudalTotalExtraido float64 `json:"caudal_total_extraido"`
}

type ReporterWorkCount struct {
	Informante          string `json:"informante"`
	CantidadObrasUnicas int64  `json:"cantidad_obras_unicas"`
}

// ReporterBreakdown holds three independently computed groupings. Their reporter
// sets may differ.
type ReporterBreakdown struct {
	RecordCounts []ReporterRecordCount
	FlowTotals   []ReporterFlowTotal
	WorkCounts   []ReporterWorkCount
}

type FlowPoint struct {
	FechaMedicion Date    `json:"fecha_medicion"`
	Caudal        float64 `json:"caudal"`
}

// FlowSeriesQuery selects a basin's time series. From and To are inclusive and optional.
type FlowSeriesQuery struct {
	Basin BasinID
	From  *Date
	To    *Date
}

type MeasurementStore interface {
	Init() error
	Ping(ctx context.Context) error
	InsertMeasurements(ctx context.Context, measurements []Measurement) error
	CountRecords(ctx context.Context) (int64, error)
	ListLocations(ctx context.Context) ([]Location, error)
	ListUniqueCoordinates(ctx context.Context, filter CoordinateFilter) ([]Coordinate, error)
	BasinFlowStats(ctx context.Context, basin BasinID) (FlowStats, error)
	ReporterBreakdown(ctx context.Context, basin BasinID) (ReporterBreakdown, error)
	FlowTimeSeries(ctx context.Context, query FlowSeriesQuery) ([]FlowPoint, error)
	Close() error
}
