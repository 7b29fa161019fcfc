package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"

	"caudal-api/internal/domain"
)

// predicates accumulates AND-combined WHERE conditions with their arguments.
type predicates struct {
	conditions []string
	args       []interface{}
}

func (p *predicates) add(condition string, args ...interface{}) {
	p.conditions = append(p.conditions, condition)
	p.args = append(p.args, args...)
}

func (p *predicates) basin(id domain.BasinID) {
	if id.ByCode() {
		p.add("cod_cuenca = ?", id.Code())
		return
	}
	p.add("nom_cuenca = ?", id.Name())
}

func (p *predicates) where() string {
	if len(p.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(p.conditions, " AND ")
}

func (s *SQLStore) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.withReadSession(ctx, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, "SELECT COUNT(id) FROM obras_medicion").Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("error counting records: %w", err)
	}
	return count, nil
}

func (s *SQLStore) ListLocations(ctx context.Context) ([]domain.Location, error) {
	query := `SELECT DISTINCT region, nom_cuenca, cod_cuenca, nom_subcuenca, cod_subcuenca
		FROM obras_medicion`

	locations := make([]domain.Location, 0)
	err := s.withReadSession(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var l domain.Location
			if err := rows.Scan(&l.CodRegion, &l.NomCuenca, &l.CodCuenca, &l.NomSubcuenca, &l.CodSubcuenca); err != nil {
				return err
			}
			locations = append(locations, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("error listing locations: %w", err)
	}
	return locations, nil
}

// ListUniqueCoordinates returns one row per (utm_norte, utm_este) pair, the one
// with the lowest id among the rows matching the filter.
func (s *SQLStore) ListUniqueCoordinates(ctx context.Context, filter domain.CoordinateFilter) ([]domain.Coordinate, error) {
	var p predicates
	if filter.Region != nil {
		p.add("region = ?", *filter.Region)
	}
	if filter.CodCuenca != nil {
		p.add("cod_cuenca = ?", *filter.CodCuenca)
	}
	if filter.CodSubcuenca != nil {
		p.add("cod_subcuenca = ?", *filter.CodSubcuenca)
	}

	query := `SELECT nom_cuenca, nom_subcuenca, comuna, utm_norte, utm_este, huso
		FROM obras_medicion
		WHERE id IN (SELECT MIN(id) FROM obras_medicion` + p.where() + ` GROUP BY utm_norte, utm_este)
		ORDER BY id`
	args := p.args
	if filter.Limit >= 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	query = s.dialect.rebind(query)

	coordinates := make([]domain.Coordinate, 0)
	err := s.withReadSession(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c domain.Coordinate
			if err := rows.Scan(&c.NombreCuenca, &c.NombreSubcuenca, &c.Comuna, &c.UTMNorte, &c.UTMEste, &c.HusoUTM); err != nil {
				return err
			}
			coordinates = append(coordinates, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("error listing coordinates: %w", err)
	}
	return coordinates, nil
}

// BasinFlowStats aggregates the non-null caudal of a basin. The standard
// deviation is the sample one, computed in a second pass around the mean.
func (s *SQLStore) BasinFlowStats(ctx context.Context, basin domain.BasinID) (domain.FlowStats, error) {
	var p predicates
	p.basin(basin)
	p.add("caudal IS NOT NULL")

	aggregate := s.dialect.rebind(`SELECT COUNT(caudal), AVG(caudal), MIN(caudal), MAX(caudal)
		FROM obras_medicion` + p.where())
	deviation := s.dialect.rebind(`SELECT SUM((caudal - ?) * (caudal - ?))
		FROM obras_medicion` + p.where())

	var stats domain.FlowStats
	err := s.withReadSession(ctx, func(tx *sql.Tx) error {
		var mean, lo, hi sql.NullFloat64
		if err := tx.QueryRowContext(ctx, aggregate, p.args...).Scan(&stats.Count, &mean, &lo, &hi); err != nil {
			return err
		}
		if stats.Count == 0 {
			return nil
		}
		stats.Mean, stats.Min, stats.Max = mean.Float64, lo.Float64, hi.Float64
		if stats.Count < 2 {
			return nil
		}

		var squares sql.NullFloat64
		args := append([]interface{}{stats.Mean, stats.Mean}, p.args...)
		if err := tx.QueryRowContext(ctx, deviation, args...).Scan(&squares); err != nil {
			return err
		}
		stdDev := math.Sqrt(squares.Float64 / float64(stats.Count-1))
		stats.StdDev = &stdDev
		return nil
	})
	if err != nil {
		return domain.FlowStats{}, fmt.Errorf("error computing basin statistics: %w", err)
	}
	return stats, nil
}

// ReporterBreakdown groups a basin's records per informant. Grouping happens on
// the raw column; names are then folded with domain.NormalizeReporter so that
// NULL and empty collapse into one entry.
func (s *SQLStore) ReporterBreakdown(ctx context.Context, basin domain.BasinID) (domain.ReporterBreakdown, error) {
	var p predicates
	p.basin(basin)

	var withCaudal predicates
	withCaudal.basin(basin)
	withCaudal.add("caudal IS NOT NULL")

	countQuery := s.dialect.rebind(`SELECT nomb_inf, COUNT(id) FROM obras_medicion` + p.where() + ` GROUP BY nomb_inf`)
	sumQuery := s.dialect.rebind(`SELECT nomb_inf, SUM(caudal) FROM obras_medicion` + withCaudal.where() + ` GROUP BY nomb_inf`)
	worksQuery := s.dialect.rebind(`SELECT DISTINCT nomb_inf, nombre_obra FROM obras_medicion` + p.where())

	counts := map[string]int64{}
	totals := map[string]float64{}
	works := map[string]map[string]struct{}{}

	err := s.withReadSession(ctx, func(tx *sql.Tx) error {
		err := eachRow(ctx, tx, countQuery, p.args, func(rows *sql.Rows) error {
			var name *string
			var n int64
			if err := rows.Scan(&name, &n); err != nil {
				return err
			}
			counts[domain.NormalizeReporter(name)] += n
			return nil
		})
		if err != nil {
			return err
		}

		err = eachRow(ctx, tx, sumQuery, withCaudal.args, func(rows *sql.Rows) error {
			var name *string
			var total sql.NullFloat64
			if err := rows.Scan(&name, &total); err != nil {
				return err
			}
			totals[domain.NormalizeReporter(name)] += total.Float64
			return nil
		})
		if err != nil {
			return err
		}

		return eachRow(ctx, tx, worksQuery, p.args, func(rows *sql.Rows) error {
			var name, obra *string
			if err := rows.Scan(&name, &obra); err != nil {
				return err
			}
			// reporters whose works are all unnamed still appear, with zero
			reporter := domain.NormalizeReporter(name)
			if works[reporter] == nil {
				works[reporter] = map[string]struct{}{}
			}
			if obra != nil {
				works[reporter][*obra] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return domain.ReporterBreakdown{}, fmt.Errorf("error computing reporter breakdown: %w", err)
	}

	breakdown := domain.ReporterBreakdown{
		RecordCounts: make([]domain.ReporterRecordCount, 0, len(counts)),
		FlowTotals:   make([]domain.ReporterFlowTotal, 0, len(totals)),
		WorkCounts:   make([]domain.ReporterWorkCount, 0, len(works)),
	}
	for _, name := range sortedKeys(counts) {
		breakdown.RecordCounts = append(breakdown.RecordCounts, domain.ReporterRecordCount{Informante: name, CantidadRegistros: counts[name]})
	}
	for _, name := range sortedKeys(totals) {
		breakdown.FlowTotals = append(breakdown.FlowTotals, domain.ReporterFlowTotal{Informante: name, CaudalTotalExtraido: totals[name]})
	}
	for _, name := range sortedKeys(works) {
		breakdown.WorkCounts = append(breakdown.WorkCounts, domain.ReporterWorkCount{Informante: name, CantidadObrasUnicas: int64(len(works[name]))})
	}
	return breakdown, nil
}

func (s *SQLStore) FlowTimeSeries(ctx context.Context, q domain.FlowSeriesQuery) ([]domain.FlowPoint, error) {
	var p predicates
	p.basin(q.Basin)
	p.add("caudal IS NOT NULL")
	p.add("fecha_medicion IS NOT NULL")
	if q.From != nil {
		p.add("fecha_medicion >= ?", *q.From)
	}
	if q.To != nil {
		p.add("fecha_medicion <= ?", *q.To)
	}

	query := s.dialect.rebind(`SELECT fecha_medicion, caudal FROM obras_medicion` + p.where() + ` ORDER BY fecha_medicion ASC`)

	points := make([]domain.FlowPoint, 0)
	err := s.withReadSession(ctx, func(tx *sql.Tx) error {
		return eachRow(ctx, tx, query, p.args, func(rows *sql.Rows) error {
			var fp domain.FlowPoint
			if err := rows.Scan(&fp.FechaMedicion, &fp.Caudal); err != nil {
				return err
			}
			points = append(points, fp)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("error querying flow time series: %w", err)
	}
	return points, nil
}

func eachRow(ctx context.Context, tx *sql.Tx, query string, args []interface{}, fn func(rows *sql.Rows) error) error {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
