package repository

import (
	"context"
	"errors"
	"fmt"

	"caudal-api/internal/domain"
)

const insertMeasurementSQL = `INSERT INTO obras_medicion(
	region, nom_cuenca, cod_cuenca, nom_subcuenca, cod_subcuenca, comuna,
	utm_norte, utm_este, huso, nomb_inf, nombre_obra, caudal, fecha_medicion
) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertMeasurements writes all measurements in a single transaction. Ids are
// assigned by the database; any ID set on the input is ignored.
func (s *SQLStore) InsertMeasurements(ctx context.Context, measurements []domain.Measurement) error {
	if s.db == nil {
		return errors.New("store is not initialized")
	}
	if len(measurements) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning insert transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(insertMeasurementSQL))
	if err != nil {
		return fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for i, m := range measurements {
		_, err = stmt.ExecContext(ctx,
			m.Region, m.NomCuenca, m.CodCuenca, m.NomSubcuenca, m.CodSubcuenca, m.Comuna,
			m.UTMNorte, m.UTMEste, m.Huso, m.NombInf, m.NombreObra, m.Caudal, m.FechaMedicion,
		)
		if err != nil {
			return fmt.Errorf("error inserting measurement %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing measurements: %w", err)
	}
	return nil
}
