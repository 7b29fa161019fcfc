package main

import (
	"context"
	"log"
	"math"
	"math/rand"
	"time"

	"caudal-api/internal/config"
	"caudal-api/internal/domain"
	"caudal-api/internal/repository"
)

const (
	monthsOfReadings = 24
	batchSize        = 500
)

type basin struct {
	region      int64
	code        int64
	name        string
	subbasins   []subbasin
	comunas     []string
	husoUTM     string
	northOrigin float64
	eastOrigin  float64
}

type subbasin struct {
	code int64
	name string
}

var basins = []basin{
	{
		region:      13,
		code:        57,
		name:        "Rio Maipo",
		subbasins:   []subbasin{{570, "Rio Maipo Alto"}, {573, "Rio Mapocho Bajo"}},
		comunas:     []string{"San Jose de Maipo", "Pirque", "Talagante"},
		husoUTM:     "19",
		northOrigin: 6280000,
		eastOrigin:  340000,
	},
	{
		region:      5,
		code:        54,
		name:        "Rio Aconcagua",
		subbasins:   []subbasin{{540, "Rio Aconcagua Alto"}, {541, "Rio Putaendo"}},
		comunas:     []string{"Los Andes", "San Felipe", "Quillota"},
		husoUTM:     "19",
		northOrigin: 6360000,
		eastOrigin:  310000,
	},
	{
		region:      4,
		code:        43,
		name:        "Rio Elqui",
		subbasins:   []subbasin{{430, "Rio Turbio"}, {431, "Rio Claro"}},
		comunas:     []string{"Vicuna", "Paihuano"},
		husoUTM:     "19",
		northOrigin: 6680000,
		eastOrigin:  330000,
	},
}

var reporters = []string{"DGA", "Junta de Vigilancia", "Comunidad de Aguas", "Sanitaria Regional"}

func main() {

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	var store *repository.SQLStore
	switch cfg.DBDriver {
	case config.DriverPostgres:
		store = repository.NewPostgresStore(cfg.DatabaseURL)
	default:
		store = repository.NewSQLiteStore(cfg.SQLitePath)
	}

	if err := store.Init(); err != nil {
		log.Fatalf("Failed to initialize record store for ingestion: %v", err)
	}
	defer store.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	generateAndIngest(context.Background(), store, rng, time.Now())
}

func generateAndIngest(ctx context.Context, s domain.MeasurementStore, rng *rand.Rand, end time.Time) {
	measurements := generateMeasurements(rng, end)

	log.Printf("Ingesting %d synthetic measurements covering %d months up to %s...",
		len(measurements), monthsOfReadings, end.Format(domain.DateLayout))

	for start := 0; start < len(measurements); start += batchSize {
		stop := min(start+batchSize, len(measurements))
		if err := s.InsertMeasurements(ctx, measurements[start:stop]); err != nil {
			log.Printf("Error inserting records %d-%d: %v", start, stop-1, err)
			continue
		}
	}

	log.Println("Data ingestion complete.")
}

// generateMeasurements produces monthly readings for a few works per
// subbasin. Some rows lack a reporter or a flow value, as real declarations do.
func generateMeasurements(rng *rand.Rand, end time.Time) []domain.Measurement {
	var out []domain.Measurement

	for _, b := range basins {
		for si, sb := range b.subbasins {
			for w := 0; w < 3; w++ {
				work := workSite(rng, b, si, sb, w)

				for month := monthsOfReadings - 1; month >= 0; month-- {
					m := work
					day := end.AddDate(0, -month, 0)
					date := domain.NewDate(day.Year(), day.Month(), 1)
					m.FechaMedicion = &date

					if rng.Intn(10) > 0 {
						caudal := round(rng.Float64()*120.0, 3)
						m.Caudal = &caudal
					}
					out = append(out, m)
				}
			}
		}
	}
	return out
}

func workSite(rng *rand.Rand, b basin, si int, sb subbasin, w int) domain.Measurement {
	region, code, subCode := b.region, b.code, sb.code
	cuenca, subcuenca := b.name, sb.name
	comuna := b.comunas[rng.Intn(len(b.comunas))]
	huso := b.husoUTM
	obra := "Obra " + sb.name + " " + string(rune('A'+w))

	north := round(b.northOrigin+float64(si)*5000+rng.Float64()*4000, 2)
	east := round(b.eastOrigin+float64(w)*1500+rng.Float64()*1000, 2)

	m := domain.Measurement{
		Region:       &region,
		NomCuenca:    &cuenca,
		CodCuenca:    &code,
		NomSubcuenca: &subcuenca,
		CodSubcuenca: &subCode,
		Comuna:       &comuna,
		UTMNorte:     &north,
		UTMEste:      &east,
		Huso:         &huso,
		NombreObra:   &obra,
	}

	// one work in four has no declared reporter
	if rng.Intn(4) > 0 {
		reporter := reporters[rng.Intn(len(reporters))]
		m.NombInf = &reporter
	}
	return m
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
