package routes

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/Sabathrodriguez/trunV3/internal/db"

	"github.com/google/uuid"
)

// degrees per mile: latitude is near-constant, longitude holds at mid-latitudes
const (
	latDegreesPerMile = 0.0145
	lonDegreesPerMile = 0.018
)

var ErrNoCoordinates = errors.New("routes: route has no coordinates")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Publish(ctx context.Context, input Route) (Route, error) {
	if len(input.Coordinates) == 0 {
		return Route{}, ErrNoCoordinates
	}

	input.ID = uuid.NewString()
	var sumLat, sumLon float64
	for _, p := range input.Coordinates {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	input.CenterLat = sumLat / float64(len(input.Coordinates))
	input.CenterLon = sumLon / float64(len(input.Coordinates))

	coords, err := json.Marshal(input.Coordinates)
	if err != nil {
		return Route{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO shared_routes (id, name, distance_miles, center_lat, center_lon, coordinates, created_by, run_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0)
		RETURNING created_at
	`, input.ID, input.Name, input.DistanceMiles, input.CenterLat, input.CenterLon, coords, input.CreatedBy)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Route{}, err
	}
	return input, nil
}

// Nearby lists routes whose center falls inside a bounding box around the
// given location. The database prefilters on latitude only; longitude is
// filtered here, and results are sorted most-run-first.
func (s *Service) Nearby(ctx context.Context, lat, lon, radiusMiles float64, limit int) ([]Route, error) {
	if radiusMiles <= 0 {
		radiusMiles = 10
	}
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	latDelta := radiusMiles * latDegreesPerMile
	lonDelta := radiusMiles * lonDegreesPerMile

	rows, err := s.db.Query(ctx, `
		SELECT id, name, distance_miles, center_lat, center_lon, run_count, created_by, created_at
		FROM shared_routes
		WHERE center_lat > $1 AND center_lat < $2
		LIMIT $3
	`, lat-latDelta, lat+latDelta, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []Route
	for rows.Next() {
		var r Route
		if err := rows.Scan(&r.ID, &r.Name, &r.DistanceMiles, &r.CenterLat, &r.CenterLon, &r.RunCount, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		if r.CenterLon <= lon-lonDelta || r.CenterLon >= lon+lonDelta {
			continue
		}
		routes = append(routes, r)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		return routes[i].RunCount > routes[j].RunCount
	})
	return routes, nil
}

func (s *Service) Get(ctx context.Context, id string) (Route, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, distance_miles, center_lat, center_lon, coordinates, run_count, created_by, created_at
		FROM shared_routes WHERE id=$1
	`, id)

	var r Route
	var coords []byte
	if err := row.Scan(&r.ID, &r.Name, &r.DistanceMiles, &r.CenterLat, &r.CenterLon, &coords, &r.RunCount, &r.CreatedBy, &r.CreatedAt); err != nil {
		return Route{}, err
	}
	if err := json.Unmarshal(coords, &r.Coordinates); err != nil {
		return Route{}, err
	}
	return r, nil
}
