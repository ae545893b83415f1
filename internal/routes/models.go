package routes

import (
	"time"

	"github.com/Sabathrodriguez/trunV3/internal/shared/geo"
)

// Route is a published, shareable running route. Coordinates arrive already
// parsed; the center point is derived server-side for geo filtering.
type Route struct {
	ID            string      `json:"id"`
	Name          string      `json:"name" validate:"required"`
	DistanceMiles float64     `json:"distance_miles" validate:"gte=0"`
	CenterLat     float64     `json:"center_lat"`
	CenterLon     float64     `json:"center_lon"`
	Coordinates   []geo.Point `json:"coordinates,omitempty" validate:"required,min=1,dive"`
	RunCount      int         `json:"run_count"`
	CreatedBy     string      `json:"created_by"`
	CreatedAt     time.Time   `json:"created_at"`
}
