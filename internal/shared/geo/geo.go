package geo

import "math"

const earthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
}

// HaversineKm returns the great-circle distance between two coordinates in kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// DistanceM returns the great-circle distance between two points in meters.
func DistanceM(a, b Point) float64 {
	return HaversineKm(a.Lat, a.Lon, b.Lat, b.Lon) * 1000
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Geometry holds a route polyline with precomputed cumulative distances.
// Rebuilt in full whenever a session starts; never mutated incrementally.
type Geometry struct {
	Points     []Point
	Cumulative []float64
	TotalM     float64
}

// Precompute walks consecutive point pairs and accumulates great-circle
// distances. Routes with fewer than two points yield a zero total.
func Precompute(points []Point) Geometry {
	g := Geometry{Points: points}
	if len(points) == 0 {
		return g
	}

	g.Cumulative = make([]float64, 1, len(points))
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += DistanceM(points[i-1], points[i])
		g.Cumulative = append(g.Cumulative, total)
	}
	g.TotalM = total
	return g
}

// ProjectOntoSegment projects p onto the segment a-b treating lat/lon as a
// plane, which holds up at city-scale route lengths but is not geodesically
// exact. The parameter t is clamped to [0,1]; a zero-length segment projects
// to its start.
func ProjectOntoSegment(p, a, b Point) (Point, float64) {
	dx := b.Lon - a.Lon
	dy := b.Lat - a.Lat
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return a, 0
	}

	t := ((p.Lon-a.Lon)*dx + (p.Lat-a.Lat)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))

	return Point{Lat: a.Lat + t*dy, Lon: a.Lon + t*dx}, t
}

// Progress returns the fraction of the route completed at the given location,
// in [0,1]. Every segment is scanned and the nearest one wins; the search is
// global rather than windowed from the last known position, so GPS jumps and
// out-of-order fixes are tolerated, at the cost of possible misattribution on
// self-intersecting routes.
func (g Geometry) Progress(p Point) float64 {
	if len(g.Points) < 2 || g.TotalM <= 0 {
		return 0
	}

	closest := math.MaxFloat64
	progress := 0.0
	for i := 0; i < len(g.Points)-1; i++ {
		projected, t := ProjectOntoSegment(p, g.Points[i], g.Points[i+1])
		d := DistanceM(p, projected)
		if d < closest {
			closest = d
			segLen := DistanceM(g.Points[i], g.Points[i+1])
			progress = (g.Cumulative[i] + t*segLen) / g.TotalM
		}
	}

	return math.Max(0, math.Min(progress, 1))
}
