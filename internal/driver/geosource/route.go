package geosource

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/shared/geo"
)

// RouteProvider simulates a device on a bus driving a polyline at constant
// speed, looping back to the start at the end of the route.
type RouteProvider struct {
	lats, lngs []float64
	cum        []float64
	speedMps   float64
	accuracy   float64

	mu    sync.Mutex
	start time.Time
	now   func() time.Time
}

// NewRouteProvider needs at least two points of non-zero total length.
func NewRouteProvider(points []domain.Position, speedMps float64) (*RouteProvider, error) {
	if len(points) < 2 {
		return nil, errors.New("route needs at least two points")
	}
	if speedMps <= 0 {
		return nil, errors.New("speed must be positive")
	}
	r := &RouteProvider{speedMps: speedMps, accuracy: 5, now: time.Now}
	for i, p := range points {
		r.lats = append(r.lats, p.Lat)
		r.lngs = append(r.lngs, p.Lng)
		d := 0.0
		if i > 0 {
			d = r.cum[i-1] + geo.HaversineKm(r.lats[i-1], r.lngs[i-1], p.Lat, p.Lng)*1000
		}
		r.cum = append(r.cum, d)
	}
	if r.cum[len(r.cum)-1] == 0 {
		return nil, errors.New("route has zero length")
	}
	return r, nil
}

// ParseRoute reads "lat,lng;lat,lng;..." into positions.
func ParseRoute(s string) ([]domain.Position, error) {
	var points []domain.Position
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad route point %q", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad latitude in %q: %w", pair, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("bad longitude in %q: %w", pair, err)
		}
		points = append(points, domain.Position{Lat: lat, Lng: lng})
	}
	return points, nil
}

func (r *RouteProvider) Current(ctx context.Context) (domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return domain.Position{}, err
	}
	r.mu.Lock()
	now := r.now()
	if r.start.IsZero() {
		r.start = now
	}
	elapsed := now.Sub(r.start).Seconds()
	r.mu.Unlock()

	total := r.cum[len(r.cum)-1]
	lat, lng := r.at(math.Mod(elapsed*r.speedMps, total))
	return domain.Position{
		Lat:         lat,
		Lng:         lng,
		TimestampMs: now.UnixMilli(),
		SpeedMps:    r.speedMps,
		Accuracy:    r.accuracy,
	}, nil
}

func (r *RouteProvider) at(dist float64) (float64, float64) {
	i := 1
	for i < len(r.cum)-1 && r.cum[i] < dist {
		i++
	}
	d0, d1 := r.cum[i-1], r.cum[i]
	if d1 == d0 {
		return r.lats[i-1], r.lngs[i-1]
	}
	return geo.Interpolate(r.lats[i-1], r.lngs[i-1], r.lats[i], r.lngs[i], (dist-d0)/(d1-d0))
}
