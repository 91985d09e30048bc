package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/movex/dispatch/internal/pkg/models"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name   string
		a, b   models.Coordinate
		wantKm float64
		delta  float64
	}{
		{
			name:   "same point",
			a:      models.Coordinate{Latitude: -30.0346, Longitude: -51.2177},
			b:      models.Coordinate{Latitude: -30.0346, Longitude: -51.2177},
			wantKm: 0,
			delta:  0.0001,
		},
		{
			name:   "across town",
			a:      models.Coordinate{Latitude: -30.0346, Longitude: -51.2177},
			b:      models.Coordinate{Latitude: -30.0277, Longitude: -51.2287},
			wantKm: 1.3,
			delta:  0.2,
		},
		{
			name:   "intercity",
			a:      models.Coordinate{Latitude: -30.0346, Longitude: -51.2177}, // Porto Alegre
			b:      models.Coordinate{Latitude: -23.5505, Longitude: -46.6333}, // Sao Paulo
			wantKm: 852,
			delta:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.wantKm, DistanceKm(tt.a, tt.b), tt.delta)
		})
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := models.Coordinate{Latitude: -30.0346, Longitude: -51.2177}
	b := models.Coordinate{Latitude: -30.1, Longitude: -51.3}

	assert.InDelta(t, DistanceKm(a, b), DistanceKm(b, a), 1e-9)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	orig := models.Coordinate{Latitude: -30.0346, Longitude: -51.2177}
	decoded := Decode(Encode(orig))

	// A 7-character geohash cell is ~150m, well under 1km of error.
	assert.Less(t, DistanceKm(orig, decoded), 1.0)
}
