package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thurmanmarka/fujiglide/internal/model"
)

func TestDeriveGeometry(t *testing.T) {
	// Umihotaru: ~100 km east of the summit, near sea level.
	b, e, d := DeriveGeometry(35.464815, 139.872861, 5, 1.7)

	assert.InDelta(t, 263.96, b, 0.3)
	assert.InDelta(t, 2.07, e, 0.1)
	assert.Greater(t, d, 95_000.0)
	assert.Less(t, d, 115_000.0)
}

func TestGeometryStale(t *testing.T) {
	b, e, d := DeriveGeometry(35.33, 138.62, 650, 1.7)
	loc := &model.Location{
		Latitude:                 35.33,
		Longitude:                138.62,
		Elevation:                650,
		FujiBearingDeg:           b,
		FujiApparentElevationDeg: e,
		FujiDistanceM:            d,
	}

	assert.False(t, GeometryStale(loc, 1.7))

	// Editing an input without re-deriving makes the triple stale.
	loc.Elevation = 900
	assert.True(t, GeometryStale(loc, 1.7))
	loc.Elevation = 650

	// A different eye height shifts the apparent elevation too.
	assert.True(t, GeometryStale(loc, 50))

	// Tiny float drift inside the tolerance is not stale.
	loc.FujiDistanceM += 0.1
	assert.False(t, GeometryStale(loc, 1.7))
}
