package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToDateTruncates(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	stamp := time.Date(2024, 5, 5, 1, 30, 0, 0, loc) // 2024-05-04T22:30Z

	d := toDate(stamp)

	assert.True(t, d.Valid)
	assert.Equal(t, time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC), d.Time)
}

func TestToDateSameDayConverges(t *testing.T) {
	morning := time.Date(2024, 5, 5, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 5, 5, 22, 45, 0, 0, time.UTC)

	assert.Equal(t, toDate(morning), toDate(evening))
}

func TestUUIDRoundTrip(t *testing.T) {
	const id = "8a9bd2a0-51f0-4c4e-9a2e-6f9a1c2b3d4e"

	assert.Equal(t, id, fromUUID(toUUID(id)))
}

func TestToUUIDInvalid(t *testing.T) {
	assert.False(t, toUUID("not-a-uuid").Valid)
	assert.Equal(t, "", fromUUID(toUUID("")))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, uint64(1), clampLimit(-5))
	assert.Equal(t, uint64(1), clampLimit(0))
	assert.Equal(t, uint64(1), clampLimit(1))
	assert.Equal(t, uint64(20), clampLimit(20))
}
