package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWalkingMinutes(t *testing.T) {
	assert.Equal(t, 0, WalkingMinutes(0, DefaultWalkingSpeed))
	assert.Equal(t, 12, WalkingMinutes(1000, DefaultWalkingSpeed))
	assert.Equal(t, 36, WalkingMinutes(3000, DefaultWalkingSpeed))
	assert.Equal(t, 17, WalkingMinutes(1000, 1))
}

func TestWalkingMinutes_NonPositiveSpeedFallsBack(t *testing.T) {
	assert.Equal(t, WalkingMinutes(1000, DefaultWalkingSpeed), WalkingMinutes(1000, 0))
	assert.Equal(t, WalkingMinutes(1000, DefaultWalkingSpeed), WalkingMinutes(1000, -3))
}
