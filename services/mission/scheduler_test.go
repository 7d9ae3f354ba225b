package mission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextRunTime(t *testing.T) {
	loc := time.UTC

	before := time.Date(2024, 3, 10, 1, 30, 0, 0, loc)
	require.Equal(t, time.Date(2024, 3, 10, 2, 0, 0, 0, loc), nextRunTime(before, 2, 0))

	after := time.Date(2024, 3, 10, 3, 15, 0, 0, loc)
	require.Equal(t, time.Date(2024, 3, 11, 2, 0, 0, 0, loc), nextRunTime(after, 2, 0))
}
