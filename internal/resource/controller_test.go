package resource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palettecam/internal/kmeans"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	assert.True(t, c.TryAcquireMemory(60))
	assert.Equal(t, int64(60), c.MemoryUsage())

	// Would exceed the limit
	assert.False(t, c.TryAcquireMemory(50))
	assert.Equal(t, int64(60), c.MemoryUsage())

	c.ReleaseMemory(60)
	assert.Zero(t, c.MemoryUsage())
	assert.True(t, c.TryAcquireMemory(100))
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	assert.True(t, c.TryAcquireMemory(1<<40))
	c.ReleaseMemory(1 << 39)
	assert.Equal(t, int64(1<<39), c.MemoryUsage())
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	assert.True(t, c.TryAcquireMemory(1<<20))
	c.ReleaseMemory(1 << 20)
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
}

func TestController_BudgetsClustering(t *testing.T) {
	pts, err := kmeans.NewPoints(make([]uint8, 3*1000), 3)
	require.NoError(t, err)

	tight := NewController(Config{MemoryLimitBytes: 64})
	_, err = kmeans.New[uint8](kmeans.WithBudget(tight)).Run(context.Background(), pts, 4)
	assert.ErrorIs(t, err, kmeans.ErrAllocation)
	assert.Zero(t, tight.MemoryUsage())

	roomy := NewController(Config{MemoryLimitBytes: 1 << 20})
	_, err = kmeans.New[uint8](kmeans.WithBudget(roomy)).Run(context.Background(), pts, 4)
	require.NoError(t, err)
	assert.Zero(t, roomy.MemoryUsage())
}
