package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetAddPicosAndCurrent(t *testing.T) {
	b := NewBudget(10.0)
	assert.Equal(t, float64(0), b.Current())

	b.AddPicos(PicosFromCost(0.0006))
	assert.InDelta(t, 0.0006, b.Current(), 1e-9)

	b.AddPicos(PicosFromCost(0.0006))
	assert.InDelta(t, 0.0012, b.Current(), 1e-9)
}

func TestBudgetGate(t *testing.T) {
	b := NewBudget(0.001)

	allowed, current, limit := b.Gate()
	assert.True(t, allowed)
	assert.Equal(t, float64(0), current)
	assert.Equal(t, 0.001, limit)

	b.AddPicos(PicosFromCost(0.0006))
	allowed, current, _ = b.Gate()
	assert.True(t, allowed, "0.0006 < 0.001 limit")
	assert.InDelta(t, 0.0006, current, 1e-9)

	b.AddPicos(PicosFromCost(0.0006))
	allowed, current, _ = b.Gate()
	assert.False(t, allowed, "0.0012 >= 0.001 limit")
	assert.InDelta(t, 0.0012, current, 1e-9)
}

func TestBudgetSetLimitAndReset(t *testing.T) {
	b := NewBudget(1.0)
	b.SetLimit(5.0)
	assert.Equal(t, 5.0, b.Limit())

	b.AddPicos(PicosFromCost(2.5))
	assert.InDelta(t, 2.5, b.Current(), 1e-9)

	b.Reset()
	assert.Equal(t, float64(0), b.Current())
}

func TestPicosFromCostNonPositiveIsZero(t *testing.T) {
	assert.Equal(t, uint64(0), PicosFromCost(0))
	assert.Equal(t, uint64(0), PicosFromCost(-1))
}

func TestPicosFromCostRoundsToNearest(t *testing.T) {
	assert.Equal(t, uint64(1e12), PicosFromCost(1.0))
	assert.Equal(t, uint64(6e8), PicosFromCost(0.0006))
}
