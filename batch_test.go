package solr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchPlan(t *testing.T) {
	assert.Nil(t, batchPlan(0, 500))
	assert.Equal(t, [][2]int{{0, 3}}, batchPlan(3, 500))
	assert.Equal(t, [][2]int{{0, 500}, {500, 1000}, {1000, 1200}}, batchPlan(1200, 500))
	assert.Equal(t, [][2]int{{0, 2}, {2, 4}}, batchPlan(4, 2))

	// A non-positive size degrades to one record per batch
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, batchPlan(2, 0))
}

func TestBatchPlanCoversInput(t *testing.T) {
	plan := batchPlan(1043, 100)
	next := 0
	for _, bounds := range plan {
		assert.Equal(t, next, bounds[0])
		assert.Greater(t, bounds[1], bounds[0])
		next = bounds[1]
	}
	assert.Equal(t, 1043, next)
}
