package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortResults_OrdersByScoreDescending(t *testing.T) {
	results := []QueryResult{
		{DocumentID: "d1", Score: 0.5},
		{DocumentID: "d2", Score: 0.9},
		{DocumentID: "d3", Score: 0.7},
	}

	SortResults(results)

	assert.Equal(t, "d2", results[0].DocumentID)
	assert.Equal(t, "d3", results[1].DocumentID)
	assert.Equal(t, "d1", results[2].DocumentID)
}

func TestSortResults_BreaksTiesByDocumentID(t *testing.T) {
	results := []QueryResult{
		{DocumentID: "zeta", Score: 0.8},
		{DocumentID: "alpha", Score: 0.8},
		{DocumentID: "mid", Score: 0.8},
	}

	SortResults(results)

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, []string{
		results[0].DocumentID, results[1].DocumentID, results[2].DocumentID,
	})
}

func TestSortResults_AssignsOneBasedRanks(t *testing.T) {
	results := []QueryResult{
		{DocumentID: "d1", Score: 0.1},
		{DocumentID: "d2", Score: 0.9},
	}

	SortResults(results)

	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
}
