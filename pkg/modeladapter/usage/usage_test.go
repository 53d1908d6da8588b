package usage_test

import (
	"sync"
	"testing"

	"github.com/germanamz/relnotes/pkg/modeladapter/usage"
	"github.com/stretchr/testify/assert"
)

func TestTokenCount_Total(t *testing.T) {
	tc := usage.TokenCount{InputTokens: 100, OutputTokens: 50, ReasoningTokens: 30}
	assert.Equal(t, 150, tc.Total())
}

func TestTokenCount_Plus(t *testing.T) {
	a := usage.TokenCount{InputTokens: 10, OutputTokens: 5, ReasoningTokens: 2}
	b := usage.TokenCount{InputTokens: 1, OutputTokens: 2, ReasoningTokens: 3}

	assert.Equal(t, usage.TokenCount{InputTokens: 11, OutputTokens: 7, ReasoningTokens: 5}, a.Plus(b))
}

func TestTracker_Last_Empty(t *testing.T) {
	var tr usage.Tracker

	tc, ok := tr.Last()
	assert.False(t, ok)
	assert.Equal(t, usage.TokenCount{}, tc)
}

func TestTracker_AddAggregates(t *testing.T) {
	var tr usage.Tracker

	tr.Add(usage.TokenCount{InputTokens: 10, OutputTokens: 5})
	tr.Add(usage.TokenCount{InputTokens: 20, OutputTokens: 10, ReasoningTokens: 4})

	assert.Equal(t, 2, tr.Count())

	last, ok := tr.Last()
	assert.True(t, ok)
	assert.Equal(t, usage.TokenCount{InputTokens: 20, OutputTokens: 10, ReasoningTokens: 4}, last)

	total := tr.Total()
	assert.Equal(t, 30, total.InputTokens)
	assert.Equal(t, 15, total.OutputTokens)
	assert.Equal(t, 4, total.ReasoningTokens)
	assert.Equal(t, 45, total.Total())
}

func TestTracker_Reset(t *testing.T) {
	var tr usage.Tracker

	tr.Add(usage.TokenCount{InputTokens: 10, OutputTokens: 5})
	tr.Reset()

	assert.Equal(t, 0, tr.Count())
	assert.Equal(t, usage.TokenCount{}, tr.Total())

	_, ok := tr.Last()
	assert.False(t, ok)
}

func TestTracker_Concurrent_Add(t *testing.T) {
	var tr usage.Tracker

	const goroutines = 100

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			tr.Add(usage.TokenCount{InputTokens: 1, OutputTokens: 1})
		}()
	}

	wg.Wait()

	assert.Equal(t, goroutines, tr.Count())
	assert.Equal(t, usage.TokenCount{InputTokens: goroutines, OutputTokens: goroutines}, tr.Total())
}
