package modeladapter_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/germanamz/relnotes/pkg/modeladapter"
)

func TestTokenEstimator_Count(t *testing.T) {
	e := modeladapter.NewTokenEstimator("gpt-4o")

	assert.Zero(t, e.Count(""))
	assert.Positive(t, e.Count("hello world"))
	assert.Less(t, e.Count("hello world"), len("hello world"))
}

func TestTokenEstimator_UnknownModelFallsBack(t *testing.T) {
	e := modeladapter.NewTokenEstimator("my-private-deployment")

	assert.Positive(t, e.Count("release notes for ACME-42"))
}

func TestTokenEstimator_EstimateMessages(t *testing.T) {
	e := modeladapter.NewTokenEstimator("gpt-4o")
	msgs := []modeladapter.Message{
		{Role: modeladapter.RoleSystem, Content: "You write release notes."},
		{Role: modeladapter.RoleUser, Content: "Summarize ACME-42."},
	}

	got := e.EstimateMessages(msgs)
	want := 8 + e.Count(msgs[0].Content) + e.Count(msgs[1].Content)
	assert.Equal(t, want, got)
}

func TestTokenEstimator_EstimateMessagesEmpty(t *testing.T) {
	e := modeladapter.NewTokenEstimator("gpt-4o")
	assert.Zero(t, e.EstimateMessages(nil))
}

func TestTokenEstimator_Truncate(t *testing.T) {
	e := modeladapter.NewTokenEstimator("gpt-4o")
	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)

	cut := e.Truncate(text, 20)
	assert.LessOrEqual(t, e.Count(cut), 20)
	assert.True(t, strings.HasPrefix(text, cut))
	assert.NotEmpty(t, cut)

	assert.Equal(t, "short", e.Truncate("short", 100))
	assert.Empty(t, e.Truncate(text, 0))
}
