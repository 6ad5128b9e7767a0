package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidTransition_ForwardOnly(t *testing.T) {
	assert.True(t, ValidTransition(StatusQueued, StatusConverting))
	assert.True(t, ValidTransition(StatusConverting, StatusExtractingAssets))
	assert.True(t, ValidTransition(StatusExtractingAssets, StatusCompleted))

	assert.False(t, ValidTransition(StatusConverting, StatusQueued))
	assert.False(t, ValidTransition(StatusCompleted, StatusExtractingAssets))
	assert.False(t, ValidTransition(StatusExtractingAssets, StatusConverting))
}

func TestValidTransition_SameStatusIsNoop(t *testing.T) {
	for _, s := range []Status{StatusQueued, StatusConverting, StatusCompleted, StatusFailed} {
		assert.True(t, ValidTransition(s, s), "self transition for %s", s)
	}
}

func TestValidTransition_TerminalRestarts(t *testing.T) {
	assert.True(t, ValidTransition(StatusCompleted, StatusAnalyzing))
	assert.True(t, ValidTransition(StatusCompleted, StatusConverting))
	assert.True(t, ValidTransition(StatusFailed, StatusConverting))

	assert.False(t, ValidTransition(StatusCompleted, StatusExtractingAssets))
	assert.False(t, ValidTransition(StatusFailed, StatusCompleted))
}

func TestValidTransition_TranslationJobs(t *testing.T) {
	assert.True(t, ValidTransition(StatusQueued, StatusTranslating))
	assert.True(t, ValidTransition(StatusTranslating, StatusCompleted))
	assert.True(t, ValidTransition(StatusTranslating, StatusFailed))
	assert.False(t, ValidTransition(StatusTranslating, StatusConverting))
}

func TestProgressFor_MonotonicAlongPipeline(t *testing.T) {
	sequence := []Status{StatusQueued, StatusConverting, StatusExtractingAssets, StatusCompleted}
	for i := 1; i < len(sequence); i++ {
		require.Greater(t, ProgressFor(sequence[i]), ProgressFor(sequence[i-1]))
	}
	assert.Equal(t, 100, ProgressFor(StatusCompleted))
}

func TestRecord_Clone_IsIndependent(t *testing.T) {
	rec := &Record{
		ID:        "job-1",
		Status:    StatusCompleted,
		Embedding: []float64{0.1, 0.2},
		Methods:   []string{"lora"},
		Tags:      []TagSuggestion{{Name: "nlp", Confidence: 0.9}},
	}

	clone := rec.Clone()
	clone.Status = StatusFailed
	clone.Embedding[0] = 42
	clone.Methods[0] = "changed"
	clone.Tags[0].Name = "changed"

	assert.Equal(t, StatusCompleted, rec.Status)
	assert.Equal(t, 0.1, rec.Embedding[0])
	assert.Equal(t, "lora", rec.Methods[0])
	assert.Equal(t, "nlp", rec.Tags[0].Name)
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusQueued.Terminal())
	assert.False(t, StatusAnalyzing.Terminal())
	assert.False(t, StatusTranslating.Terminal())
}
