package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentences(t *testing.T) {
	assert.Equal(t, []string{"One.", "Two!", "Three?", "trailing words"},
		Sentences("One. Two! Three? trailing words"))
	assert.Equal(t, []string{"Wait..."}, Sentences("Wait... "))
	assert.Empty(t, Sentences("   "))
}

func TestSummarize_KeepsOriginalOrder(t *testing.T) {
	text := "Billing runs nightly. The cafeteria opens at noon. " +
		"Billing failures page the billing team. Parking is free on Fridays."

	got, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Billing runs nightly. Billing failures page the billing team.", got)
}

func TestSummarize_ShortText(t *testing.T) {
	s := NewFrequencySummarizer()

	got, err := s.Summarize("Only one sentence here.", 0)
	require.NoError(t, err)
	assert.Equal(t, "Only one sentence here.", got)

	got, err = s.Summarize("  ", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}
