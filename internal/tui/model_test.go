package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagerag/internal/domain"
)

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func TestModel_AskFlow(t *testing.T) {
	var asked string
	ask := func(_ context.Context, q string) (domain.Answer, []domain.SearchResult, error) {
		asked = q
		return domain.Answer{Text: "Deploys are on Tuesday.", Sources: []string{"wiki"}},
			[]domain.SearchResult{
				{Chunk: domain.Chunk{ChunkID: "wiki:0", Text: "Deploys happen every Tuesday."}, Score: 0.9},
				{Chunk: domain.Chunk{ChunkID: "wiki:3", Text: "Billing runs nightly."}, Score: 0.2},
			}, nil
	}
	m := sized(t, New(context.Background(), ask, "wiki"))
	assert.Contains(t, m.View(), "No answer yet.")

	m.input.SetValue("  when are deploys  ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	// a second enter while busy is ignored
	m.input.SetValue("again")
	_, cmd2 := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd2)

	next, _ = m.Update(m.askCmd("when are deploys")())
	m = next.(Model)
	assert.Equal(t, "when are deploys", asked)
	assert.False(t, m.busy)
	require.NotNil(t, m.answer)
	assert.Contains(t, m.render(), "Deploys are on Tuesday.")
	assert.Contains(t, m.render(), "Sources: wiki")
	assert.Contains(t, m.render(), "Chunk 1/2")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	assert.Equal(t, 1, m.cursor)
	assert.Contains(t, m.render(), "wiki:3")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 0, next.(Model).cursor)
}

func TestModel_AskError(t *testing.T) {
	ask := func(context.Context, string) (domain.Answer, []domain.SearchResult, error) {
		return domain.Answer{}, nil, errors.New("store offline")
	}
	m := sized(t, New(context.Background(), ask, "wiki"))
	next, _ := m.Update(m.askCmd("anything")())
	m = next.(Model)
	assert.Equal(t, "Error: store offline", m.status)
	assert.Nil(t, m.answer)
}

func TestModel_Quit(t *testing.T) {
	m := New(context.Background(), nil, "wiki")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Deploys happen on Tuesday. Billing runs nightly."
	assert.Equal(t, text, highlightBestSentence(text, "parking"))
	assert.Equal(t, text, highlightBestSentence(text, ""))
	assert.Contains(t, highlightBestSentence(text, "billing"), "Deploys happen on Tuesday.")
}
