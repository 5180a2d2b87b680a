// Package tui is a Bubble Tea chat over one index.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pagerag/internal/domain"
	"pagerag/internal/embedding/tfidf"
	"pagerag/internal/summarizer"
)

// AskFunc answers a question and returns the chunks the answer was built from.
type AskFunc func(ctx context.Context, query string) (domain.Answer, []domain.SearchResult, error)

type answerMsg struct {
	query   string
	answer  domain.Answer
	results []domain.SearchResult
	err     error
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	ctx       context.Context
	ask       AskFunc
	title     string
	input     textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	answer    *domain.Answer
	results   []domain.SearchResult
	status    string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a chat model. title names the index being queried.
func New(ctx context.Context, ask AskFunc, title string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		ask:      ask,
		title:    title,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Ready. Up/Down browse retrieved chunks, Ctrl+C quits.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.render())
		return m, nil

	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer, m.results = nil, nil
		} else {
			m.status = fmt.Sprintf("Answered %q from %d chunks", msg.query, len(msg.results))
			ans := msg.answer
			m.answer, m.results = &ans, msg.results
			m.lastQuery = msg.query
		}
		m.cursor = 0
		m.viewport.SetContent(m.render())
		m.viewport.GotoTop()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Asking %q", q)
			m.input.SetValue("")
			return m, tea.Batch(m.spinner.Tick, m.askCmd(q))
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) askCmd(q string) tea.Cmd {
	return func() tea.Msg {
		ans, results, err := m.ask(m.ctx, q)
		return answerMsg{query: q, answer: ans, results: results, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("pagerag") + " " + dimStyle.Render(m.title)
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		resultBoxStyle.Render(m.viewport.View()) + "\n" +
		queryBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m Model) render() string {
	if m.answer == nil {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("Answer"))
	b.WriteString("\n")
	b.WriteString(m.answer.Text)
	b.WriteString("\n\n")
	if len(m.answer.Sources) > 0 {
		b.WriteString(dimStyle.Render("Sources: " + strings.Join(m.answer.Sources, ", ")))
		b.WriteString("\n\n")
	}
	if len(m.results) == 0 {
		return b.String()
	}
	r := m.results[m.cursor]
	fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("Chunk %d/%d  %s  score=%.3f",
		m.cursor+1, len(m.results), r.Chunk.ChunkID, r.Score)))
	b.WriteString(highlightBestSentence(r.Chunk.Text, m.lastQuery))
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightBestSentence emphasizes the sentence sharing the most terms with
// query.
func highlightBestSentence(text, query string) string {
	sentences := summarizer.Sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}
	q := map[string]struct{}{}
	for _, t := range tfidf.Tokenize(query) {
		q[t] = struct{}{}
	}
	if len(q) == 0 {
		return strings.Join(sentences, " ")
	}
	best, bestScore := 0, 0
	for i, s := range sentences {
		if score := overlap(q, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore == 0 {
		return strings.Join(sentences, " ")
	}
	out := make([]string, len(sentences))
	copy(out, sentences)
	out[best] = highlightStyle.Render(out[best])
	return strings.Join(out, " ")
}

func overlap(query map[string]struct{}, sentence string) int {
	seen := map[string]struct{}{}
	score := 0
	for _, t := range tfidf.Tokenize(sentence) {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}
