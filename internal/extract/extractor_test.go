package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagerag/internal/domain"
)

func TestNew(t *testing.T) {
	e, err := New("")
	require.NoError(t, err)
	assert.Equal(t, ModeText, e.Mode())

	e, err = New(ModeReadability)
	require.NoError(t, err)
	assert.Equal(t, ModeReadability, e.Mode())

	_, err = New("markdown")
	assert.ErrorIs(t, err, domain.ErrBadSetting)
}

func TestExtract_RemovesScriptAndStyle(t *testing.T) {
	e, err := New(ModeText)
	require.NoError(t, err)

	markup := `<html><head><title>Home</title>
<style>body { color: red; } .secret-style {}</style>
<script>var secretScript = 1;</script></head>
<body><h1>Welcome</h1>
<p>First   paragraph.</p>
<script type="text/javascript">alert("secretInline")</script>
<noscript>enable secretNoscript</noscript>
<p>Second
paragraph.</p></body></html>`

	text, err := e.Extract([]byte(markup), "https://example.com/")
	require.NoError(t, err)

	assert.NotContains(t, text, "secret")
	assert.NotContains(t, text, "color")
	assert.Contains(t, text, "Welcome")
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.NotContains(t, text, "  ")
	assert.Equal(t, strings.TrimSpace(text), text)
}

func TestExtract_Deterministic(t *testing.T) {
	e, err := New(ModeText)
	require.NoError(t, err)

	markup := []byte("<div>\n\tAlpha <b>beta</b>\n\n gamma </div>")
	first, err := e.Extract(markup, "")
	require.NoError(t, err)
	second, err := e.Extract(markup, "")
	require.NoError(t, err)

	assert.Equal(t, "Alpha beta gamma", first)
	assert.Equal(t, first, second)
}

func TestExtract_IdempotentOnOwnOutput(t *testing.T) {
	e, err := New(ModeText)
	require.NoError(t, err)

	inputs := []string{
		"",
		"   ",
		"plain text",
		"<p> a \n b </p><p>c</p>",
		"tabs\tand\r\nnewlines\n\n\nhere",
		"<ul><li>one</li><li>two</li></ul>",
	}
	for _, in := range inputs {
		once, err := e.Extract([]byte(in), "")
		require.NoError(t, err)
		twice, err := e.Extract([]byte(once), "")
		require.NoError(t, err)
		assert.Equal(t, once, twice, "input %q", in)
		assert.Equal(t, once, NormalizeText(once))
	}
}

func TestExtract_ReadabilityFallsBackOnTinyPages(t *testing.T) {
	e, err := New(ModeReadability)
	require.NoError(t, err)

	text, err := e.Extract([]byte("<p>tiny</p><script>hidden()</script>"), "https://example.com/page")
	require.NoError(t, err)
	assert.Contains(t, text, "tiny")
	assert.NotContains(t, text, "hidden")
}

func TestExtract_ReadabilitySeparatesBlocks(t *testing.T) {
	e, err := New(ModeReadability)
	require.NoError(t, err)

	var body strings.Builder
	for i := 1; i <= 6; i++ {
		fmt.Fprintf(&body, "<p>Paragraph %d explains the clinic schedule, the booking rules, and the staffing plan for patients in detail.</p>", i)
	}
	body.WriteString("<p>The first block ends here, after a long description of the reception desk.</p>")
	body.WriteString("<p>Second block starts here, with notes on urgent questions, parking, and late arrivals.</p>")
	markup := `<html><head><title>Clinic</title></head><body><nav><a href="/">Home</a></nav><article>` +
		body.String() + `</article><footer>Copyright</footer></body></html>`

	text, err := e.Extract([]byte(markup), "https://example.com/clinic")
	require.NoError(t, err)
	assert.Contains(t, text, "reception desk. Second block starts here")
	assert.NotContains(t, text, "desk.Second")
	assert.Equal(t, NormalizeText(text), text)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeText("  a\n\n b\t\tc  "))
	assert.Equal(t, "", NormalizeText(" \n\t "))
}
