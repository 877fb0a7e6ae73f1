package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlain(t *testing.T) {
	r := NewRenderer()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"strips tags", "<b>Hi</b>", "Hi"},
		{"drops script", `<script>alert(1)</script>Hello`, "Hello"},
		{"escapes ampersand", "Tom & Jerry", "Tom &amp; Jerry"},
		{"plain passes", "Lunch tomorrow", "Lunch tomorrow"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Plain(tc.in))
		})
	}
}

func TestMarkup_FilteredHTML(t *testing.T) {
	r := NewRenderer()

	out := r.Markup(`<p onclick="x()">Hi <em>there</em></p><script>bad()</script>`, FormatFilteredHTML)

	assert.Equal(t, "<p>Hi <em>there</em></p>", out)
}

func TestMarkup_FullHTMLUnchanged(t *testing.T) {
	r := NewRenderer()
	raw := `<div class="x"><script>ok()</script></div>`

	assert.Equal(t, raw, r.Markup(raw, FormatFullHTML))
}

func TestMarkup_PlainText(t *testing.T) {
	r := NewRenderer()

	out := r.Markup("a < b\r\nsecond line", FormatPlainText)

	assert.Equal(t, "a &lt; b<br />\nsecond line", out)
}

func TestMarkup_Markdown(t *testing.T) {
	r := NewRenderer()

	out := r.Markup("*hi* and <script>x</script>", FormatMarkdown)

	assert.Contains(t, out, "<em>hi</em>")
	assert.NotContains(t, out, "<script>")
}

func TestMarkup_UnknownFormatFallsBackToFiltered(t *testing.T) {
	r := NewRenderer()

	assert.Equal(t, "<b>ok</b>", r.Markup("<b>ok</b><iframe></iframe>", 99))
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat(FormatFilteredHTML))
	assert.True(t, ValidFormat(FormatMarkdown))
	assert.False(t, ValidFormat(0))
	assert.False(t, ValidFormat(5))
}
