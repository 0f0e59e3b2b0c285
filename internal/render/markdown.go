// Package render turns bot replies into the HTML fragment shown inside a chat
// bubble. The conversion is a fixed, ordered chain of pattern substitutions;
// later stages see the output of earlier ones, so the order below is part of
// the contract.
package render

import (
	"regexp"
	"strings"
)

const (
	paragraphBreak = "</p><p>"
	lineBreakTag   = "<br>"

	imageStyle = "max-width:100%;height:auto;border-radius:4px;margin:4px 0;"
	linkAttrs  = `target="_blank" rel="noopener noreferrer"`
)

var (
	blankLines = regexp.MustCompile(`\n{2,}`)

	boldStars      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	boldUnders     = regexp.MustCompile(`__(.*?)__`)
	fencedCode     = regexp.MustCompile("(?s)```(.*?)```")
	inlineCode     = regexp.MustCompile("`([^`]+)`")
	imageRef       = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	linkRef        = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	bareURL        = regexp.MustCompile(`(^|[^"'>])(https?://[^\s<]+)`)
	numberedMarker = regexp.MustCompile(`^\d+\. `)
	anchorSpan     = regexp.MustCompile(`(?s)<a\s[^>]*>.*?</a>`)
)

// stage is one step of the pipeline.
type stage struct {
	name string
	fn   func(string) string
}

// pipeline lists the stages in execution order. Fenced code runs before
// inline code so that triple-backtick fences are not split by the
// single-backtick rule.
var pipeline = []stage{
	{"line-endings", normalizeLineEndings},
	{"paragraphs", splitParagraphs},
	{"line-breaks", breakLines},
	{"paragraph-wrap", wrapParagraphs},
	{"headers", headers},
	{"bold", bold},
	{"fenced-code", fences},
	{"inline-code", inlineCodeSpans},
	{"images", images},
	{"links", links},
	{"blockquotes", blockquotes},
	{"lists", lists},
	{"autolink", autolink},
	{"sanitize", Sanitize},
}

// Markdown renders a bot reply to an HTML fragment. It is total: every input
// string produces an output string.
func Markdown(s string) string {
	for _, st := range pipeline {
		s = st.fn(s)
	}
	return s
}

// MarkdownAny is the lenient entry point used at the widget boundary. Values
// that are not strings, and the empty string, are returned unchanged.
func MarkdownAny(v any) any {
	s, ok := v.(string)
	if !ok || s == "" {
		return v
	}
	return Markdown(s)
}

// Stages returns the stage names in execution order.
func Stages() []string {
	out := make([]string, 0, len(pipeline))
	for _, st := range pipeline {
		out = append(out, st.name)
	}
	return out
}

func normalizeLineEndings(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// splitParagraphs must run before breakLines so that blank-line boundaries
// are told apart from in-paragraph newlines.
func splitParagraphs(s string) string {
	return blankLines.ReplaceAllString(s, paragraphBreak)
}

func breakLines(s string) string {
	return strings.ReplaceAll(s, "\n", lineBreakTag)
}

func wrapParagraphs(s string) string {
	if !strings.Contains(s, paragraphBreak) {
		return s
	}
	return "<p>" + s + "</p>"
}

var headerLevels = []struct {
	prefix string
	tag    string
}{
	{"### ", "h3"},
	{"## ", "h2"},
	{"# ", "h1"},
}

func headers(s string) string {
	return mapLines(s, func(line string) string {
		for _, h := range headerLevels {
			if rest, ok := strings.CutPrefix(line, h.prefix); ok {
				return "<" + h.tag + ">" + rest + "</" + h.tag + ">"
			}
		}
		return line
	})
}

func bold(s string) string {
	s = boldStars.ReplaceAllString(s, "<strong>${1}</strong>")
	return boldUnders.ReplaceAllString(s, "<strong>${1}</strong>")
}

func fences(s string) string {
	return fencedCode.ReplaceAllString(s, "<pre><code>${1}</code></pre>")
}

func inlineCodeSpans(s string) string {
	return inlineCode.ReplaceAllString(s, "<code>${1}</code>")
}

func images(s string) string {
	return imageRef.ReplaceAllString(s, `<img src="${2}" alt="${1}" style="`+imageStyle+`"/>`)
}

func links(s string) string {
	return linkRef.ReplaceAllString(s, `<a href="${2}" `+linkAttrs+`>${1}</a>`)
}

func blockquotes(s string) string {
	return mapLines(s, func(line string) string {
		if rest, ok := strings.CutPrefix(line, "> "); ok {
			return "<blockquote>" + rest + "</blockquote>"
		}
		return line
	})
}

func lists(s string) string {
	return groupItems(markItems(s))
}

// autolink wraps bare URLs. A URL right after a quote or '>' is already
// inside an attribute or an anchor body and is left alone, as is any URL
// inside the body of an anchor produced by the link stage.
func autolink(s string) string {
	matches := bareURL.FindAllStringSubmatchIndex(s, -1)
	if matches == nil {
		return s
	}
	anchors := anchorSpan.FindAllStringIndex(s, -1)
	var b strings.Builder
	prev := 0
	for _, m := range matches {
		url := s[m[4]:m[5]]
		if insideSpan(anchors, m[4]) {
			continue
		}
		b.WriteString(s[prev:m[4]])
		b.WriteString(`<a href="` + url + `" ` + linkAttrs + `>` + url + `</a>`)
		prev = m[5]
	}
	b.WriteString(s[prev:])
	return b.String()
}

func insideSpan(spans [][]int, i int) bool {
	for _, sp := range spans {
		if i >= sp[0] && i < sp[1] {
			return true
		}
	}
	return false
}
