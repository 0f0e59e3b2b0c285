package render

import (
	"regexp"
	"strings"
)

// lineMarker matches the markup that delimits lines once newlines have been
// replaced by <br> and paragraph tags.
var lineMarker = regexp.MustCompile(`<br>|</?p>`)

// line is a run of text followed by the marker that ended it ("" for the
// last line).
type line struct {
	text string
	end  string
}

func splitLines(s string) []line {
	locs := lineMarker.FindAllStringIndex(s, -1)
	out := make([]line, 0, len(locs)+1)
	prev := 0
	for _, loc := range locs {
		out = append(out, line{text: s[prev:loc[0]], end: s[loc[0]:loc[1]]})
		prev = loc[1]
	}
	return append(out, line{text: s[prev:]})
}

func joinLines(lines []line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.text)
		b.WriteString(l.end)
	}
	return b.String()
}

// mapLines applies fn to the text of every line, leaving markers untouched.
func mapLines(s string, fn func(string) string) string {
	lines := splitLines(s)
	for i := range lines {
		lines[i].text = fn(lines[i].text)
	}
	return joinLines(lines)
}

type listKind int

const (
	notItem listKind = iota
	unorderedItem
	orderedItem
)

// item is a line tagged with the list marker it was produced from.
type item struct {
	line
	kind listKind
}

// markItems converts list-marker lines into <li> elements and remembers, per
// line, which kind of marker produced it.
func markItems(s string) []item {
	lines := splitLines(s)
	out := make([]item, len(lines))
	for i, l := range lines {
		out[i] = item{line: l}
		switch {
		case strings.HasPrefix(l.text, "* "), strings.HasPrefix(l.text, "- "):
			out[i].text = "<li>" + l.text[2:] + "</li>"
			out[i].kind = unorderedItem
		default:
			if loc := numberedMarker.FindStringIndex(l.text); loc != nil {
				out[i].text = "<li>" + l.text[loc[1]:] + "</li>"
				out[i].kind = orderedItem
			}
		}
	}
	return out
}

// groupItems wraps each run of consecutive items in <ol> or <ul>. The first
// item of a run decides the container. Items in a run are separated only by
// <br>, which is dropped inside the container.
func groupItems(items []item) string {
	var b strings.Builder
	for i := 0; i < len(items); i++ {
		it := items[i]
		if it.kind == notItem {
			b.WriteString(it.text)
			b.WriteString(it.end)
			continue
		}
		tag := "ul"
		if it.kind == orderedItem {
			tag = "ol"
		}
		b.WriteString("<" + tag + ">")
		j := i
		for {
			b.WriteString(items[j].text)
			if items[j].end == lineBreakTag && j+1 < len(items) && items[j+1].kind != notItem {
				j++
				continue
			}
			break
		}
		b.WriteString("</" + tag + ">")
		b.WriteString(items[j].end)
		i = j
	}
	return b.String()
}
