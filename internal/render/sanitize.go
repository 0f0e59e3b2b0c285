package render

import "regexp"

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	iframeBlock = regexp.MustCompile(`(?is)<iframe\b.*?</iframe\s*>`)
	jsScheme    = regexp.MustCompile(`(?i)javascript:`)
)

// Sanitize removes <script> and <iframe> blocks and every "javascript:"
// scheme. It repeats until the output is stable, so removing one occurrence
// cannot assemble a new one (e.g. "javajavascript:script:") and a second call
// is a no-op.
func Sanitize(s string) string {
	for {
		out := scriptBlock.ReplaceAllString(s, "")
		out = iframeBlock.ReplaceAllString(out, "")
		out = jsScheme.ReplaceAllString(out, "")
		if out == s {
			return out
		}
		s = out
	}
}
