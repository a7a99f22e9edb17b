package formserver

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/roach88/formsync/internal/form"
)

var (
	answerPolicyOnce sync.Once
	answerPolicy     *bluemonday.Policy
)

func answerSanitizer() *bluemonday.Policy {
	answerPolicyOnce.Do(func() {
		answerPolicy = bluemonday.StrictPolicy()
	})
	return answerPolicy
}

// maxSanitizePasses bounds how many layers of entity encoding are peeled
// off before giving up on plain text.
const maxSanitizePasses = 8

// sanitizeText strips markup from a free-text answer. Answers are stored
// as plain text, so the escaped policy output is unescaped and sanitized
// again until nothing changes. Encoded markup never survives as markup.
// If no fixed point is reached the escaped policy output is kept.
func sanitizeText(raw string) string {
	if !strings.ContainsAny(raw, "<>&") {
		return raw
	}
	policy := answerSanitizer()
	cur := raw
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(policy.Sanitize(cur))
		if next == cur {
			return next
		}
		cur = next
	}
	return policy.Sanitize(cur)
}

// sanitizeAnswers returns a copy of answers with every string stripped
// of markup. Other scalar types pass through.
func sanitizeAnswers(answers form.Values) form.Values {
	out := make(form.Values, len(answers))
	for k, v := range answers {
		if s, ok := v.(form.String); ok {
			out[k] = form.String(sanitizeText(string(s)))
			continue
		}
		out[k] = v
	}
	return out
}
