package confirm

import "strings"

// Intent is the classification of a free-text confirmation reply.
type Intent int

const (
	Unrecognized Intent = iota
	Affirm
	Deny
)

func (i Intent) String() string {
	switch i {
	case Affirm:
		return "affirm"
	case Deny:
		return "deny"
	}
	return "unrecognized"
}

var (
	affirmativeWords = []string{"yes", "y", "confirm", "proceed", "ok", "okay", "continue", "go", "do it"}
	negativeWords    = []string{"no", "n", "cancel", "abort", "stop", "nope", "negative"}
)

// Classify matches the normalized reply by substring containment.
// Affirmative words are tested first, so "yes, but actually no" affirms.
// Single-letter entries match any reply containing that letter.
func Classify(reply string) Intent {
	text := strings.ToLower(strings.TrimSpace(reply))
	if text == "" {
		return Unrecognized
	}
	for _, w := range affirmativeWords {
		if strings.Contains(text, w) {
			return Affirm
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(text, w) {
			return Deny
		}
	}
	return Unrecognized
}
