package classify

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tgrab/pkg/errors"
)

// Kind identifies what a classified target points at
type Kind int

const (
	KindDocumentPage Kind = iota
	KindMessagePost
	KindMessageChannel
)

func (k Kind) String() string {
	switch k {
	case KindDocumentPage:
		return "page"
	case KindMessagePost:
		return "post"
	case KindMessageChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Target is a classified reference to crawl. Immutable once classified.
type Target struct {
	Kind Kind
	Raw  string

	// Document page fields
	Host string
	Slug string

	// Message post fields
	ChannelID int64
	PostID    int64

	// Channel fields
	Handle string
	All    bool
}

// AllSentinel expands to every channel visible to the authenticated session
const AllSentinel = "all"

var (
	telegraphRe = regexp.MustCompile(`^(?:https?://)?(telegra\.ph)/([\w-]+)$`)
	graphRe     = regexp.MustCompile(`^(?:https?://)?(graph\.org)/([\w-]+)$`)
	postRe      = regexp.MustCompile(`^(?:https?://)?t\.me/c/(\d+)/(\d+)$`)
	handleRe    = regexp.MustCompile(`^@[\w]{3,}$`)

	// Patterns for scanning free text (message bodies) for embedded targets.
	telegraphScanRe = regexp.MustCompile(`https?://telegra\.ph/[\w-]+`)
	graphScanRe     = regexp.MustCompile(`https?://graph\.org/[\w-]+`)
	postScanRe      = regexp.MustCompile(`https?://t\.me/c/\d+/\d+`)
)

// URL returns the canonical URL for page and post targets. Canonical form is
// scheme-qualified and slash-trimmed so it doubles as the dedup key.
func (t Target) URL() string {
	switch t.Kind {
	case KindDocumentPage:
		return fmt.Sprintf("https://%s/%s", t.Host, t.Slug)
	case KindMessagePost:
		return fmt.Sprintf("https://t.me/c/%d/%d", t.ChannelID, t.PostID)
	default:
		return ""
	}
}

// Key returns the ledger dedup key for the target itself
func (t Target) Key() string {
	return t.URL()
}

// Classify maps an input string to a typed target. Pure string parsing, no
// side effects. Tolerates surrounding whitespace and a missing scheme.
func Classify(input string) (Target, error) {
	s := strings.TrimSpace(input)
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return Target{}, errors.New(errors.ErrorTypeClassification, "empty input")
	}

	if m := telegraphRe.FindStringSubmatch(s); m != nil {
		return Target{Kind: KindDocumentPage, Raw: input, Host: m[1], Slug: m[2]}, nil
	}
	if m := graphRe.FindStringSubmatch(s); m != nil {
		return Target{Kind: KindDocumentPage, Raw: input, Host: m[1], Slug: m[2]}, nil
	}
	if m := postRe.FindStringSubmatch(s); m != nil {
		channelID, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return Target{}, errors.New(errors.ErrorTypeClassification, "bad channel id in %q", s)
		}
		postID, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return Target{}, errors.New(errors.ErrorTypeClassification, "bad post id in %q", s)
		}
		return Target{Kind: KindMessagePost, Raw: input, ChannelID: channelID, PostID: postID}, nil
	}
	if strings.EqualFold(s, AllSentinel) {
		return Target{Kind: KindMessageChannel, Raw: input, All: true}, nil
	}
	if handleRe.MatchString(s) {
		return Target{Kind: KindMessageChannel, Raw: input, Handle: s}, nil
	}

	return Target{}, errors.New(errors.ErrorTypeClassification, "unrecognized input: %q", input)
}

// FindTargets scans free text for embedded page and post links, in order of
// appearance. Duplicates within the same text are collapsed.
func FindTargets(text string) []Target {
	var targets []Target
	seen := make(map[string]bool)

	for _, re := range []*regexp.Regexp{telegraphScanRe, graphScanRe, postScanRe} {
		for _, match := range re.FindAllString(text, -1) {
			t, err := Classify(match)
			if err != nil {
				continue
			}
			if seen[t.Key()] {
				continue
			}
			seen[t.Key()] = true
			targets = append(targets, t)
		}
	}

	return targets
}
