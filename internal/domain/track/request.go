package track

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrEmptyRequest is returned when no query or link was given.
var ErrEmptyRequest = errors.New("no video or audio provided")

// Kind represents the kind of play request.
type Kind int

const (
	KindSearch Kind = iota // Free-text search query
	KindLink               // Direct media link
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// PlayRequest is an immutable search query or media link.
type PlayRequest struct {
	kind  Kind
	value string
}

// NewSearch creates a search request.
func NewSearch(query string) PlayRequest {
	return PlayRequest{kind: KindSearch, value: strings.TrimSpace(query)}
}

// NewLink creates a link request.
func NewLink(link string) PlayRequest {
	return PlayRequest{kind: KindLink, value: strings.TrimSpace(link)}
}

// ParsePlayRequest builds a request from command arguments.
// A single argument starting with "http" is a link (chat-style <...> wrapping
// is removed first); anything else is joined into a search query.
func ParsePlayRequest(args []string) (PlayRequest, error) {
	switch len(args) {
	case 0:
		return PlayRequest{}, ErrEmptyRequest
	case 1:
		arg := strings.TrimSpace(args[0])
		arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<"), ">")
		if arg == "" {
			return PlayRequest{}, ErrEmptyRequest
		}
		if strings.HasPrefix(arg, "http") {
			return NewLink(arg), nil
		}
		return NewSearch(arg), nil
	default:
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return PlayRequest{}, ErrEmptyRequest
		}
		return NewSearch(query), nil
	}
}

// Kind returns the request kind.
func (r PlayRequest) Kind() Kind {
	return r.kind
}

// IsLink reports whether the request is a direct link.
func (r PlayRequest) IsLink() bool {
	return r.kind == KindLink
}

// Value returns the raw query or link.
func (r PlayRequest) Value() string {
	return r.value
}

// Host returns the lowercased host of a link request, or "" for searches
// and unparsable links.
func (r PlayRequest) Host() string {
	if r.kind != KindLink {
		return ""
	}
	u, err := url.Parse(r.value)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
}

// String returns the text shown to users for this request.
func (r PlayRequest) String() string {
	return r.value
}
