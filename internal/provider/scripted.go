package provider

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
)

// Scripted is a deterministic in-process Invoker used by tests and dry
// runs. Responses are matched by substring of the rendered user text, with
// an optional default for unmatched requests.
type Scripted struct {
	mu       sync.Mutex
	byMatch  []scriptEntry
	fallback string
	calls    atomic.Int64
}

type scriptEntry struct {
	match    string
	response string
}

// NewScripted creates a scripted provider answering defaultResponse for
// anything no script matches. An empty default makes unmatched requests
// fail as malformed.
func NewScripted(defaultResponse string) *Scripted {
	return &Scripted{fallback: defaultResponse}
}

// Respond registers a canned response for any user text containing match.
// Earlier registrations win.
func (s *Scripted) Respond(match, response string) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byMatch = append(s.byMatch, scriptEntry{match: match, response: response})
	return s
}

// Calls reports how many invocations reached this provider: the external
// call count that the cache is supposed to minimize.
func (s *Scripted) Calls() int64 {
	return s.calls.Load()
}

func (s *Scripted) Invoke(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Provider: "scripted", Kind: ErrTimeout, Err: err}
	}
	s.calls.Add(1)

	s.mu.Lock()
	content := s.fallback
	for _, e := range s.byMatch {
		if strings.Contains(req.User, e.match) {
			content = e.response
			break
		}
	}
	s.mu.Unlock()

	if content == "" {
		return nil, &Error{
			Provider: "scripted",
			Kind:     ErrMalformed,
			Err:      eris.Errorf("no scripted response for request %q", firstLine(req.User)),
		}
	}

	return &Response{
		Content:      content,
		Raw:          content,
		InputTokens:  int64(len(req.System)+len(req.User)) / 4,
		OutputTokens: int64(len(content)) / 4,
	}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
