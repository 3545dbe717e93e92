package resolver

import "fmt"

// MalformedTermError rejects input that cannot be split into a code and a
// label. No collaborator is consulted for such input.
type MalformedTermError struct {
	Input string
}

func (e *MalformedTermError) Error() string {
	return fmt.Sprintf("malformed term %q: expected \"CODE, Label\"", e.Input)
}

// UpstreamLookupError wraps a collaborator failure. Callers receive it
// alongside a source=none envelope so a failed lookup stays distinguishable
// from a clean no-match.
type UpstreamLookupError struct {
	Op  string
	Err error
}

func (e *UpstreamLookupError) Error() string {
	return fmt.Sprintf("upstream %s lookup failed: %v", e.Op, e.Err)
}

func (e *UpstreamLookupError) Unwrap() error {
	return e.Err
}
