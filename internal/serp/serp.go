// Package serp fetches raw image-search result pages from Yahoo! JAPAN.
package serp

import (
	"errors"
	"fmt"
)

// Kind classifies why a results page could not be fetched.
type Kind string

const (
	KindRequest   Kind = "request"   // the request URL could not be built
	KindTransport Kind = "transport" // no usable response arrived
	KindStatus    Kind = "status"    // non-2xx response
	KindBlocked   Kind = "blocked"   // non-2xx bot-protection page
	KindDecode    Kind = "decode"    // body is not valid UTF-8
)

// ErrInvalidUTF8 is wrapped by decode failures.
var ErrInvalidUTF8 = errors.New("body is not valid UTF-8")

// FetchError is returned by Client.Fetch for every failure.
type FetchError struct {
	Kind       Kind
	Query      string
	URL        string
	StatusCode int
	// Source names the bot protection that answered, for KindBlocked.
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("serp: search %q: unexpected status %d", e.Query, e.StatusCode)
	case KindBlocked:
		return fmt.Sprintf("serp: search %q: blocked by %s (status %d)", e.Query, e.Source, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("serp: search %q: %s error", e.Query, e.Kind)
	}
	return fmt.Sprintf("serp: search %q: %v", e.Query, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// KindOf returns the Kind of the FetchError in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
