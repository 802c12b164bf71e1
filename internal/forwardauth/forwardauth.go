// Package forwardauth implements the forward-auth protocol used to gate
// protected tunnels: before a request is forwarded to the developer's
// service, the gateway mirrors its headers to a configured auth endpoint
// and interprets the response status to decide whether the request may
// proceed.
package forwardauth

import (
	"errors"
	"fmt"
	"net/http"
)

// remoteUserHeader carries the authenticated username back from the auth
// endpoint on a successful check.
const remoteUserHeader = "Remote-User"

// excludedHeaders are stripped before mirroring the inbound request's
// headers to the auth endpoint: Content-Length describes a body that is
// never sent, and Host would make the auth client address the wrong
// server entirely.
var excludedHeaders = map[string]bool{
	"Content-Length": true,
	"Host":           true,
}

// User identifies the principal the auth endpoint authenticated.
type User struct {
	Username string
}

// Is reports whether the user's name matches username.
func (u User) Is(username string) bool {
	return u.Username == username
}

// StatusKind enumerates the outcomes of an auth check.
type StatusKind int

const (
	// Unauthenticated means the caller has no valid session; Location
	// carries where they should be redirected to log in.
	Unauthenticated StatusKind = iota
	// Authenticated means the caller is logged in as User.
	Authenticated
	// Unauthorized means the caller is logged in but may not access this
	// resource.
	Unauthorized
)

// Status is the outcome of a forward-auth check.
type Status struct {
	Kind     StatusKind
	Location string // set only when Kind == Unauthenticated
	User     User   // set only when Kind == Authenticated
}

// MissingHeaderError reports that a required header was absent from the
// auth endpoint's response.
type MissingHeaderError struct {
	Header string
}

func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("header %q is missing from auth endpoint response", e.Header)
}

// UnexpectedStatusError reports a response the gateway does not know how
// to interpret: neither a redirect, a forbidden, nor a success.
type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected response from auth endpoint: status %d", e.StatusCode)
}

// ForwardAuth checks inbound requests against a configured auth endpoint.
type ForwardAuth struct {
	endpoint string
	client   *http.Client
}

// New returns a ForwardAuth that checks requests against endpoint. The
// underlying client never follows redirects: a 302 from the endpoint is
// the signal that the caller needs to authenticate, not an instruction to
// chase the Location header.
func New(endpoint string) *ForwardAuth {
	return &ForwardAuth{
		endpoint: endpoint,
		client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Check mirrors headers (minus Content-Length and Host) to the configured
// endpoint as a GET request and classifies the response.
func (f *ForwardAuth) Check(headers http.Header) (Status, error) {
	req, err := http.NewRequest(http.MethodGet, f.endpoint, nil)
	if err != nil {
		return Status{}, fmt.Errorf("build auth request: %w", err)
	}

	for key, values := range headers {
		if excludedHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("auth endpoint request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusFound:
		location := resp.Header.Get("Location")
		if location == "" {
			return Status{}, &MissingHeaderError{Header: "Location"}
		}
		return Status{Kind: Unauthenticated, Location: location}, nil

	case resp.StatusCode == http.StatusForbidden:
		return Status{Kind: Unauthorized}, nil

	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Status{}, &UnexpectedStatusError{StatusCode: resp.StatusCode}
	}

	username := resp.Header.Get(remoteUserHeader)
	if username == "" {
		return Status{}, &MissingHeaderError{Header: remoteUserHeader}
	}

	return Status{Kind: Authenticated, User: User{Username: username}}, nil
}

// IsMissingHeader reports whether err is a MissingHeaderError.
func IsMissingHeader(err error) bool {
	var target *MissingHeaderError
	return errors.As(err, &target)
}
