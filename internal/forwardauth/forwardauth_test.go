package forwardauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheck_Authenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Host"); got != "" {
			t.Errorf("Host header should have been stripped, got %q", got)
		}
		w.Header().Set(remoteUserHeader, "alice")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fa := New(srv.URL)
	status, err := fa.Check(http.Header{"Cookie": []string{"session=abc"}})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if status.Kind != Authenticated {
		t.Fatalf("Kind = %v, want Authenticated", status.Kind)
	}
	if !status.User.Is("alice") {
		t.Fatalf("User = %+v, want alice", status.User)
	}
}

func TestCheck_Unauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://login.example.com")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	fa := New(srv.URL)
	status, err := fa.Check(http.Header{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if status.Kind != Unauthenticated {
		t.Fatalf("Kind = %v, want Unauthenticated", status.Kind)
	}
	if status.Location != "https://login.example.com" {
		t.Fatalf("Location = %q, want https://login.example.com", status.Location)
	}
}

func TestCheck_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	fa := New(srv.URL)
	status, err := fa.Check(http.Header{})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if status.Kind != Unauthorized {
		t.Fatalf("Kind = %v, want Unauthorized", status.Kind)
	}
}

func TestCheck_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fa := New(srv.URL)
	_, err := fa.Check(http.Header{})
	if err == nil {
		t.Fatalf("Check() error = nil, want UnexpectedStatusError")
	}
	var target *UnexpectedStatusError
	if !isUnexpectedStatus(err, &target) {
		t.Fatalf("Check() error = %v, want *UnexpectedStatusError", err)
	}
}

func TestCheck_MissingRemoteUserHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	fa := New(srv.URL)
	_, err := fa.Check(http.Header{})
	if !IsMissingHeader(err) {
		t.Fatalf("Check() error = %v, want MissingHeaderError", err)
	}
}

func isUnexpectedStatus(err error, target **UnexpectedStatusError) bool {
	e, ok := err.(*UnexpectedStatusError)
	if ok {
		*target = e
	}
	return ok
}
