package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOwnerTrue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access": true}`))
	}))
	defer srv.Close()

	a := NewResourceAuthorizer(srv.URL, srv.Client())
	assert.True(t, a.IsOwner(context.Background(), "blabla123", "data-1"))
}

func TestIsOwnerFalseWhenAccessFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access": false}`))
	}))
	defer srv.Close()

	a := NewResourceAuthorizer(srv.URL, srv.Client())
	assert.False(t, a.IsOwner(context.Background(), "blabla123", "data-1"))
}

func TestIsOwnerFalseWhenFieldMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"flarpa": "blarpa"}`))
	}))
	defer srv.Close()

	a := NewResourceAuthorizer(srv.URL, srv.Client())
	assert.False(t, a.IsOwner(context.Background(), "blabla123", "data-1"))
}

func TestIsOwnerFalseOnNon200(t *testing.T) {
	for _, status := range []int{400, 403, 500} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		a := NewResourceAuthorizer(srv.URL, srv.Client())
		assert.False(t, a.IsOwner(context.Background(), "blabla123", "data-1"))
		srv.Close()
	}
}

func TestIsOwnerFalseOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	a := NewResourceAuthorizer(srv.URL, srv.Client())
	assert.False(t, a.IsOwner(context.Background(), "blabla123", "data-1"))
}
