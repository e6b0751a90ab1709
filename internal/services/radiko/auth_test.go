package radiko

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newHandshakeServer(t *testing.T, offset, length int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth1", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Radiko-App") != appID {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("X-Radiko-AuthToken", "token-abc")
		w.Header().Set("X-Radiko-KeyOffset", fmt.Sprint(offset))
		w.Header().Set("X-Radiko-KeyLength", fmt.Sprint(length))
	})
	mux.HandleFunc("/auth2", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Radiko-AuthToken") != "token-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		want := base64.StdEncoding.EncodeToString([]byte(appKey[offset : offset+length]))
		if r.Header.Get("X-Radiko-PartialKey") != want {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "JP13,東京都,tokyo Japan")
	})
	return httptest.NewServer(mux)
}

func TestAuthorizeHandshake(t *testing.T) {
	server := newHandshakeServer(t, 8, 16)
	defer server.Close()

	client := NewAuthClient(2*time.Second, WithAuthBaseURL(server.URL))
	capability, err := client.Authorize(context.Background(), "")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if capability.Token != "token-abc" {
		t.Fatalf("token = %q", capability.Token)
	}
	if capability.AreaID != "JP13" {
		t.Fatalf("area = %q", capability.AreaID)
	}
	if !capability.Valid(time.Now()) {
		t.Fatal("fresh capability should be valid")
	}
}

func TestAuthorizeAreaOverride(t *testing.T) {
	server := newHandshakeServer(t, 0, 8)
	defer server.Close()

	client := NewAuthClient(2*time.Second, WithAuthBaseURL(server.URL))
	capability, err := client.Authorize(context.Background(), "JP27")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if capability.AreaID != "JP27" {
		t.Fatalf("area = %q, want JP27", capability.AreaID)
	}
}

func TestAuthorizeRejectsBadKeyWindow(t *testing.T) {
	server := newHandshakeServer(t, 30, 100)
	defer server.Close()

	client := NewAuthClient(2*time.Second, WithAuthBaseURL(server.URL))
	if _, err := client.Authorize(context.Background(), ""); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
}

func TestAuthorizeAuth1Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewAuthClient(2*time.Second, WithAuthBaseURL(server.URL))
	if _, err := client.Authorize(context.Background(), ""); !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("expected ErrAuthRejected, got %v", err)
	}
}

func TestCapabilityValidity(t *testing.T) {
	now := time.Now()
	capability := Capability{Token: "t", AreaID: "JP13", ExpiresAt: now.Add(time.Minute)}
	if !capability.Valid(now) {
		t.Fatal("capability within lifetime should be valid")
	}
	if capability.Valid(now.Add(2 * time.Minute)) {
		t.Fatal("expired capability should be invalid")
	}
	if (Capability{AreaID: "JP13", ExpiresAt: now.Add(time.Minute)}).Valid(now) {
		t.Fatal("capability without token should be invalid")
	}
}
