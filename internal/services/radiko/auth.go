package radiko

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	authBaseURL = "https://radiko.jp/v2/api"

	// Credentials of the public pc_html5 client. The auth1 response selects a
	// window into this key; the base64 of that window authorizes auth2.
	appID      = "pc_html5"
	appVersion = "0.0.1"
	appKey     = "bcd151073c03b352e1ef2fd66c32209da9ca0afa"

	deviceName = "pc"
	userID     = "dummy_user"

	// Tokens stay valid well past one playlist resolution; radiko invalidates
	// them server-side after roughly an hour.
	tokenLifetime = 50 * time.Minute
)

// Capability is the bearer credential consumed by playlist resolution.
type Capability struct {
	Token     string
	AreaID    string
	ExpiresAt time.Time
}

// Valid reports whether the capability can still be presented.
func (c Capability) Valid(now time.Time) bool {
	return c.Token != "" && c.AreaID != "" && now.Before(c.ExpiresAt)
}

// ErrAuthRejected indicates the service refused the handshake.
var ErrAuthRejected = errors.New("radiko auth rejected")

// AuthClient performs the radiko auth1/auth2 handshake.
type AuthClient struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

// AuthOption configures the auth client.
type AuthOption func(*AuthClient)

// WithAuthBaseURL overrides the service endpoint (used in tests).
func WithAuthBaseURL(base string) AuthOption {
	return func(a *AuthClient) {
		if base != "" {
			a.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithAuthHTTPClient supplies the HTTP client to use.
func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(a *AuthClient) {
		if client != nil {
			a.client = client
		}
	}
}

// NewAuthClient constructs an auth client with the given timeout.
func NewAuthClient(timeout time.Duration, opts ...AuthOption) *AuthClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	auth := &AuthClient{
		baseURL: authBaseURL,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(auth)
	}
	return auth
}

// Authorize runs auth1/auth2 and returns a capability for the reported area.
// areaOverride, when non-empty, replaces the area auth2 derives from the
// connection.
func (a *AuthClient) Authorize(ctx context.Context, areaOverride string) (Capability, error) {
	token, offset, length, err := a.auth1(ctx)
	if err != nil {
		return Capability{}, err
	}

	if offset < 0 || length <= 0 || offset+length > len(appKey) {
		return Capability{}, fmt.Errorf("%w: key window %d+%d out of range", ErrAuthRejected, offset, length)
	}
	partialKey := base64.StdEncoding.EncodeToString([]byte(appKey[offset : offset+length]))

	areaID, err := a.auth2(ctx, token, partialKey)
	if err != nil {
		return Capability{}, err
	}
	if areaOverride != "" {
		areaID = areaOverride
	}

	return Capability{
		Token:     token,
		AreaID:    areaID,
		ExpiresAt: a.now().Add(tokenLifetime),
	}, nil
}

func (a *AuthClient) auth1(ctx context.Context) (token string, offset, length int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth1", nil)
	if err != nil {
		return "", 0, 0, err
	}
	req.Header.Set("X-Radiko-App", appID)
	req.Header.Set("X-Radiko-App-Version", appVersion)
	req.Header.Set("X-Radiko-Device", deviceName)
	req.Header.Set("X-Radiko-User", userID)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("auth1: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("%w: auth1 status %d", ErrAuthRejected, resp.StatusCode)
	}

	token = resp.Header.Get("X-Radiko-AuthToken")
	offsetRaw := resp.Header.Get("X-Radiko-KeyOffset")
	lengthRaw := resp.Header.Get("X-Radiko-KeyLength")
	if token == "" || offsetRaw == "" || lengthRaw == "" {
		return "", 0, 0, fmt.Errorf("%w: auth1 response missing token or key window", ErrAuthRejected)
	}
	offset, err = strconv.Atoi(offsetRaw)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: bad key offset %q", ErrAuthRejected, offsetRaw)
	}
	length, err = strconv.Atoi(lengthRaw)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: bad key length %q", ErrAuthRejected, lengthRaw)
	}
	return token, offset, length, nil
}

func (a *AuthClient) auth2(ctx context.Context, token, partialKey string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth2", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("X-Radiko-App", appID)
	req.Header.Set("X-Radiko-App-Version", appVersion)
	req.Header.Set("X-Radiko-Device", deviceName)
	req.Header.Set("X-Radiko-User", userID)
	req.Header.Set("X-Radiko-AuthToken", token)
	req.Header.Set("X-Radiko-PartialKey", partialKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth2: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: auth2 status %d", ErrAuthRejected, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("auth2 body: %w", err)
	}
	// auth2 answers "JP13,東京都,tokyo Japan"; only the area code matters here.
	area := strings.TrimSpace(strings.SplitN(string(body), ",", 2)[0])
	if area == "" {
		return "", fmt.Errorf("%w: auth2 returned no area", ErrAuthRejected)
	}
	return area, nil
}
