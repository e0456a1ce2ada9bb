package abode

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path string
		want tier
	}{
		{"/api/auth2/login", tierAuth},
		{"/api/auth2/claims", tierAuth},
		{"/api/v1/session", tierSession},
		{"/api/v1/session/extra", tierGeneral},
		{"/api/v1/devices", tierGeneral},
		{"/integrations/v1/devices/abc", tierGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := classifyPath(tt.path); got != tt.want {
				t.Errorf("classifyPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(""); got != "Homebridge" {
		t.Errorf("UserAgent(\"\") = %q", got)
	}
	if got := UserAgent("1.9.0"); got != "Homebridge/1.9.0" {
		t.Errorf("UserAgent(1.9.0) = %q", got)
	}
}

func TestClientPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		tokens  Tokens
		wantErr error
	}{
		{"auth path needs nothing", "/api/auth2/claims", Tokens{}, nil},
		{"session path missing session", "/api/v1/session", Tokens{APIKey: "k"}, ErrMissingSession},
		{"session path missing api key", "/api/v1/session", Tokens{Session: "s"}, ErrMissingAPIKey},
		{"session path ok without oauth", "/api/v1/session", Tokens{Session: "s", APIKey: "k"}, nil},
		{"general path missing session", "/api/v1/devices", Tokens{}, ErrMissingSession},
		{"general path missing api key", "/api/v1/devices", Tokens{Session: "s", OAuthToken: "t"}, ErrMissingAPIKey},
		{"general path missing oauth", "/api/v1/devices", Tokens{Session: "s", APIKey: "k"}, ErrMissingOAuth},
		{"general path ok", "/api/v1/devices", Tokens{Session: "s", APIKey: "k", OAuthToken: "t"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeAbode(t)
			fake.handle("/", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]string{"id": "x"})
			})

			s := NewSessionWithInstanceID("fixed-id")
			s.SetSession(tt.tokens.Session)
			s.SetAPIKey(tt.tokens.APIKey)
			s.SetOAuthToken(tt.tokens.OAuthToken)

			_, err := fake.client(s).Get(context.Background(), tt.path)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if fake.total() != 1 {
					t.Errorf("requests = %d, want 1", fake.total())
				}
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Get() error = %v, want %v", err, tt.wantErr)
			}
			if fake.total() != 0 {
				t.Errorf("request reached the network: %d requests", fake.total())
			}
		})
	}
}

func TestClientMissingPath(t *testing.T) {
	fake := newFakeAbode(t)
	_, err := fake.client(authedSession()).Get(context.Background(), "")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("Get(\"\") error = %v, want ErrConfiguration", err)
	}
}

func TestClientAttachesHeaders(t *testing.T) {
	fake := newFakeAbode(t)
	fake.handle("GET /api/v1/devices", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	})

	if _, err := fake.client(authedSession()).Get(context.Background(), "/api/v1/devices"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	req, ok := fake.last("/api/v1/devices")
	if !ok {
		t.Fatal("no request recorded")
	}
	want := map[string]string{
		"Cookie":        "SESSION=s1;uuid=fixed-id",
		"Abode-Api-Key": "k1",
		"Authorization": "Bearer t1",
		"User-Agent":    "Homebridge/1.9.0",
	}
	for k, v := range want {
		if got := req.Header.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
}

func TestClientSessionTierOmitsAuthorization(t *testing.T) {
	fake := newFakeAbode(t)
	fake.handle("GET /api/v1/session", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "s1"})
	})

	if _, err := fake.client(authedSession()).Get(context.Background(), "/api/v1/session"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	req, _ := fake.last("/api/v1/session")
	if got := req.Header.Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want empty", got)
	}
	if got := req.Header.Get("ABODE-API-KEY"); got != "k1" {
		t.Errorf("ABODE-API-KEY = %q, want k1", got)
	}
}

func TestClientAuthTierWithoutSessionOmitsCookie(t *testing.T) {
	fake := newFakeAbode(t)
	fake.handle("POST /api/auth2/login", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"token": "k1"})
	})

	s := NewSessionWithInstanceID("fixed-id")
	if _, err := fake.client(s).Post(context.Background(), "/api/auth2/login", map[string]string{}); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	req, _ := fake.last("/api/auth2/login")
	if got := req.Header.Get("Cookie"); got != "" {
		t.Errorf("Cookie = %q, want empty", got)
	}
}

func TestClientErrorResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        any
		wantErr     bool
		wantRenewed int
	}{
		{"gateway unreachable code in body", http.StatusBadRequest, map[string]any{"code": 504, "message": "gateway offline"}, false, 0},
		{"gateway unreachable status", http.StatusGatewayTimeout, nil, false, 0},
		{"bad gateway code in body", http.StatusBadRequest, map[string]any{"code": 502}, false, 1},
		{"bad gateway status", http.StatusBadGateway, nil, false, 1},
		{"unauthorized", http.StatusUnauthorized, map[string]any{"code": 401, "message": "expired"}, true, 0},
		{"server error", http.StatusInternalServerError, nil, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeAbode(t)
			fake.handle("GET /api/v1/devices", func(w http.ResponseWriter, _ *http.Request) {
				if tt.body == nil {
					w.WriteHeader(tt.status)
					return
				}
				writeJSON(w, tt.status, tt.body)
			})

			renewer := &countingRenewer{}
			client := fake.client(authedSession())
			client.SetRenewer(renewer)

			resp, err := client.Get(context.Background(), "/api/v1/devices")
			if tt.wantErr {
				if !errors.Is(err, ErrTransport) {
					t.Fatalf("error = %v, want ErrTransport", err)
				}
				var respErr *ResponseError
				if !errors.As(err, &respErr) || respErr.StatusCode != tt.status {
					t.Fatalf("error = %v, want ResponseError with status %d", err, tt.status)
				}
			} else if err != nil {
				t.Fatalf("error = %v, want nil", err)
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Errorf("response status = %v, want %d", resp, tt.status)
			}
			if got := renewer.count(); got != tt.wantRenewed {
				t.Errorf("renew calls = %d, want %d", got, tt.wantRenewed)
			}
		})
	}
}

func TestClientBadGatewayOnAuthPathSkipsRenewal(t *testing.T) {
	fake := newFakeAbode(t)
	fake.handle("GET /api/auth2/claims", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadGateway, map[string]any{"code": 502})
	})

	renewer := &countingRenewer{}
	client := fake.client(authedSession())
	client.SetRenewer(renewer)

	resp, err := client.Get(context.Background(), "/api/auth2/claims")
	if err != nil {
		t.Fatalf("error = %v, want nil", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if got := renewer.count(); got != 0 {
		t.Errorf("renew calls = %d, want 0", got)
	}
}

func TestClientTransportFailure(t *testing.T) {
	fake := newFakeAbode(t)
	client := fake.client(authedSession())
	fake.server.Close()

	_, err := client.Get(context.Background(), "/api/v1/devices")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("error = %v, want ErrTransport", err)
	}
}
