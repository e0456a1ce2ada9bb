package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeAbode serves just enough of the Abode REST API for startup.
func fakeAbode(t *testing.T, loginStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth2/login", func(w http.ResponseWriter, _ *http.Request) {
		if loginStatus != http.StatusOK {
			w.WriteHeader(loginStatus)
			return
		}
		w.Header().Add("Set-Cookie", "SESSION=s1; Path=/")
		//nolint:errcheck // test server
		json.NewEncoder(w).Encode(map[string]string{"token": "k1"})
	})
	mux.HandleFunc("GET /api/auth2/claims", func(w http.ResponseWriter, _ *http.Request) {
		//nolint:errcheck // test server
		json.NewEncoder(w).Encode(map[string]string{"access_token": "t1"})
	})
	mux.HandleFunc("GET /api/v1/devices", func(w http.ResponseWriter, _ *http.Request) {
		//nolint:errcheck // test server
		w.Write([]byte(`[{"id":"sw1","type_tag":"device_type.power_switch_sensor","name":"Lamp","statuses":{"switch":"1"}}]`))
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("ABODEBRIDGE_CONFIG", path)
}

func bridgeConfig(baseURL string, apiEnabled bool, apiPort int) string {
	return fmt.Sprintf(`
abode:
  email: user@example.com
  password: secret
  base_url: %q
  socket_url: %q
  renew_interval: 1h
homekit:
  enabled: false
mqtt:
  enabled: false
influxdb:
  enabled: false
api:
  enabled: %t
  host: 127.0.0.1
  port: %d
logging:
  level: error
  format: text
`, baseURL, "ws"+strings.TrimPrefix(baseURL, "http")+"/socket.io/", apiEnabled, apiPort)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestRun_InvalidConfigPath(t *testing.T) {
	t.Setenv("ABODEBRIDGE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRun_MissingCredentials(t *testing.T) {
	writeConfig(t, `
abode:
  base_url: "http://127.0.0.1:1"
api:
  enabled: false
`)
	t.Setenv("ABODEBRIDGE_EMAIL", "")
	t.Setenv("ABODEBRIDGE_PASSWORD", "")

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "abode.email") {
		t.Fatalf("run() error = %v, want credential validation error", err)
	}
}

func TestRun_AuthenticationRejected(t *testing.T) {
	ts := fakeAbode(t, http.StatusUnauthorized)
	writeConfig(t, bridgeConfig(ts.URL, false, 8090))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil || !strings.Contains(err.Error(), "initialising platform") {
		t.Fatalf("run() error = %v, want platform init failure", err)
	}
}

func TestRun_StartupAndShutdown(t *testing.T) {
	ts := fakeAbode(t, http.StatusOK)
	port := freePort(t)
	writeConfig(t, bridgeConfig(ts.URL, true, port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/devices/sw1", port)
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET %s = %d, want 200", url, resp.StatusCode)
			}
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("API never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestHealthCheck_NoClients(t *testing.T) {
	if err := healthCheck(context.Background(), nil, nil); err != nil {
		t.Errorf("healthCheck(nil, nil) = %v", err)
	}
}
