package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/abode-bridge/internal/abode"
	"github.com/nerrad567/abode-bridge/internal/device"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/config"
	"github.com/nerrad567/abode-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/abode-bridge/internal/platform"
)

// MockCore is an in-memory Core.
type MockCore struct {
	mu       sync.Mutex
	states   map[string]device.State
	status   platform.Status
	applyErr error
	applied  []device.Command
}

func newMockCore(states ...device.State) *MockCore {
	m := &MockCore{
		states: make(map[string]device.State),
		status: platform.Status{Auth: "authenticated", SocketConnected: true},
	}
	for _, st := range states {
		m.states[st.ID] = st
	}
	m.status.Devices = len(m.states)
	return m
}

func (m *MockCore) Devices() []device.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]device.State, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	return out
}

func (m *MockCore) Device(id string) (device.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id]
	return st, ok
}

func (m *MockCore) ApplyLocalCommand(_ context.Context, id string, cmd device.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = append(m.applied, cmd)
	if m.applyErr != nil {
		return m.applyErr
	}
	if cmd.Type == device.CommandPower {
		st := m.states[id]
		st.On = cmd.On
		m.states[id] = st
	}
	return nil
}

func (m *MockCore) Status() platform.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *MockCore) lastApplied() (device.Command, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.applied) == 0 {
		return device.Command{}, 0
	}
	return m.applied[len(m.applied)-1], len(m.applied)
}

type fakeLink bool

func (f fakeLink) IsConnected() bool { return bool(f) }

func intPtr(v int) *int { return &v }

func testDevices() []device.State {
	return []device.State{
		{ID: "ZW:2", Name: "Porch", Kind: device.KindSwitch, On: true},
		{ID: "ZW:1", Name: "Hall", Kind: device.KindDimmer, Brightness: intPtr(40)},
		{ID: "ZB:9", Name: "Desk", Kind: device.KindLightBulb, ColorTemperature: intPtr(250)},
	}
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)
}

func testServer(t *testing.T) (*Server, *MockCore) {
	t.Helper()

	core := newMockCore(testDevices()...)
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:  testLogger(),
		Core:    core,
		MQTT:    fakeLink(true),
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, core
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Deps{Core: newMockCore()}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without core should fail")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		status platform.Status
		want   string
	}{
		{"healthy", platform.Status{Auth: "authenticated", SocketConnected: true}, "ok"},
		{"renewal failed", platform.Status{Auth: "renewal_failed", SocketConnected: true}, "degraded"},
		{"socket down", platform.Status{Auth: "authenticated"}, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, core := testServer(t)
			core.status = tt.status

			rec := serve(srv, http.MethodGet, "/api/v1/health", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			body := decodeBody[HealthResponse](t, rec)
			if body.Status != tt.want {
				t.Errorf("status = %q, want %q", body.Status, tt.want)
			}
			if body.Version != "test" {
				t.Errorf("version = %q", body.Version)
			}
			if body.Core.Auth != tt.status.Auth {
				t.Errorf("core.auth = %q", body.Core.Auth)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)

	rec := serve(srv, http.MethodGet, "/api/v1/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "client-id" {
		t.Errorf("X-Request-ID = %q, want client-id", got)
	}
}

func TestNotFoundRoute(t *testing.T) {
	srv, _ := testServer(t)
	rec := serve(srv, http.MethodGet, "/api/v1/scenes", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListDevices(t *testing.T) {
	srv, _ := testServer(t)

	rec := serve(srv, http.MethodGet, "/api/v1/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decodeBody[DeviceListResponse](t, rec)
	if body.Count != 3 || len(body.Devices) != 3 {
		t.Fatalf("count = %d, devices = %d", body.Count, len(body.Devices))
	}
	for i, want := range []string{"ZB:9", "ZW:1", "ZW:2"} {
		if body.Devices[i].ID != want {
			t.Errorf("devices[%d] = %s, want %s", i, body.Devices[i].ID, want)
		}
	}
	if !strings.Contains(rec.Body.String(), `"kind":"light_bulb"`) {
		t.Errorf("kind not rendered as text: %s", rec.Body.String())
	}
}

func TestListDevices_FilterByKind(t *testing.T) {
	srv, _ := testServer(t)

	rec := serve(srv, http.MethodGet, "/api/v1/devices?kind=dimmer", "")
	body := decodeBody[DeviceListResponse](t, rec)
	if body.Count != 1 || body.Devices[0].ID != "ZW:1" {
		t.Errorf("filtered devices = %+v", body.Devices)
	}
}

func TestGetDevice(t *testing.T) {
	srv, _ := testServer(t)

	for _, path := range []string{"/api/v1/devices/ZW:1", "/api/v1/devices/ZW:1/state"} {
		rec := serve(srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
		st := decodeBody[device.State](t, rec)
		if st.Name != "Hall" || st.Brightness == nil || *st.Brightness != 40 {
			t.Errorf("%s: state = %+v", path, st)
		}
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _ := testServer(t)

	rec := serve(srv, http.MethodGet, "/api/v1/devices/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if e := decodeBody[Error](t, rec); e.Code != ErrCodeNotFound {
		t.Errorf("code = %q", e.Code)
	}
}

func TestSetDeviceState(t *testing.T) {
	srv, core := testServer(t)

	rec := serve(srv, http.MethodPut, "/api/v1/devices/ZW:1/state", `{"command":"on"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	cmd, n := core.lastApplied()
	if n != 1 || cmd.Type != device.CommandPower || !cmd.On {
		t.Errorf("applied = %v (%d calls)", cmd, n)
	}

	body := decodeBody[CommandResponse](t, rec)
	if body.Status != "applied" || body.Command != "power=true" {
		t.Errorf("response = %+v", body)
	}
	if !body.Device.On {
		t.Error("response device state should be on")
	}
}

func TestSetDeviceState_NumericCommand(t *testing.T) {
	srv, core := testServer(t)

	rec := serve(srv, http.MethodPut, "/api/v1/devices/ZB:9/state", `{"command":"color_temperature","value":4000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	cmd, _ := core.lastApplied()
	if cmd.Type != device.CommandColorTemperature || cmd.Value != 4000 {
		t.Errorf("applied = %v", cmd)
	}
}

func TestSetDeviceState_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"command":`},
		{"unknown command", `{"command":"explode"}`},
		{"missing value", `{"command":"brightness"}`},
		{"non-boolean power", `{"command":"power","value":"yes"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, core := testServer(t)

			rec := serve(srv, http.MethodPut, "/api/v1/devices/ZW:1/state", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if _, n := core.lastApplied(); n != 0 {
				t.Errorf("command applied %d times, want 0", n)
			}
		})
	}
}

func TestSetDeviceState_DeviceNotFound(t *testing.T) {
	srv, core := testServer(t)

	rec := serve(srv, http.MethodPut, "/api/v1/devices/missing/state", `{"command":"on"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if _, n := core.lastApplied(); n != 0 {
		t.Error("command should not reach the core")
	}
}

func TestSetDeviceState_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid for kind", fmt.Errorf("%w: switch has no brightness", device.ErrInvalidCommand), http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown device", device.ErrUnknownDevice, http.StatusNotFound, ErrCodeNotFound},
		{"not initialised", platform.ErrNotInitialised, http.StatusServiceUnavailable, ErrCodeNotReady},
		{"dropped at shutdown", device.ErrCancelled, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, ErrCodeTimeout},
		{"missing oauth", abode.ErrMissingOAuth, http.StatusServiceUnavailable, ErrCodeUnavailable},
		{"vendor failure", fmt.Errorf("%w: 500", abode.ErrFetch), http.StatusBadGateway, ErrCodeUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, core := testServer(t)
			core.applyErr = tt.err

			rec := serve(srv, http.MethodPut, "/api/v1/devices/ZW:1/state", `{"command":"off"}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if e := decodeBody[Error](t, rec); e.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tt.wantCode)
			}
		})
	}
}

func TestSetDeviceState_BodyTooLarge(t *testing.T) {
	srv, _ := testServer(t)

	body := `{"command":"on","pad":"` + strings.Repeat("x", maxRequestBodySize) + `"}`
	rec := serve(srv, http.MethodPut, "/api/v1/devices/ZW:1/state", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t)

	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := testServer(t)

	rec := serve(srv, http.MethodGet, "/api/v1/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	m := decodeBody[SystemMetrics](t, rec)
	if m.Version != "test" {
		t.Errorf("version = %q", m.Version)
	}
	if m.Devices.Total != 3 || m.Devices.On != 1 {
		t.Errorf("devices = %+v", m.Devices)
	}
	if m.Devices.ByKind["switch"] != 1 || m.Devices.ByKind["light_bulb"] != 1 {
		t.Errorf("by_kind = %v", m.Devices.ByKind)
	}
	if m.MQTT == nil || !m.MQTT.Connected {
		t.Errorf("mqtt = %+v", m.MQTT)
	}
	if m.InfluxDB != nil {
		t.Error("influxdb metrics should be omitted when not configured")
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("runtime goroutines not populated")
	}
}

func TestStartAndClose(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Close()

	if err := srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestCloseBeforeStart(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestInitialChannels(t *testing.T) {
	tests := []struct {
		param string
		want  []string
	}{
		{"", []string{ChannelDeviceStateChanged}},
		{"device.registered", []string{"device.registered"}},
		{" a , ,b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := initialChannels(tt.param)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("initialChannels(%q) = %v, want %v", tt.param, got, tt.want)
		}
	}
}

// dialWS connects a WebSocket client to srv and waits for the hub to see it.
func dialWS(t *testing.T, srv *Server, query string) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	before := srv.hub.ClientCount()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() == before {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with hub")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error: %v", err)
	}
	return msg
}

func TestWebSocket_StateChangedBroadcast(t *testing.T) {
	srv, _ := testServer(t)
	conn := dialWS(t, srv, "")

	srv.Update(device.State{ID: "ZW:2", Name: "Porch", Kind: device.KindSwitch, On: false})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelDeviceStateChanged {
		t.Fatalf("message = %+v", msg)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok || payload["id"] != "ZW:2" || payload["kind"] != "switch" {
		t.Errorf("payload = %v", msg.Payload)
	}
}

func TestWebSocket_RegisteredRequiresSubscription(t *testing.T) {
	srv, _ := testServer(t)
	conn := dialWS(t, srv, "")

	m, err := device.NewModel(abode.Device{ID: "ZW:7", TypeTag: abode.TypeSwitch, Name: "Gate", Status: "On"})
	if err != nil {
		t.Fatalf("NewModel() error: %v", err)
	}

	// Not subscribed yet: this event is dropped.
	if err := srv.Register(m); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	if err := conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: WSSubscribePayload{Channels: []string{ChannelDeviceRegistered}},
	}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	if ack := readWS(t, conn); ack.Type != WSTypeResponse || ack.ID != "1" {
		t.Fatalf("subscribe ack = %+v", ack)
	}

	if err := srv.Register(m); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	msg := readWS(t, conn)
	if msg.EventType != ChannelDeviceRegistered {
		t.Errorf("event type = %q, want %q", msg.EventType, ChannelDeviceRegistered)
	}
}

func TestWebSocket_PingAndUnknownType(t *testing.T) {
	srv, _ := testServer(t)
	conn := dialWS(t, srv, "?channels=none")

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p"}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p" {
		t.Errorf("pong = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "bogus", ID: "b"}); err != nil {
		t.Fatalf("WriteJSON() error: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("error reply = %+v", msg)
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	srv, _ := testServer(t)
	conn := dialWS(t, srv, "?channels="+ChannelDeviceRegistered)

	srv.Update(device.State{ID: "ZW:2"})

	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	var netErr interface{ Timeout() bool }
	if err == nil || !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("expected read timeout, got %v", err)
	}
}

func TestHub_CloseAllDisconnects(t *testing.T) {
	srv, _ := testServer(t)
	_ = dialWS(t, srv, "")
	_ = dialWS(t, srv, "")

	if n := srv.hub.ClientCount(); n != 2 {
		t.Fatalf("ClientCount() = %d, want 2", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	if n := srv.hub.ClientCount(); n != 0 {
		t.Errorf("ClientCount() after Run exit = %d, want 0", n)
	}
}
