package device

import (
	"context"
	"sync"

	"github.com/nerrad567/abode-bridge/internal/abode"
	"github.com/nerrad567/abode-bridge/internal/events"
)

// controlRecord is one control call captured by MockAPI.
type controlRecord struct {
	Endpoint string
	ID       string
	Status   *int
	Level    *int
	Action   abode.BulbAction
}

// MockAPI implements API for testing.
type MockAPI struct {
	mu       sync.Mutex
	devices  map[string]abode.Device
	list     []abode.Device
	calls    []controlRecord
	fetches  []string
	fetchErr error
	ctrlErr  error

	// onControl runs inside each control call (for ordering checks).
	onControl func(id string)
}

func NewMockAPI(records ...abode.Device) *MockAPI {
	m := &MockAPI{devices: make(map[string]abode.Device)}
	for _, r := range records {
		m.devices[r.ID] = r
		m.list = append(m.list, r)
	}
	return m
}

func (m *MockAPI) ListDevices(context.Context) ([]abode.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return append([]abode.Device(nil), m.list...), nil
}

func (m *MockAPI) FetchDevice(_ context.Context, id string) (abode.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, id)
	if m.fetchErr != nil {
		return abode.Device{}, m.fetchErr
	}
	return m.devices[id], nil
}

func (m *MockAPI) setDevice(rec abode.Device) {
	m.mu.Lock()
	m.devices[rec.ID] = rec
	m.mu.Unlock()
}

func (m *MockAPI) record(rec controlRecord) error {
	m.mu.Lock()
	hook := m.onControl
	m.calls = append(m.calls, rec)
	err := m.ctrlErr
	m.mu.Unlock()
	if hook != nil {
		hook(rec.ID)
	}
	return err
}

func (m *MockAPI) ControlSwitch(_ context.Context, id string, status int) error {
	return m.record(controlRecord{Endpoint: "power_switch", ID: id, Status: &status})
}

func (m *MockAPI) ControlLight(_ context.Context, id string, body abode.LightControl) error {
	return m.record(controlRecord{Endpoint: "light", ID: id, Status: body.Status, Level: body.Level})
}

func (m *MockAPI) ControlBulb(_ context.Context, id string, action abode.BulbAction) error {
	return m.record(controlRecord{Endpoint: "integrations", ID: id, Action: action})
}

func (m *MockAPI) controlCalls() []controlRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]controlRecord(nil), m.calls...)
}

func (m *MockAPI) fetchCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.fetches {
		if f == id {
			n++
		}
	}
	return n
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *MockPublisher) Publish(ev events.Event) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *MockPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

func switchRecord(id, sw string) abode.Device {
	return abode.Device{
		ID:       id,
		TypeTag:  abode.TypeSwitch,
		Name:     "Switch " + id,
		Statuses: abode.Statuses{"switch": sw},
	}
}

func dimmerRecord(id, sw, level string) abode.Device {
	return abode.Device{
		ID:       id,
		TypeTag:  abode.TypeDimmer,
		Name:     "Dimmer " + id,
		Statuses: abode.Statuses{"switch": sw, "level": level},
	}
}

func bulbRecord(id string, statuses abode.Statuses) abode.Device {
	return abode.Device{
		ID:       id,
		UUID:     "uuid-" + id,
		TypeTag:  abode.TypeLightBulb,
		Name:     "Bulb " + id,
		Statuses: statuses,
	}
}
