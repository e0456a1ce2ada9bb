package device

import (
	"context"
	"sync"

	"github.com/nerrad567/abode-bridge/internal/abode"
)

// Switch is a power switch controlled through the power_switch endpoint.
type Switch struct {
	mu  sync.RWMutex
	rec abode.Device
	on  bool
}

func newSwitch(rec abode.Device) *Switch {
	s := &Switch{}
	s.Refresh(rec)
	return s
}

func (s *Switch) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.ID
}

func (s *Switch) Kind() Kind { return KindSwitch }

func (s *Switch) Record() abode.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

func (s *Switch) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := baseState(s.rec, KindSwitch)
	st.On = s.on
	return st
}

func (s *Switch) Refresh(rec abode.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rec = rec
	s.on = powerFromRecord(rec)
}

func (s *Switch) plan(cmd Command) (*controlCall, error) {
	if cmd.Type != CommandPower {
		return nil, unsupportedCommand(KindSwitch, cmd)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.on == cmd.On {
		return nil, nil
	}
	s.on = cmd.On

	id := s.rec.ID
	status := abode.StatusOff
	if cmd.On {
		status = abode.StatusOn
	}
	return &controlCall{
		send: func(ctx context.Context, c Controller) error {
			return c.ControlSwitch(ctx, id, status)
		},
	}, nil
}
