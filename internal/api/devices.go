package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/abode-bridge/internal/device"
)

// DeviceListResponse is the body of GET /api/v1/devices.
type DeviceListResponse struct {
	Devices []device.State `json:"devices"`
	Count   int            `json:"count"`
}

// CommandResponse is the body of a successful PUT /devices/{id}/state.
type CommandResponse struct {
	Status  string       `json:"status"`
	Command string       `json:"command"`
	Device  device.State `json:"device"`
}

// handleListDevices returns the cached state of every supported device,
// optionally filtered by ?kind=.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")

	all := s.core.Devices()
	out := make([]device.State, 0, len(all))
	for _, st := range all {
		if kind != "" && st.Kind.String() != kind {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	writeJSON(w, http.StatusOK, DeviceListResponse{Devices: out, Count: len(out)})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	st, ok := s.core.Device(chi.URLParam(r, "id"))
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleSetDeviceState applies {"command": ..., "value": ...} to a device and
// waits for the vendor call to complete. The response carries the device's
// local state after the command.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.core.Device(id); !ok {
		writeNotFound(w, "device not found")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
			return
		}
		writeBadRequest(w, "failed to read request body")
		return
	}

	cmd, err := device.ParseCommand(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	if err := s.core.ApplyLocalCommand(ctx, id, cmd); err != nil {
		s.logger.Warn("local command failed",
			"device_id", id,
			"command", cmd.String(),
			"error", err,
			"request_id", requestIDFrom(r.Context()),
		)
		writeCommandError(w, err)
		return
	}

	st, _ := s.core.Device(id) //nolint:errcheck // existence checked above
	writeJSON(w, http.StatusOK, CommandResponse{
		Status:  "applied",
		Command: cmd.String(),
		Device:  st,
	})
}
