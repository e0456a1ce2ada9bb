package abode

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// engine.io v3 packet types (first byte of a text frame).
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
	eioNoop    = '6'
)

// socket.io v2 packet types (first byte of an engine.io message payload).
const (
	sioConnect    = '0'
	sioDisconnect = '1'
	sioEvent      = '2'
	sioError      = '4'
)

var errMalformedPacket = errors.New("abode: malformed socket packet")

// openPacket is the payload of the engine.io open packet.
type openPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
}

func (o openPacket) interval() time.Duration {
	if o.PingInterval <= 0 {
		return 25 * time.Second
	}
	return time.Duration(o.PingInterval) * time.Millisecond
}

func (o openPacket) timeout() time.Duration {
	if o.PingTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(o.PingTimeout) * time.Millisecond
}

func parseOpenPacket(frame string) (openPacket, error) {
	var open openPacket
	if len(frame) < 2 || frame[0] != eioOpen {
		return open, fmt.Errorf("%w: expected open packet", errMalformedPacket)
	}
	if err := json.Unmarshal([]byte(frame[1:]), &open); err != nil {
		return open, fmt.Errorf("%w: %w", errMalformedPacket, err)
	}
	return open, nil
}

// socketEvent is a decoded socket.io event.
type socketEvent struct {
	Name string
	Args []json.RawMessage
}

// parseEventPayload decodes the part of a "42" frame after the two type
// bytes: an optional "/namespace," prefix, an optional ack id and a JSON
// array whose first element is the event name.
func parseEventPayload(payload string) (socketEvent, error) {
	var ev socketEvent

	if strings.HasPrefix(payload, "/") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return ev, fmt.Errorf("%w: namespace without payload", errMalformedPacket)
		}
		payload = payload[comma+1:]
	}
	payload = strings.TrimLeft(payload, "0123456789")

	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &parts); err != nil {
		return ev, fmt.Errorf("%w: %w", errMalformedPacket, err)
	}
	if len(parts) == 0 {
		return ev, fmt.Errorf("%w: empty event", errMalformedPacket)
	}
	if err := json.Unmarshal(parts[0], &ev.Name); err != nil {
		return ev, fmt.Errorf("%w: event name: %w", errMalformedPacket, err)
	}
	ev.Args = parts[1:]
	return ev, nil
}

// deviceIDArg reads the device id from the first event argument. Abode sends
// it as a bare string; an object with an "id" field is also accepted.
func deviceIDArg(args []json.RawMessage) (string, bool) {
	if len(args) == 0 {
		return "", false
	}

	var id string
	if err := json.Unmarshal(args[0], &id); err == nil {
		return id, id != ""
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(args[0], &obj); err == nil && obj.ID != "" {
		return obj.ID, true
	}
	return "", false
}
