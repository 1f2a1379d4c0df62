// ====================================
// File: internal/dex/yozoon/events.go
// ====================================
package yozoon

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/yozoon/internal/events"
)

const (
	programDataPrefix = "Program data: "
	programPrefix     = "Program "
)

var ErrUnknownEvent = errors.New("unknown event discriminator")

var eventsByDiscriminator = func() map[bin.TypeID]events.EventType {
	m := make(map[bin.TypeID]events.EventType)
	for _, t := range events.AllTypes() {
		m[EventDiscriminator(t)] = t
	}
	return m
}()

// EventDiscriminator returns the 8-byte Anchor sighash of an event.
func EventDiscriminator(t events.EventType) bin.TypeID {
	return bin.SighashTypeID(namespaceEvent, string(t))
}

// DecodeEvent decodes a discriminator-prefixed borsh event payload.
func DecodeEvent(data []byte) (events.Event, error) {
	if len(data) < discriminatorSize {
		return nil, fmt.Errorf("event payload too short: %d bytes", len(data))
	}
	t, ok := eventsByDiscriminator[bin.TypeIDFromBytes(data[:discriminatorSize])]
	if !ok {
		return nil, ErrUnknownEvent
	}
	ev, _ := events.New(t)
	if err := bin.NewBorshDecoder(data[discriminatorSize:]).Decode(ev); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", t, err)
	}
	return ev, nil
}

// EncodeEvent is the inverse of DecodeEvent.
func EncodeEvent(ev events.Event) ([]byte, error) {
	disc := EventDiscriminator(ev.Type())
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(ev); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", ev.Type(), err)
	}
	return buf.Bytes(), nil
}

// EventLogLine renders ev the way the runtime logs it.
func EventLogLine(ev events.Event) (string, error) {
	data, err := EncodeEvent(ev)
	if err != nil {
		return "", err
	}
	return programDataPrefix + base64.StdEncoding.EncodeToString(data), nil
}

// ParseEvents extracts the events emitted by programID from transaction
// logs. Data lines written while another program is executing (CPIs) are
// ignored, as are payloads with a foreign discriminator.
func ParseEvents(programID solana.PublicKey, logs []string) ([]events.Event, error) {
	self := programID.String()
	var (
		stack []string
		out   []events.Event
	)
	for _, line := range logs {
		switch {
		case strings.HasPrefix(line, programDataPrefix):
			if len(stack) == 0 || stack[len(stack)-1] != self {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(line, programDataPrefix))
			if err != nil {
				return out, fmt.Errorf("invalid program data: %w", err)
			}
			ev, err := DecodeEvent(raw)
			if errors.Is(err, ErrUnknownEvent) {
				continue
			}
			if err != nil {
				return out, err
			}
			out = append(out, ev)

		case strings.HasPrefix(line, programPrefix):
			fields := strings.Fields(strings.TrimPrefix(line, programPrefix))
			if len(fields) < 2 {
				continue
			}
			switch {
			case fields[1] == "invoke":
				stack = append(stack, fields[0])
			case fields[1] == "success" || strings.HasPrefix(fields[1], "failed"):
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
	}
	return out, nil
}
