package consumer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/packfinderz-inventory/internal/inventory"
	"github.com/google/uuid"
)

// CommandType names the engine operation a message asks for.
type CommandType string

const (
	CommandReserve  CommandType = "inventory.reserve"
	CommandRelease  CommandType = "inventory.release"
	CommandComplete CommandType = "inventory.complete"
	CommandReturn   CommandType = "inventory.return"
)

const commandAttribute = "command"

// Envelope is the JSON body of a command message. Type may instead arrive in
// the "command" attribute.
type Envelope struct {
	CommandID string          `json:"command_id"`
	Type      CommandType     `json:"type"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Data      json.RawMessage `json:"data"`
}

func decodeEnvelope(data []byte, attrs map[string]string) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("payload empty")
	}
	raw := data
	if decoded, err := base64.StdEncoding.DecodeString(string(data)); err == nil {
		raw = decoded
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		env.Type = CommandType(strings.TrimSpace(attrs[commandAttribute]))
	}
	if env.TenantID == uuid.Nil {
		return nil, fmt.Errorf("tenant_id is required")
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("data is required")
	}
	return &env, nil
}

// decodeInto unmarshals the command data and stamps the envelope tenant on it
// so a body cannot address another tenant.
func decodeInto[T any](env *Envelope, setTenant func(*T, uuid.UUID)) (*T, error) {
	var input T
	if err := json.Unmarshal(env.Data, &input); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	setTenant(&input, env.TenantID)
	return &input, nil
}

func reserveInput(env *Envelope) (*inventory.ReserveInput, error) {
	return decodeInto(env, func(in *inventory.ReserveInput, id uuid.UUID) { in.TenantID = id })
}

func releaseInput(env *Envelope) (*inventory.ReleaseInput, error) {
	return decodeInto(env, func(in *inventory.ReleaseInput, id uuid.UUID) { in.TenantID = id })
}

func completeInput(env *Envelope) (*inventory.CompleteInput, error) {
	return decodeInto(env, func(in *inventory.CompleteInput, id uuid.UUID) { in.TenantID = id })
}

func returnInput(env *Envelope) (*inventory.ReturnInput, error) {
	return decodeInto(env, func(in *inventory.ReturnInput, id uuid.UUID) { in.TenantID = id })
}
