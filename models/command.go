package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdRematchAll     CommandType = "rematch_all"
	CmdRematchRequest CommandType = "rematch_request"
	CmdRunHealthcheck CommandType = "run_healthcheck"
)

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	RequestID string `json:"request_id,omitempty"`
}
