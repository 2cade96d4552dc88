package ws

import (
	"github.com/vidpress/orchestrator/internal/job"
)

// Server → UI

type AckMessage struct {
	Type    string `json:"type"`
	LastSeq int64  `json:"last_seq"`
}

type EventMessage struct {
	Type  string    `json:"type"`
	Event job.Event `json:"event"`
}
