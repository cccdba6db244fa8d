// Package telemetry is the structured lifecycle logging standard for
// hatchery's guest pool: one Event per master/worker transition, policy
// decision, or fault, fanned out to one or more Sinks.
package telemetry

import (
	"encoding/json"
	"time"
)

// Event is the canonical structured event. Required fields: Timestamp,
// InstanceID, EventType, Summary.
type Event struct {
	Timestamp  time.Time       `json:"ts"`
	InstanceID string          `json:"instance_id"`
	EventType  string          `json:"event_type"`
	Summary    string          `json:"summary"`
	WorkerID   int             `json:"worker_id,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Event type constants — the guest lifecycle vocabulary.
const (
	EventMasterBooting    = "master_booting"
	EventMasterWaiting    = "master_waiting_for_requests"
	EventMasterFrozen     = "master_frozen"
	EventMasterFailed     = "master_failed"
	EventWarmupComplete   = "warmup_complete"
	EventWorkerForked     = "worker_forked"
	EventWorkerServing    = "worker_serving"
	EventWorkerReset      = "worker_reset"
	EventWorkerTimeout    = "worker_timeout"
	EventWorkerFault      = "worker_fault"
	EventPolicyDenied     = "policy_denied"
	EventGDBStubAttached  = "gdb_stub_attached"
)

// PolicyDeniedData is the payload for policy_denied events.
type PolicyDeniedData struct {
	Op   string `json:"op"`
	Path string `json:"path,omitempty"`
}

// WorkerResetData is the payload for worker_reset events.
type WorkerResetData struct {
	ResetNeeded    bool `json:"reset_needed"`
	KeptWorkingMem bool `json:"kept_working_mem"`
}

// WorkerFaultData is the payload for worker_fault/worker_timeout events.
type WorkerFaultData struct {
	Fault string `json:"fault"`
	Err   string `json:"err,omitempty"`
}
