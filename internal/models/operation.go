package models

import "time"

// OperationRecord is the journal entry for a finished engine operation.
type OperationRecord struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	State       string    `json:"state"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	EthAmount   float64   `json:"eth_amount"`
	TokenAmount float64   `json:"token_amount"`
	LPAmount    float64   `json:"lp_amount"`
	ExpectedOut float64   `json:"expected_out"`
	ApproveTx   string    `json:"approve_tx,omitempty"`
	ActionTx    string    `json:"action_tx,omitempty"`
	Steps       []string  `json:"steps"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMS  int64     `json:"duration_ms"`
}
