package domain

import "time"

type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseAuthenticating Phase = "authenticating"
	PhaseConnecting     Phase = "connecting"
	PhaseSubscribing    Phase = "subscribing"
	PhaseStreaming      Phase = "streaming"
	PhaseClosing        Phase = "closing"
	PhaseDisabled       Phase = "disabled"
)

// ConnectorState is a snapshot of one connector. The connector owns the live
// copy; everybody else only sees snapshots.
type ConnectorState struct {
	Exchange        Exchange   `json:"exchange"`
	Phase           Phase      `json:"phase"`
	Retries         int        `json:"retries"`
	LastError       string     `json:"lastError,omitempty"`
	TokenAcquiredAt *time.Time `json:"tokenAcquiredAt,omitempty"`
}

// IngestStats counts what the write path did with one exchange's records.
type IngestStats struct {
	Exchange     Exchange   `json:"exchange"`
	Persisted    int64      `json:"persisted"`
	Failed       int64      `json:"failed"`
	Dropped      int64      `json:"dropped"`
	LastOpenTime int64      `json:"lastOpenTime,omitempty"`
	LastWriteAt  *time.Time `json:"lastWriteAt,omitempty"`
}
