package amqp

import (
	"encoding/json"
	"time"
)

// LedgerMergedMessage announces that a merge run replaced the ledger.
// Consumers re-read the ledger file (or the SQLite mirror) themselves.
type LedgerMergedMessage struct {
	RunID       string    `json:"run_id"`
	OutputPath  string    `json:"output_path"`
	Files       int       `json:"files"`
	FailedFiles int       `json:"failed_files"`
	Records     int       `json:"records"`
	Warnings    int       `json:"warnings"`
	Dropped     int       `json:"dropped"`
	Duplicates  int       `json:"duplicates"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewLedgerMergedMessage stamps a message for runID with the current time.
func NewLedgerMergedMessage(runID, outputPath string) *LedgerMergedMessage {
	return &LedgerMergedMessage{
		RunID:      runID,
		OutputPath: outputPath,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerMergedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerMergedMessageFromJSON decodes a message body.
func LedgerMergedMessageFromJSON(data []byte) (*LedgerMergedMessage, error) {
	var msg LedgerMergedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
