package engine

import (
	"encoding/json"
	"fmt"
)

// EncodeRecord serializes a record as JSON, the format shared by every
// persistent backend.
func EncodeRecord(rec *Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal folder record: %w", err)
	}
	return data, nil
}

// DecodeRecord is the inverse of EncodeRecord.
func DecodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal folder record: %w", err)
	}
	if rec.Folder == nil {
		return nil, fmt.Errorf("folder record without folder")
	}
	return &rec, nil
}
