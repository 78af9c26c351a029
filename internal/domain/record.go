package domain

import (
	"encoding/json"
	"fmt"
)

// RawRecord is one bitable row as returned by the provider
type RawRecord struct {
	RecordID string         `json:"record_id"`
	Fields   map[string]any `json:"fields"`

	// raw holds the provider's own serialization of Fields
	raw json.RawMessage
}

type rawRecordJSON struct {
	RecordID string          `json:"record_id"`
	Fields   json.RawMessage `json:"fields"`
}

// UnmarshalJSON decodes the record and keeps the raw bytes of its fields
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var aux rawRecordJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}

	r.RecordID = aux.RecordID
	r.Fields = nil
	r.raw = nil

	if len(aux.Fields) == 0 || string(aux.Fields) == "null" {
		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal(aux.Fields, &fields); err != nil {
		return fmt.Errorf("failed to decode record %q fields: %w", aux.RecordID, err)
	}

	r.Fields = fields
	r.raw = append(json.RawMessage(nil), aux.Fields...)
	return nil
}

// MarshalJSON re-emits the record, preferring the original field bytes
func (r RawRecord) MarshalJSON() ([]byte, error) {
	fields := r.raw
	if len(fields) == 0 {
		encoded, err := json.Marshal(r.Fields)
		if err != nil {
			return nil, err
		}
		fields = encoded
	}
	return json.Marshal(rawRecordJSON{RecordID: r.RecordID, Fields: fields})
}

// RawFields returns the serialized fields in provider order when known,
// falling back to a sorted-key encoding for records built in code.
func (r RawRecord) RawFields() []byte {
	if len(r.raw) > 0 {
		return r.raw
	}
	if r.Fields == nil {
		return nil
	}
	encoded, err := json.Marshal(r.Fields)
	if err != nil {
		return nil
	}
	return encoded
}
