package bus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// flexString decodes a JSON value that the wire format allows to be either a
// string or an integer (§6: `id`, `deploy_id`, `progress` are `string|int`).
// A JSON float is rejected rather than guessed at, per §9's open question.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = ""
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding string value: %w", err)
		}
		*f = flexString(s)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var num json.Number
	if err := dec.Decode(&num); err != nil {
		return fmt.Errorf("decoding numeric value: %w", err)
	}
	if _, err := num.Int64(); err != nil {
		return fmt.Errorf("non-integer numeric value %q is not supported (string|int64 only)", num.String())
	}
	*f = flexString(num.String())
	return nil
}

// rawProgressEvent mirrors the wire shape in §6.
type rawProgressEvent struct {
	ID       *flexString `json:"id"`
	DeployID *flexString `json:"deploy_id"`
	Alert    int         `json:"alert"`
	Message  string      `json:"message"`
	Status   string      `json:"status"`
	Progress *flexString `json:"progress"`
}

// decodeProgressEvent parses body into a ProgressEvent, rejecting any
// numeric-typed field that is not representable as string|int64.
func decodeProgressEvent(body []byte) (ProgressEvent, error) {
	var raw rawProgressEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return ProgressEvent{}, fmt.Errorf("decoding progress event: %w", err)
	}

	return ProgressEvent{
		ID:       flexStringPtr(raw.ID),
		DeployID: flexStringPtr(raw.DeployID),
		Alert:    raw.Alert,
		Message:  raw.Message,
		Status:   raw.Status,
		Progress: flexStringPtr(raw.Progress),
	}, nil
}

func flexStringPtr(f *flexString) *string {
	if f == nil {
		return nil
	}
	s := string(*f)
	return &s
}
