package dto

import "encoding/json"

// ReconnectPayload is the asynq task body for a reconnect notification. It is
// enqueued when a provider refuses to refresh a connection's tokens.
type ReconnectPayload struct {
	UserID   string `json:"user_id"`
	Provider string `json:"provider"`
	Email    string `json:"email"`
}

func (p *ReconnectPayload) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

func UnmarshalReconnectPayload(data []byte) (*ReconnectPayload, error) {
	var p ReconnectPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
