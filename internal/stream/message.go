package stream

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Event is one parsed webhook delivery, consumed once by the router.
type Event struct {
	// Type is the webhook event name, e.g. "pull_request". "unknown" when the
	// delivery carried no event header.
	Type string
	// Action is the payload's action field, when present.
	Action string
	// DeliveryID identifies the delivery for logging and the event log.
	DeliveryID string
	// Payload is the decoded body: a JSON value, or the raw string when the
	// body could not be decoded.
	Payload any
	// Headers are the delivery headers, normalized to single string values.
	Headers map[string]string
}

// wireMessage is one inbound frame from the forwarding endpoint. Header
// values arrive as either a string or an array of strings depending on the
// provider's mood.
type wireMessage struct {
	Header     map[string]any  `json:"header"`
	Body       json.RawMessage `json:"body"`
	DeliveryID string          `json:"delivery_id"`
	RequestID  string          `json:"request_id"`
}

// ack is the fixed acknowledgment written back after every inbound message.
// Without it the remote stops forwarding after the first delivery; this is
// observed behavior of the endpoint, not documented anywhere.
type ack struct {
	Status int               `json:"Status"`
	Header map[string]string `json:"Header"`
	Body   string            `json:"Body"`
}

func newAck() ack {
	return ack{
		Status: 200,
		Header: map[string]string{},
		Body:   base64.StdEncoding.EncodeToString([]byte("OK")),
	}
}

// parseMessage decodes one inbound frame into an Event. The caller must send
// the acknowledgment whether or not parsing succeeded.
func parseMessage(data []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Event{}, fmt.Errorf("malformed stream message: %w", err)
	}

	headers := normalizeHeaders(msg.Header)

	eventType := headerValue(headers, "x-github-event")
	if eventType == "" {
		eventType = "unknown"
	}
	deliveryID := headerValue(headers, "x-github-delivery")
	if deliveryID == "" {
		deliveryID = msg.DeliveryID
	}

	payload := decodePayload(msg.Body)

	return Event{
		Type:       eventType,
		Action:     payloadAction(payload),
		DeliveryID: deliveryID,
		Payload:    payload,
		Headers:    headers,
	}, nil
}

// normalizeHeaders flattens string-or-array header values to single strings,
// taking the first element of arrays.
func normalizeHeaders(raw map[string]any) map[string]string {
	headers := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			headers[key] = v
		case []any:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					headers[key] = s
				}
			}
		}
	}
	return headers
}

// headerValue performs a case-insensitive header lookup.
func headerValue(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

// decodePayload interprets the opaque body. The provider encodes payload
// bytes inconsistently, so the body is tried as JSON, then as base64-encoded
// JSON, and finally kept as a raw string.
func decodePayload(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}

	s, ok := value.(string)
	if !ok {
		return value
	}

	// The body was a JSON string: it may itself contain JSON text, or
	// base64-encoded JSON bytes.
	var inner any
	if err := json.Unmarshal([]byte(s), &inner); err == nil {
		return inner
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		if err := json.Unmarshal(decoded, &inner); err == nil {
			return inner
		}
	}
	return s
}

func payloadAction(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	action, _ := obj["action"].(string)
	return action
}
