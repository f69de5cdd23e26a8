package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeCommandSubscribe(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"subscribe","sessionId":"sess-1","prNumbers":[42,7]}`))
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if cmd.Type != CommandSubscribe {
		t.Errorf("Type = %q", cmd.Type)
	}
	if cmd.SessionID != "sess-1" {
		t.Errorf("SessionID = %q", cmd.SessionID)
	}
	if len(cmd.PRNumbers) != 2 || cmd.PRNumbers[0] != 42 || cmd.PRNumbers[1] != 7 {
		t.Errorf("PRNumbers = %v", cmd.PRNumbers)
	}
}

func TestDecodeCommandBareVariants(t *testing.T) {
	for _, raw := range []string{`{"type":"status"}`, `{"type":"shutdown"}`} {
		if _, err := DecodeCommand([]byte(raw)); err != nil {
			t.Errorf("DecodeCommand(%s) = %v, want nil", raw, err)
		}
	}
}

func TestDecodeCommandRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `"not json"`},
		{"garbage", `{{{`},
		{"unknown type", `{"type":"explode"}`},
		{"missing type", `{"sessionId":"s"}`},
		{"empty session", `{"type":"subscribe","sessionId":"","prNumbers":[1]}`},
		{"empty prNumbers", `{"type":"subscribe","sessionId":"s","prNumbers":[]}`},
		{"missing prNumbers", `{"type":"unsubscribe","sessionId":"s"}`},
		{"negative pr", `{"type":"subscribe","sessionId":"s","prNumbers":[-1]}`},
		{"zero pr", `{"type":"subscribe","sessionId":"s","prNumbers":[0]}`},
		{"mixed valid invalid", `{"type":"subscribe","sessionId":"s","prNumbers":[3,-4]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeCommand([]byte(tc.raw)); err == nil {
				t.Errorf("DecodeCommand(%s) succeeded, want error", tc.raw)
			}
		})
	}
}

func TestResponseShapes(t *testing.T) {
	data, err := json.Marshal(Success("Subscribed session sess-1 to PRs: 42"))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"type":"success","message":"Subscribed session sess-1 to PRs: 42"}`; string(data) != want {
		t.Errorf("success = %s, want %s", data, want)
	}

	data, err = json.Marshal(Errorf("daemon is shutting down"))
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"type":"error","error":"daemon is shutting down"}`; string(data) != want {
		t.Errorf("error = %s, want %s", data, want)
	}
}

func TestStatusResponseShape(t *testing.T) {
	status := &DaemonStatus{
		Running:           true,
		PID:               1234,
		Repo:              "owner/repo",
		ConnectedToGitHub: true,
		Subscriptions: []SubscriptionStatus{
			{SessionID: "sess-1", PRNumbers: []int{42}, SubscribedAt: "2026-01-02T03:04:05Z"},
		},
		UptimeSeconds: 57,
	}
	data, err := json.Marshal(StatusResponse(status))
	if err != nil {
		t.Fatal(err)
	}
	for _, fragment := range []string{
		`"type":"status_response"`,
		`"running":true`,
		`"pid":1234`,
		`"repo":"owner/repo"`,
		`"connectedToGitHub":true`,
		`"sessionId":"sess-1"`,
		`"prNumbers":[42]`,
		`"subscribedAt":"2026-01-02T03:04:05Z"`,
		`"uptime":57`,
	} {
		if !strings.Contains(string(data), fragment) {
			t.Errorf("status response missing %s: %s", fragment, data)
		}
	}
}

func TestEmptySubscriptionsMarshalsAsArray(t *testing.T) {
	status := &DaemonStatus{Subscriptions: []SubscriptionStatus{}}
	data, err := json.Marshal(status)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"subscriptions":[]`) {
		t.Errorf("subscriptions should marshal as [], got %s", data)
	}
}
