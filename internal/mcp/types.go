package mcp

// SubscribePRInput is the input for the subscribe_pr MCP tool.
type SubscribePRInput struct {
	PRNumbers []int  `json:"pr_numbers" jsonschema:"Pull request numbers to watch"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Target session. Defaults to this agent's session"`
}

// SubscribePROutput is the output for the subscribe_pr MCP tool.
type SubscribePROutput struct {
	Status    string `json:"status" jsonschema:"Result status: subscribed"`
	SessionID string `json:"session_id" jsonschema:"Session the subscription was created for"`
	Message   string `json:"message" jsonschema:"Daemon confirmation message"`
}

// UnsubscribePRInput is the input for the unsubscribe_pr MCP tool.
type UnsubscribePRInput struct {
	PRNumbers []int  `json:"pr_numbers" jsonschema:"Pull request numbers to stop watching"`
	SessionID string `json:"session_id,omitempty" jsonschema:"Target session. Defaults to this agent's session"`
}

// UnsubscribePROutput is the output for the unsubscribe_pr MCP tool.
type UnsubscribePROutput struct {
	Status    string `json:"status" jsonschema:"Result status: unsubscribed"`
	SessionID string `json:"session_id" jsonschema:"Session the subscription was removed for"`
	Message   string `json:"message" jsonschema:"Daemon confirmation message"`
}

// WatchStatusInput is the input for the watch_status MCP tool.
type WatchStatusInput struct{}

// SubscriptionInfo is one session's subscriptions in watch_status output.
type SubscriptionInfo struct {
	SessionID    string `json:"session_id"`
	PRNumbers    []int  `json:"pr_numbers"`
	SubscribedAt string `json:"subscribed_at"`
}

// WatchStatusOutput is the output for the watch_status MCP tool.
type WatchStatusOutput struct {
	Running           bool               `json:"running" jsonschema:"Whether the daemon is running"`
	PID               int                `json:"pid,omitempty" jsonschema:"Daemon process id"`
	Repo              string             `json:"repo,omitempty" jsonschema:"Repository the daemon serves"`
	ConnectedToGitHub bool               `json:"connected_to_github" jsonschema:"Whether the event stream is connected"`
	UptimeSeconds     int64              `json:"uptime_seconds,omitempty" jsonschema:"Daemon uptime in seconds"`
	EventsRouted      int64              `json:"events_routed" jsonschema:"Events delivered since startup"`
	Subscriptions     []SubscriptionInfo `json:"subscriptions" jsonschema:"Active subscriptions"`
}
