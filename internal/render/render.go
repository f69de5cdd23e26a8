// Package render formats webhook events as short human-readable lines for
// delivery into agent sessions.
package render

import (
	"fmt"
	"strings"

	"github.com/hubwatch/hubwatch/internal/stream"
)

const excerptLimit = 120

// Message formats one routed event as a single line. The line always opens
// with the repository and PR so a session juggling several watches can tell
// deliveries apart.
func Message(repo string, prNumber int, event stream.Event) string {
	prefix := fmt.Sprintf("[%s#%d]", repo, prNumber)
	payload, _ := event.Payload.(map[string]any)

	var detail string
	switch event.Type {
	case "pull_request":
		detail = pullRequestDetail(event.Action, payload)
	case "pull_request_review":
		detail = reviewDetail(event.Action, payload)
	case "pull_request_review_comment":
		detail = commentDetail("review comment", payload)
	case "issue_comment":
		detail = commentDetail("comment", payload)
	case "check_run":
		detail = checkRunDetail(event.Action, payload)
	default:
		detail = event.Type
		if event.Action != "" {
			detail += " " + event.Action
		}
	}

	return prefix + " " + detail
}

func pullRequestDetail(action string, payload map[string]any) string {
	pr := object(payload, "pull_request")
	title := str(pr, "title")
	author := str(object(pr, "user"), "login")

	verb := action
	if action == "closed" && boolean(pr, "merged") {
		verb = "merged"
	}

	detail := "pull request " + verb
	if title != "" {
		detail += fmt.Sprintf(": %q", title)
	}
	if author != "" {
		detail += " by " + author
	}
	return detail
}

func reviewDetail(action string, payload map[string]any) string {
	review := object(payload, "review")
	state := strings.ReplaceAll(str(review, "state"), "_", " ")
	reviewer := str(object(review, "user"), "login")

	if state == "" {
		state = action
	}
	detail := "review " + state
	if reviewer != "" {
		detail += " by " + reviewer
	}
	if body := excerpt(str(review, "body")); body != "" {
		detail += ": " + body
	}
	return detail
}

func commentDetail(kind string, payload map[string]any) string {
	comment := object(payload, "comment")
	author := str(object(comment, "user"), "login")

	detail := kind
	if author != "" {
		detail += " from " + author
	}
	if body := excerpt(str(comment, "body")); body != "" {
		detail += ": " + body
	}
	return detail
}

func checkRunDetail(action string, payload map[string]any) string {
	run := object(payload, "check_run")
	name := str(run, "name")
	status := str(run, "status")
	conclusion := str(run, "conclusion")

	detail := "check"
	if name != "" {
		detail += " " + name
	}
	switch {
	case conclusion != "":
		detail += " " + conclusion
	case status != "":
		detail += " " + status
	default:
		detail += " " + action
	}
	return detail
}

// excerpt collapses a comment body onto one line and truncates it.
func excerpt(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > excerptLimit {
		body = body[:excerptLimit-3] + "..."
	}
	return body
}

func object(m map[string]any, key string) map[string]any {
	obj, _ := m[key].(map[string]any)
	return obj
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolean(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}
