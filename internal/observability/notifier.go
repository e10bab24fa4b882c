package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/valter-silva-au/mpt/internal/core"
)

// Notifier sends alert summaries to an external channel.
type Notifier interface {
	Notify(ctx context.Context, alerts []Alert) error
}

// WebhookNotifier posts Slack-compatible block messages to a webhook. It
// delivers both alert summaries and assignment notices.
type WebhookNotifier struct {
	webhookURL      string
	frontendBaseURL string
	client          *http.Client
}

// NewWebhookNotifier returns a notifier posting to webhookURL. Task links
// in assignment notices are built from frontendBaseURL.
func NewWebhookNotifier(webhookURL, frontendBaseURL string) *WebhookNotifier {
	return &WebhookNotifier{
		webhookURL:      webhookURL,
		frontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
		client:          &http.Client{Timeout: 10 * time.Second},
	}
}

var _ core.AssignmentNotifier = (*WebhookNotifier)(nil)

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify posts the alerts. An empty slice sends nothing.
func (n *WebhookNotifier) Notify(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return n.post(ctx, alertMessage(alerts))
}

// NotifyAssignment posts a notice that a task was assigned.
func (n *WebhookNotifier) NotifyAssignment(ctx context.Context, notice core.AssignmentNotice) error {
	return n.post(ctx, n.assignmentMessage(notice))
}

func (n *WebhookNotifier) post(ctx context.Context, msg slackMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshalling webhook message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// ProjectLink returns the frontend URL of a project, or the dashboard
// when the project is unknown.
func (n *WebhookNotifier) ProjectLink(projectID int64) string {
	if projectID <= 0 {
		return n.frontendBaseURL + "/dashboard"
	}
	return fmt.Sprintf("%s/projects/%d", n.frontendBaseURL, projectID)
}

func (n *WebhookNotifier) assignmentMessage(notice core.AssignmentNotice) slackMessage {
	title := notice.TaskName
	if strings.TrimSpace(title) == "" {
		title = "-"
	}
	assigner := "a project member"
	if notice.AssignerID != nil {
		assigner = fmt.Sprintf("user %d", *notice.AssignerID)
	}
	summary := fmt.Sprintf("[mpt] New assignment: task #%d", notice.TaskID)
	text := fmt.Sprintf("User %d was assigned to task *#%d* _%s_\nAssigned by: %s\nLink: %s",
		notice.AssigneeID, notice.TaskID, title, assigner, n.ProjectLink(notice.ProjectID))

	return slackMessage{
		Text: summary,
		Blocks: []slackBlock{
			{Type: "header", Text: &slackText{Type: "plain_text", Text: summary}},
			{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}},
		},
	}
}

func alertMessage(alerts []Alert) slackMessage {
	blocks := []slackBlock{
		{Type: "header", Text: &slackText{Type: "plain_text", Text: "mpt Alert Summary"}},
	}
	for i, alert := range alerts {
		if i > 0 {
			blocks = append(blocks, slackBlock{Type: "divider"})
		}
		text := fmt.Sprintf("%s *[%s]* %s\n_%s_",
			severityEmoji(alert.Severity),
			strings.ToUpper(string(alert.Severity)),
			alert.Message,
			alert.TriggeredAt.Format("2006-01-02 15:04 UTC"),
		)
		blocks = append(blocks, slackBlock{Type: "section", Text: &slackText{Type: "mrkdwn", Text: text}})
	}
	return slackMessage{Text: fmt.Sprintf("%d mpt alerts", len(alerts)), Blocks: blocks}
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return "\U0001f534"
	case SeverityMedium:
		return "\U0001f7e1"
	case SeverityLow:
		return "\U0001f535"
	default:
		return "❓"
	}
}
