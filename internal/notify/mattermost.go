// Package notify posts gate decisions to a Mattermost incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mmodel "github.com/mattermost/mattermost-server/v5/model"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/srkgupta/dependency-track-gate/internal/gate"
	"github.com/srkgupta/dependency-track-gate/internal/model"
)

const (
	botUsername = "Dependency-Track"
	// findings listed in a post before the rest is summarised
	maxListedFindings = 10
	colorPassed       = "#50F100" // green

	// DefaultTimeout bounds a webhook post.
	DefaultTimeout = 10 * time.Second
)

type Mattermost struct {
	webhookURL string
	dtrackURL  string
	httpClient *http.Client
	logger     *zap.SugaredLogger

	// Timeout bounds each post, whatever client is used. Zero disables it.
	Timeout time.Duration
}

// NewMattermost returns a notifier posting to webhookURL. dtrackURL is the
// frontend used for project links.
func NewMattermost(webhookURL, dtrackURL string, httpClient *http.Client, logger *zap.SugaredLogger) *Mattermost {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}
	return &Mattermost{
		webhookURL: webhookURL,
		dtrackURL:  strings.TrimRight(dtrackURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		Timeout:    DefaultTimeout,
	}
}

// ToPost renders a gate report as a webhook payload.
func (m *Mattermost) ToPost(project *model.Project, report *gate.Report) *mmodel.IncomingWebhookRequest {
	title := "Security gate passed"
	if !report.Passed {
		title = "Security gate failed"
	}
	if project != nil {
		title += fmt.Sprintf(" for %s %s", project.Name, project.Version)
	}

	attachment := &mmodel.SlackAttachment{
		Title: title,
		Text:  report.Summary(),
		Color: colorOf(report),
	}

	fields := []*mmodel.SlackAttachmentField{}
	if project != nil {
		attachment.TitleLink = fmt.Sprintf("%s/projects/%s", m.dtrackURL, project.Id)
		fields = append(fields, &mmodel.SlackAttachmentField{
			Title: "Project",
			Value: project.ToMarkdown(m.dtrackURL),
			Short: false,
		})
	}

	for _, s := range model.GatedSeverities {
		fields = append(fields, &mmodel.SlackAttachmentField{
			Title: string(s[:1]) + strings.ToLower(string(s[1:])),
			Value: fmt.Sprint(report.Counts[s]),
			Short: true,
		})
	}

	if len(report.EffectiveFindings) > 0 {
		var b strings.Builder
		for i, f := range report.EffectiveFindings {
			if i == maxListedFindings {
				fmt.Fprintf(&b, "and %d more\n", len(report.EffectiveFindings)-maxListedFindings)
				break
			}
			fmt.Fprintf(&b, "%s %s in `%s`\n", f.Vulnerability.Severity, f.Vulnerability.ToMarkdown(), f.Component.PackageUrl)
		}
		fields = append(fields, &mmodel.SlackAttachmentField{
			Title: "Active Findings",
			Value: b.String(),
			Short: false,
		})
	}

	if n := len(report.UnnecessarySuppressions); n > 0 {
		ids := make([]string, 0, n)
		for _, rule := range report.UnnecessarySuppressions {
			ids = append(ids, rule.Identifier())
		}
		fields = append(fields, &mmodel.SlackAttachmentField{
			Title: "Unnecessary Suppressions",
			Value: strings.Join(ids, "\n"),
			Short: false,
		})
	}
	attachment.Fields = fields

	return &mmodel.IncomingWebhookRequest{
		Username:    botUsername,
		Attachments: []*mmodel.SlackAttachment{attachment},
	}
}

// colorOf picks the color of the most severe effective finding.
func colorOf(report *gate.Report) string {
	if report.Passed && len(report.EffectiveFindings) == 0 {
		return colorPassed
	}
	worst := model.SeverityUnassigned
	for _, f := range report.EffectiveFindings {
		if f.Vulnerability.Severity.Rank() > worst.Rank() {
			worst = f.Vulnerability.Severity
		}
	}
	return worst.Color()
}

// NotifyGate posts the decision. Without a webhook URL it does nothing.
func (m *Mattermost) NotifyGate(ctx context.Context, project *model.Project, report *gate.Report) error {
	if m.webhookURL == "" {
		return nil
	}

	b, err := json.Marshal(m.ToPost(project, report))
	if err != nil {
		return errors.Wrap(err, "json.Marshal error while building the webhook post")
	}

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.webhookURL, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "bad webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	m.logger.Debugw("Posting gate decision to Mattermost", "passed", report.Passed)
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "connection problem while posting to Mattermost")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("non-ok %d status code from Mattermost webhook: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
