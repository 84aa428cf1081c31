package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/harunnryd/renga/internal/config"
	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/provider"
	"github.com/harunnryd/renga/internal/tool"
)

const ProviderID = "mail"

// sendFunc matches smtp.SendMail; swapped in tests.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Adapter sends mail over SMTP with the configured account. Sending is not
// idempotent, so a failed send is never retried.
type Adapter struct {
	host     string
	port     int
	address  string
	password string
	send     sendFunc
}

func New(cfg config.MailConfig) (*Adapter, error) {
	if strings.TrimSpace(cfg.Address) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, rengaErrors.Configuration("mail address or password is missing")
	}

	host := cfg.SMTPHost
	if host == "" {
		host = config.DefaultMailSMTPHost
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = config.DefaultMailSMTPPort
	}

	return &Adapter{
		host:     host,
		port:     port,
		address:  cfg.Address,
		password: cfg.Password,
		send:     smtp.SendMail,
	}, nil
}

func (a *Adapter) ID() string {
	return ProviderID
}

func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) Descriptors(ctx context.Context) ([]tool.Descriptor, error) {
	return []tool.Descriptor{
		{
			Provider:    ProviderID,
			Name:        "send_email",
			Description: "Send a plain-text email from the configured account",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"to": map[string]interface{}{
						"type":        "string",
						"description": "Recipient email address",
					},
					"subject": map[string]interface{}{
						"type":        "string",
						"description": "Subject line",
					},
					"body": map[string]interface{}{
						"type":        "string",
						"description": "Plain-text message body",
					},
				},
				"required": []string{"to", "subject", "body"},
			},
		},
	}, nil
}

func (a *Adapter) Execute(ctx context.Context, operation string, args json.RawMessage) tool.Result {
	return provider.Protect(func() (json.RawMessage, error) {
		switch operation {
		case "send_email":
			return a.sendEmail(ctx, args)
		default:
			return nil, fmt.Errorf("operation %s: %w", operation, rengaErrors.ErrUnknownTool)
		}
	})
}

type sendEmailArgs struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (a *Adapter) sendEmail(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in sendEmailArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, rengaErrors.InvalidInput("send_email: malformed arguments")
	}

	to := strings.TrimSpace(in.To)
	if to == "" || !strings.Contains(to, "@") {
		return nil, rengaErrors.InvalidInput("send_email: to must be an email address")
	}
	if strings.TrimSpace(in.Subject) == "" {
		return nil, rengaErrors.InvalidInput("send_email: subject is required")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := buildMessage(a.address, to, in.Subject, in.Body)
	auth := smtp.PlainAuth("", a.address, a.password, a.host)
	addr := fmt.Sprintf("%s:%d", a.host, a.port)

	if err := a.send(addr, auth, a.address, []string{to}, msg); err != nil {
		return nil, rengaErrors.MapError(err)
	}

	return json.Marshal(map[string]string{
		"status":  "sent",
		"to":      to,
		"subject": in.Subject,
	})
}

func buildMessage(from, to, subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}

// sanitizeHeader strips CR/LF so tool arguments cannot inject extra headers.
func sanitizeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
