package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lvillar/signdoc"
)

// DefaultEndpoint is the EmailJS send API.
const DefaultEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJS sends mail through the EmailJS REST API. Each call renders one
// template configured in the EmailJS dashboard.
type EmailJS struct {
	Endpoint          string
	ServiceID         string
	TemplateID        string
	ConfirmTemplateID string // empty disables Confirm
	PublicKey         string
	PrivateKey        string // sent as accessToken when set
	FromName          string
	HTTP              *http.Client
}

var (
	_ Dispatcher = (*EmailJS)(nil)
	_ Confirmer  = (*EmailJS)(nil)
)

// Option configures an EmailJS client.
type Option func(*EmailJS)

// WithEndpoint overrides DefaultEndpoint.
func WithEndpoint(url string) Option {
	return func(c *EmailJS) { c.Endpoint = url }
}

// WithPrivateKey sets the account access token.
func WithPrivateKey(key string) Option {
	return func(c *EmailJS) { c.PrivateKey = key }
}

// WithConfirmTemplate enables confirmation mail with the given template.
func WithConfirmTemplate(id string) Option {
	return func(c *EmailJS) { c.ConfirmTemplateID = id }
}

// WithFromName sets the from_name parameter.
func WithFromName(name string) Option {
	return func(c *EmailJS) { c.FromName = name }
}

// WithHTTPClient replaces the default client, which times out after 30s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *EmailJS) { c.HTTP = hc }
}

// NewEmailJS returns a client for one service and contract template.
func NewEmailJS(serviceID, templateID, publicKey string, opts ...Option) *EmailJS {
	c := &EmailJS{
		Endpoint:   DefaultEndpoint,
		ServiceID:  serviceID,
		TemplateID: templateID,
		PublicKey:  publicKey,
		FromName:   DefaultFromName,
		HTTP:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	AccessToken    string            `json:"accessToken,omitempty"`
	TemplateParams map[string]string `json:"template_params"`
}

// ContractParams returns the template parameters of the contract mail.
func (c *EmailJS) ContractParams(p Params) map[string]string {
	sub := p.Submission
	role := strings.TrimSpace(sub.Role)
	if role == "" {
		role = "N/A"
	}
	notes := strings.TrimSpace(sub.Notes)
	if notes == "" {
		notes = "No additional notes provided"
	}
	params := c.ConfirmParams(p)
	params["client_email"] = sub.Email
	params["client_phone"] = sub.Phone
	params["client_role"] = role
	params["notes"] = notes
	params["pdf_attachment"] = p.Attachment
	params["signature"] = SignatureDataURL(sub)
	return params
}

// ConfirmParams returns the template parameters of the confirmation mail.
func (c *EmailJS) ConfirmParams(p Params) map[string]string {
	from := c.FromName
	if from == "" {
		from = DefaultFromName
	}
	return map[string]string{
		"to_email":    p.Submission.Email,
		"from_name":   from,
		"to_name":     p.Submission.FullName,
		"client_name": p.Submission.FullName,
		"date":        p.Date.Format(DateFormat),
	}
}

// Send mails the contract. Any failure wraps signdoc.ErrDispatch.
func (c *EmailJS) Send(ctx context.Context, p Params) error {
	if p.Attachment == "" {
		return fmt.Errorf("mail: %w: no attachment", signdoc.ErrDispatch)
	}
	return c.send(ctx, c.TemplateID, c.ContractParams(p))
}

// Confirm mails the confirmation. It is a no-op without a confirmation
// template.
func (c *EmailJS) Confirm(ctx context.Context, p Params) error {
	if c.ConfirmTemplateID == "" {
		return nil
	}
	return c.send(ctx, c.ConfirmTemplateID, c.ConfirmParams(p))
}

func (c *EmailJS) send(ctx context.Context, templateID string, params map[string]string) error {
	switch {
	case c.ServiceID == "":
		return fmt.Errorf("mail: %w: emailjs service id not configured", signdoc.ErrDispatch)
	case templateID == "":
		return fmt.Errorf("mail: %w: emailjs template id not configured", signdoc.ErrDispatch)
	case c.PublicKey == "":
		return fmt.Errorf("mail: %w: emailjs public key not configured", signdoc.ErrDispatch)
	}

	body, err := json.Marshal(sendRequest{
		ServiceID:      c.ServiceID,
		TemplateID:     templateID,
		UserID:         c.PublicKey,
		AccessToken:    c.PrivateKey,
		TemplateParams: params,
	})
	if err != nil {
		return fmt.Errorf("mail: %w: %w", signdoc.ErrDispatch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mail: %w: %w", signdoc.ErrDispatch, err)
	}
	req.Header.Set("Content-Type", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("mail: %w: %w", signdoc.ErrDispatch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// StatusError is a non-2xx answer from the mail API.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mail: %v: emailjs returned %d", signdoc.ErrDispatch, e.Code)
	}
	return fmt.Sprintf("mail: %v: emailjs returned %d: %s", signdoc.ErrDispatch, e.Code, e.Message)
}

// Is reports whether target is signdoc.ErrDispatch.
func (e *StatusError) Is(target error) bool {
	return target == signdoc.ErrDispatch
}
