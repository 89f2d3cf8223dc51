// Package mail delivers signed agreements.
//
// A Dispatcher sends the contract mail carrying the PDF. Dispatch failures
// wrap signdoc.ErrDispatch and are never retried here; the caller decides
// whether to submit again.
package mail

import (
	"context"
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/lvillar/signdoc"
)

// DefaultFromName is the sender name used when none is configured.
const DefaultFromName = "Professional Contract Service"

// DateFormat is the layout of the date template parameter.
const DateFormat = "1/2/2006"

// Params is one contract mail.
type Params struct {
	Submission signdoc.Submission
	// Attachment is the PDF as a data URI.
	Attachment string
	Date       time.Time
}

// Dispatcher sends contract mail.
type Dispatcher interface {
	Send(ctx context.Context, p Params) error
}

// Confirmer is implemented by dispatchers that can also send the client a
// short confirmation without the attachment.
type Confirmer interface {
	Confirm(ctx context.Context, p Params) error
}

// SignatureDataURL returns the signature image of sub as a data URL, or ""
// when there is none.
func SignatureDataURL(sub signdoc.Submission) string {
	if !sub.HasSignature() {
		return ""
	}
	return "data:" + http.DetectContentType(sub.SignatureImage) + ";base64," +
		base64.StdEncoding.EncodeToString(sub.SignatureImage)
}

// Outbox is a Dispatcher that keeps every message in memory instead of
// sending it. The zero value is ready to use.
type Outbox struct {
	mu        sync.Mutex
	sent      []Params
	confirmed []Params
}

var (
	_ Dispatcher = (*Outbox)(nil)
	_ Confirmer  = (*Outbox)(nil)
)

func (o *Outbox) Send(_ context.Context, p Params) error {
	o.mu.Lock()
	o.sent = append(o.sent, p)
	o.mu.Unlock()
	return nil
}

func (o *Outbox) Confirm(_ context.Context, p Params) error {
	o.mu.Lock()
	o.confirmed = append(o.confirmed, p)
	o.mu.Unlock()
	return nil
}

// Sent returns the contract mails sent so far.
func (o *Outbox) Sent() []Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Params(nil), o.sent...)
}

// Confirmed returns the confirmations sent so far.
func (o *Outbox) Confirmed() []Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Params(nil), o.confirmed...)
}
