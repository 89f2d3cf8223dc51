// Package submit runs the signing workflow: it prepares the signature,
// composes and renders the agreement, mails it and records it.
//
// Mail is the only collaborator whose failure fails a submission. A record
// that cannot be stored, or a confirmation that cannot be sent, is logged and
// reported as a warning on the Result.
package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lvillar/signdoc"
	"github.com/lvillar/signdoc/compose"
	"github.com/lvillar/signdoc/mail"
	"github.com/lvillar/signdoc/render"
	"github.com/lvillar/signdoc/signature"
	"github.com/lvillar/signdoc/store"
)

// Artifact is a rendered agreement.
type Artifact struct {
	PDF      []byte
	FileName string
	Pages    int
	Overflow int // blocks taller than a page
}

// Result describes a completed submission.
type Result struct {
	Artifact
	// Record is the stored record; its ID is empty when nothing was stored.
	Record   store.Record
	Warnings []string
}

// Service runs submissions. It is safe for concurrent use when its
// collaborators are.
type Service struct {
	composer   *compose.Composer
	preview    *compose.Composer
	dispatcher mail.Dispatcher
	store      store.Store
	render     []render.Option
	confirm    bool
	logger     *log.Logger
}

// New returns a Service that builds documents with c and mails them with d.
func New(c *compose.Composer, d mail.Dispatcher, opts ...Option) *Service {
	s := &Service{composer: c, dispatcher: d}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.preview == nil {
		s.preview = c
	}
	return s
}

// Build prepares the signature of sub and renders the agreement with c.
// Signature decoding failures are reported as a signature StageError.
func Build(c *compose.Composer, sub signdoc.Submission, at time.Time, opts ...render.Option) (Artifact, signdoc.Submission, error) {
	sub, err := signature.Prepare(sub)
	if err != nil {
		return Artifact{}, sub, signdoc.NewStageError(compose.StageSignature, err)
	}
	doc, err := c.Compose(sub, at)
	if err != nil {
		return Artifact{}, sub, err
	}
	pdf, err := render.Serialize(doc, opts...)
	if err != nil {
		return Artifact{}, sub, fmt.Errorf("submit: render: %w", err)
	}
	return Artifact{
		PDF:      pdf,
		FileName: render.SuggestedFileName(sub.FullName, at),
		Pages:    doc.PageCount(),
		Overflow: overflowed(doc),
	}, sub, nil
}

func overflowed(doc *compose.Document) int {
	n := 0
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			if b.Overflow {
				n++
			}
		}
	}
	return n
}

// Submit builds the agreement for sub, mails it and stores a record.
//
// A composition failure returns a *signdoc.StageError. A mail failure
// returns an error wrapping signdoc.ErrDispatch; nothing is retried, and the
// attempt is recorded with status failed when a store is configured.
func (s *Service) Submit(ctx context.Context, sub signdoc.Submission, at time.Time) (*Result, error) {
	art, sub, err := Build(s.composer, sub, at, s.render...)
	if err != nil {
		s.logger.Error("Composition failed", "name", sub.FullName, "err", err)
		return nil, err
	}
	s.logger.Debug("Document built", "pages", art.Pages, "bytes", len(art.PDF))
	if art.Overflow > 0 {
		s.logger.Debug("Blocks taller than a page were placed unsplit", "count", art.Overflow)
	}

	params := mail.Params{Submission: sub, Attachment: render.DataURI(art.PDF), Date: at}
	if err := s.dispatcher.Send(ctx, params); err != nil {
		s.logger.Error("Mail dispatch failed", "email", sub.Email, "err", err)
		s.persist(ctx, sub, art.PDF, at, store.StatusFailed)
		if !signdoc.IsRetryable(err) {
			err = fmt.Errorf("%w: %w", signdoc.ErrDispatch, err)
		}
		return nil, err
	}
	s.logger.Info("Agreement mailed", "email", sub.Email, "file", art.FileName)

	res := &Result{Artifact: art}
	if s.confirm {
		if c, ok := s.dispatcher.(mail.Confirmer); ok {
			if err := c.Confirm(ctx, params); err != nil {
				s.logger.Warn("Confirmation mail failed", "email", sub.Email, "err", err)
				res.Warnings = append(res.Warnings, "confirmation not sent: "+err.Error())
			}
		}
	}

	rec, err := s.persist(ctx, sub, art.PDF, at, store.StatusMailed)
	if err != nil {
		res.Warnings = append(res.Warnings, "record not stored: "+err.Error())
	}
	res.Record = rec
	return res, nil
}

// persist stores a record when a store is configured. Failures are logged
// and returned for the caller to report; they never fail the submission.
func (s *Service) persist(ctx context.Context, sub signdoc.Submission, pdf []byte, at time.Time, status store.Status) (store.Record, error) {
	if s.store == nil {
		return store.Record{}, nil
	}
	rec := store.NewRecord(sub, pdf, at)
	rec.Status = status
	rec, err := s.store.Append(ctx, rec)
	if err != nil {
		s.logger.Warn("Record not stored", "email", sub.Email, "err", err)
		return store.Record{}, err
	}
	s.logger.Debug("Record stored", "id", rec.ID, "status", rec.Status)
	return rec, nil
}

// Download renders the agreement for sub without mailing or storing it.
// When a preview composer is configured, it is used instead, so downloads
// can carry a watermark.
func (s *Service) Download(sub signdoc.Submission, at time.Time) (Artifact, error) {
	art, _, err := Build(s.preview, sub, at, s.render...)
	if err != nil {
		return Artifact{}, err
	}
	s.logger.Debug("Download ready", "file", art.FileName, "pages", art.Pages)
	return art, nil
}
