// Package store keeps a record of every signed agreement.
//
// Store is implemented by an in-process memory store and by Redis, Postgres
// and MongoDB backends. Sealed wraps any of them so the PDF artifact and the
// signature image are encrypted at rest.
//
// Persistence is a secondary concern of the signing flow: callers log store
// errors and carry on; a delivered agreement is never rolled back because it
// could not be recorded.
package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lvillar/signdoc"
)

// Status is the delivery state of a record.
type Status string

const (
	StatusCompleted Status = "completed" // document built
	StatusMailed    Status = "mailed"    // document built and sent
	StatusFailed    Status = "failed"    // dispatch failed
)

// DisplayDateFormat is the layout of Record.DisplayDate.
const DisplayDateFormat = "January 2, 2006"

// Record is one persisted signing.
type Record struct {
	ID              string                  `json:"id"`
	FullName        string                  `json:"fullName"`
	Email           string                  `json:"email"`
	Phone           string                  `json:"phone"`
	Role            string                  `json:"role,omitempty"`
	Notes           string                  `json:"notes,omitempty"`
	SignatureMethod signdoc.SignatureMethod `json:"signatureMethod"`
	SignatureImage  []byte                  `json:"signatureImage,omitempty"`
	Artifact        []byte                  `json:"pdfBase64,omitempty"` // the delivered PDF
	Timestamp       time.Time               `json:"timestamp"`
	DisplayDate     string                  `json:"dateCreated"`
	Status          Status                  `json:"status"`
}

// NewID returns a fresh record id.
func NewID() string {
	return "agr_" + uuid.NewString()
}

// NewRecord builds a completed record for sub and its artifact.
func NewRecord(sub signdoc.Submission, artifact []byte, at time.Time) Record {
	return Record{
		ID:              NewID(),
		FullName:        sub.FullName,
		Email:           sub.Email,
		Phone:           sub.Phone,
		Role:            sub.Role,
		Notes:           sub.Notes,
		SignatureMethod: sub.SignatureMethod,
		SignatureImage:  sub.SignatureImage,
		Artifact:        artifact,
		Timestamp:       at.UTC(),
		DisplayDate:     at.Format(DisplayDateFormat),
		Status:          StatusCompleted,
	}
}

// Summary returns r without its binary fields, for listings.
func (r Record) Summary() Record {
	r.SignatureImage = nil
	r.Artifact = nil
	return r
}

// Store persists records. Lookups of a missing id return an error wrapping
// signdoc.ErrNotFound; backend failures wrap signdoc.ErrStore.
type Store interface {
	// Append stores r, assigning an id if it has none, and returns the
	// stored record.
	Append(ctx context.Context, r Record) (Record, error)
	// All returns every record, oldest first.
	All(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	// ByEmail returns the records for an email address, compared
	// case-insensitively, oldest first.
	ByEmail(ctx context.Context, email string) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}

// Stats summarizes a store's contents.
type Stats struct {
	Total        int            `json:"totalContracts"`
	Oldest       time.Time      `json:"oldestContract,omitempty"`
	Newest       time.Time      `json:"newestContract,omitempty"`
	UniqueEmails int            `json:"uniqueEmails"`
	ByStatus     map[Status]int `json:"byStatus"`
}

// StatsOf computes Stats over records.
func StatsOf(records []Record) Stats {
	st := Stats{Total: len(records), ByStatus: map[Status]int{}}
	emails := map[string]bool{}
	for i, r := range records {
		if i == 0 || r.Timestamp.Before(st.Oldest) {
			st.Oldest = r.Timestamp
		}
		if i == 0 || r.Timestamp.After(st.Newest) {
			st.Newest = r.Timestamp
		}
		emails[EmailKey(r.Email)] = true
		st.ByStatus[r.Status]++
	}
	st.UniqueEmails = len(emails)
	return st
}

// StatsFor loads every record from s and summarizes them.
func StatsFor(ctx context.Context, s Store) (Stats, error) {
	records, err := s.All(ctx)
	if err != nil {
		return Stats{}, err
	}
	return StatsOf(records), nil
}

// EmailKey normalizes an email address for lookups.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// sortRecords orders records oldest first, then by id.
func sortRecords(rs []Record) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].Timestamp.Equal(rs[j].Timestamp) {
			return rs[i].Timestamp.Before(rs[j].Timestamp)
		}
		return rs[i].ID < rs[j].ID
	})
}

func (r Record) clone() Record {
	r.SignatureImage = bytes.Clone(r.SignatureImage)
	r.Artifact = bytes.Clone(r.Artifact)
	return r
}

func prepare(r Record) Record {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.Status == "" {
		r.Status = StatusCompleted
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}
	// millisecond precision is what every backend can keep
	r.Timestamp = r.Timestamp.UTC().Truncate(time.Millisecond)
	if r.DisplayDate == "" {
		r.DisplayDate = r.Timestamp.Format(DisplayDateFormat)
	}
	return r
}

func notFound(id string) error {
	return fmt.Errorf("store: %w: %s", signdoc.ErrNotFound, id)
}

func backendErr(backend, op string, err error) error {
	return fmt.Errorf("store: %s %s: %w: %w", backend, op, signdoc.ErrStore, err)
}
