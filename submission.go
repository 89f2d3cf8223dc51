// Package signdoc generates signed service-agreement PDFs.
//
// A Submission carries what the client entered on the signing form: contact
// details, optional notes and a raster signature. The compose package lays the
// fixed agreement text and the submission out on pages, the render package
// turns the result into PDF bytes, and the submit package delivers them by mail
// and keeps a local record.
//
// Example:
//
//	sub := signdoc.Submission{
//	    FullName:        "Jane Doe",
//	    Email:           "jane@example.com",
//	    Phone:           "555-0100",
//	    SignatureMethod: signdoc.SignatureTyped,
//	    SignatureImage:  png,
//	}
//	doc, err := compose.New().Compose(sub, time.Now())
package signdoc

import (
	"fmt"
	"strings"
)

// SignatureMethod records how the client produced the signature.
type SignatureMethod string

const (
	SignatureDrawn SignatureMethod = "drawn"
	SignatureTyped SignatureMethod = "typed"
)

// ParseSignatureMethod accepts "drawn" or "typed" in any case.
func ParseSignatureMethod(s string) (SignatureMethod, error) {
	switch SignatureMethod(strings.ToLower(strings.TrimSpace(s))) {
	case SignatureDrawn:
		return SignatureDrawn, nil
	case SignatureTyped:
		return SignatureTyped, nil
	}
	return "", fmt.Errorf("%w: unknown signature method %q", ErrInvalidSubmission, s)
}

// Submission is the form data that seeds one document build.
// It is treated as read-only once handed to the composer.
type Submission struct {
	FullName        string          `json:"fullName"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	Role            string          `json:"role,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	SignatureImage  []byte          `json:"signatureImage,omitempty"` // PNG bytes
	SignatureMethod SignatureMethod `json:"signatureMethod"`
}

// HasNotes reports whether the notes field carries any text.
func (s Submission) HasNotes() bool {
	return strings.TrimSpace(s.Notes) != ""
}

// HasSignature reports whether a signature raster is attached.
func (s Submission) HasSignature() bool {
	return len(s.SignatureImage) > 0
}

// CheckRequired verifies the structural presence of the fields every document
// prints. Format validation is the form layer's job and is not repeated here.
func (s Submission) CheckRequired() error {
	var missing []string
	if strings.TrimSpace(s.FullName) == "" {
		missing = append(missing, "fullName")
	}
	if strings.TrimSpace(s.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(s.Phone) == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
