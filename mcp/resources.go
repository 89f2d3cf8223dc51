package mcp

import (
	"context"
	"encoding/json"

	"github.com/lvillar/signdoc/agreement"
	"github.com/lvillar/signdoc/store"
)

// RegisterDefaultResources adds the agreement and record resources to the
// server. records://stats is only registered when b has a store.
func RegisterDefaultResources(s *Server, b *Backend) {
	s.AddResource(Resource{
		URI:         "agreement://text",
		Name:        "Agreement Text",
		Description: "The agreement the client signs, as plain text.",
		MIMEType:    "text/plain",
		Handler:     b.handleAgreementText,
	})

	s.AddResource(Resource{
		URI:         "agreement://markup",
		Name:        "Agreement Markup",
		Description: "The agreement the client signs, as HTML for display.",
		MIMEType:    "text/html",
		Handler:     b.handleAgreementMarkup,
	})

	if b.Store != nil {
		s.AddResource(Resource{
			URI:         "records://stats",
			Name:        "Record Statistics",
			Description: "Number of signed agreements, oldest and newest signing time, and unique client emails.",
			MIMEType:    "application/json",
			Handler:     b.handleStatsResource,
		})
	}
}

func (b *Backend) agreement() *agreement.Agreement {
	if b.Agreement != nil {
		return b.Agreement
	}
	return agreement.Default()
}

func (b *Backend) handleAgreementText(_ context.Context, uri string) ([]ResourceContent, error) {
	return []ResourceContent{{
		URI:      uri,
		MIMEType: "text/plain",
		Text:     b.agreement().PlainText(),
	}}, nil
}

func (b *Backend) handleAgreementMarkup(_ context.Context, uri string) ([]ResourceContent, error) {
	return []ResourceContent{{
		URI:      uri,
		MIMEType: "text/html",
		Text:     b.agreement().DisplayMarkup(),
	}}, nil
}

func (b *Backend) handleStatsResource(ctx context.Context, uri string) ([]ResourceContent, error) {
	st, err := b.records()
	if err != nil {
		return nil, err
	}
	stats, err := store.StatsFor(ctx, st)
	if err != nil {
		return nil, err
	}

	jsonBytes, _ := json.MarshalIndent(stats, "", "  ")
	return []ResourceContent{{
		URI:      uri,
		MIMEType: "application/json",
		Text:     string(jsonBytes),
	}}, nil
}
