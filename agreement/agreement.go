// Package agreement holds the fixed agreement text that every document carries.
//
// The text is compiled in as a title, an intro and an ordered list of titled
// sections whose content uses a small HTML subset (<br>, <strong>, <em>, <ul>,
// <ol>, <li>, <p>). Callers read it three ways: as sections, as plain text for
// mail bodies and logs, and as display markup for rich clients.
package agreement

import (
	"html"
	"strings"
)

// Section is one numbered clause of the agreement.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"` // markup
}

// Agreement is an immutable agreement text.
type Agreement struct {
	title    string
	intro    string
	sections []Section
}

// New creates an Agreement from its parts. The sections slice is copied.
func New(title, intro string, sections []Section) *Agreement {
	return &Agreement{
		title:    title,
		intro:    intro,
		sections: append([]Section(nil), sections...),
	}
}

// Title returns the agreement title.
func (a *Agreement) Title() string { return a.title }

// Intro returns the intro markup.
func (a *Agreement) Intro() string { return a.intro }

// Sections returns the sections in document order. The result is a copy.
func (a *Agreement) Sections() []Section {
	return append([]Section(nil), a.sections...)
}

// PlainText returns the whole agreement with markup stripped: the title, the
// intro, then each section title followed by its content. List items are
// prefixed with a bullet, and paragraphs are separated by blank lines.
func (a *Agreement) PlainText() string {
	var b strings.Builder
	b.WriteString(a.title)
	b.WriteString("\n\n")
	writeBlocks(&b, Blocks(a.intro))
	b.WriteString("\n")
	for _, s := range a.sections {
		b.WriteString(s.Title)
		b.WriteString("\n")
		writeBlocks(&b, Blocks(s.Content))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeBlocks(b *strings.Builder, blocks []TextBlock) {
	for _, blk := range blocks {
		if blk.Marker != "" {
			b.WriteString(blk.Marker)
			b.WriteString(" ")
		}
		b.WriteString(blk.Text)
		b.WriteString("\n")
	}
}

// DisplayMarkup returns the agreement as an HTML fragment for rich display.
func (a *Agreement) DisplayMarkup() string {
	var b strings.Builder
	b.WriteString(`<h4 class="contract-title">`)
	b.WriteString(html.EscapeString(a.title))
	b.WriteString("</h4>\n")
	b.WriteString(`<p class="contract-intro">`)
	b.WriteString(a.intro)
	b.WriteString("</p>\n")
	for _, s := range a.sections {
		b.WriteString(`<div class="contract-section">` + "\n")
		b.WriteString(`<h5 class="section-title">`)
		b.WriteString(html.EscapeString(s.Title))
		b.WriteString("</h5>\n")
		b.WriteString(`<div class="section-content">`)
		b.WriteString(s.Content)
		b.WriteString("</div>\n</div>\n")
	}
	return b.String()
}

// Default returns the compiled-in web development agreement.
func Default() *Agreement {
	return defaultAgreement
}

var defaultAgreement = New(
	"WEB DEVELOPMENT & CODE ASSIGNMENT AGREEMENT",
	`This Agreement is entered into as of the date of electronic signature ("Effective Date"), by and between:<br><br>`+
		`<strong>Developer:</strong> Leonard J. Lee, d/b/a Rapid Web Development (hereinafter referred to as "Developer"), `+
		`with primary email contact: agentlee@rapidwebdevelop.com and business phone: (414) 626-9992.<br><br>`+
		`<strong>Client:</strong> The client identified in this document (hereinafter referred to as "Client").`,
	[]Section{
		{
			Title: "1. SCOPE OF WORK",
			Content: `The Developer agrees to create and deliver a custom web application (hereinafter, the "Project") ` +
				`according to the Client's specified requirements. This includes:<ul>` +
				`<li>Full front-end website design and development.</li>` +
				`<li>GitHub repository setup and source code configuration.</li>` +
				`<li>Transfer of all associated project files in downloadable format.</li>` +
				`<li>Technical support during initial deployment.</li></ul>`,
		},
		{
			Title: "2. OWNERSHIP & INTELLECTUAL PROPERTY RIGHTS",
			Content: `<ul><li>Upon full completion of the Project and receipt of agreed compensation, the Developer hereby ` +
				`<strong>assigns all rights, title, and interest</strong> in the Project source code and materials to the Client.</li>` +
				`<li>The Client shall hold <strong>exclusive, irrevocable ownership rights</strong> to the code and assets delivered, ` +
				`including the right to modify, distribute, or commercialize the code, provided that such use does not infringe ` +
				`upon third-party rights or violate applicable laws.</li>` +
				`<li>The Developer <strong>waives any claim of future ownership or royalties</strong> associated with the ` +
				`transferred work, except in cases of subsequent written agreement for future modifications.</li></ul>`,
		},
		{
			Title: "3. DEVELOPER RIGHTS & RETAINED COPIES",
			Content: `<ul><li>The Developer may retain a copy of the Project files for <strong>archival and backup purposes only</strong>.</li>` +
				`<li>Such copies shall not be reused, redistributed, repurposed, or re-sold in any form without express ` +
				`written authorization from the Client.</li>` +
				`<li>The Developer is permitted to reference the Project in a portfolio or case study ` +
				`<strong>only with written permission</strong> from the Client.</li></ul>`,
		},
		{
			Title: "4. LIMITATIONS OF USE & TRADEMARK RESTRICTIONS",
			Content: `<ul><li>The Client agrees not to publicly misrepresent or rebrand the Project as being developed by any other entity.</li>` +
				`<li>The Client <strong>may not use the Rapid Web Development name, logo, or proprietary methods</strong> in ` +
				`association with any unlawful, misleading, or unethical use of the code.</li></ul>`,
		},
		{
			Title: "5. COMPENSATION",
			Content: `The Client agrees to compensate the Developer as agreed upon separately, which may include monetary ` +
				`payment or barter exchange of equivalent value.`,
		},
		{
			Title: "6. CLIENT REPRESENTATIONS",
			Content: `The Client confirms that:<ul><li>They are the rightful recipient and intended user of the Project.</li>` +
				`<li>They will not reverse engineer or repurpose parts of the platform for competing resale.</li>` +
				`<li>They are solely responsible for the use, modification, and deployment of the source code after delivery.</li></ul>`,
		},
		{
			Title: "7. DELIVERY & TERMINATION",
			Content: `<ul><li>Final files shall be delivered via GitHub repository and optional ZIP download.</li>` +
				`<li>This Agreement is deemed fulfilled upon delivery, with no ongoing obligations unless separately contracted.</li>` +
				`<li>Either party may terminate this Agreement before final delivery by providing written notice. If terminated ` +
				`early, any completed work will be delivered, and partial compensation may be owed based on time and scope.</li></ul>`,
		},
		{
			Title: "8. DISPUTE RESOLUTION",
			Content: `In the event of a dispute, both parties agree to attempt resolution in good faith. If unresolved, ` +
				`jurisdiction shall reside in the courts of Milwaukee County, Wisconsin, where Developer resides and operates.`,
		},
		{
			Title: "9. ENTIRE AGREEMENT",
			Content: `This document represents the entire understanding between the parties. Any amendments must be in ` +
				`writing and signed by both.`,
		},
		{
			Title: "10. SIGNATURES",
			Content: `By signing this Agreement electronically, both parties acknowledge they have read, understood, and ` +
				`agree to be bound by the terms and conditions set forth in this Agreement.`,
		},
	},
)
