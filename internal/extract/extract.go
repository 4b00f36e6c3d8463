package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
)

// Variant names the layout an Outcome was recovered from.
type Variant string

// Recognized layouts, in the order they are attempted.
const (
	VariantNone           Variant = "none"
	VariantIssueItems     Variant = "issue_items"
	VariantIssueSections  Variant = "issue_sections"
	VariantNestedSections Variant = "nested_sections"
	VariantInlineDocument Variant = "inline_document"
	VariantMarkup         Variant = "markup"
)

// Source is the part of a fetched page the extractor reads.
type Source interface {
	EmbeddedJSON() ([]byte, bool)
	Find(selector string) *goquery.Selection
}

// Outcome is the result of running the chain over one page.
type Outcome struct {
	Variant  Variant
	Contacts *crawler.Contacts
}

// input is what every attempt sees.
type input struct {
	src     Source
	payload payload
}

// attempt returns matched=false to let the next attempt run.
type attempt struct {
	variant Variant
	run     func(in input) (contacts *crawler.Contacts, matched bool)
}

// Chain runs the fallback attempts in order.
type Chain struct {
	attempts []attempt
	trace    func(Variant)
}

// Option customizes a Chain.
type Option func(*Chain)

// WithTrace registers fn to be called with each variant before it is tried.
func WithTrace(fn func(Variant)) Option {
	return func(c *Chain) {
		c.trace = fn
	}
}

// New returns the default chain.
func New(opts ...Option) *Chain {
	c := &Chain{
		attempts: []attempt{
			{variant: VariantIssueItems, run: issueItems},
			{variant: VariantIssueSections, run: issueSections},
			{variant: VariantNestedSections, run: nestedSections},
			{variant: VariantInlineDocument, run: inlineDocument},
			{variant: VariantMarkup, run: markup},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract returns the contacts found in src. It never fails; an unrecognized
// page yields VariantNone and an empty mapping.
func (c *Chain) Extract(src Source) Outcome {
	out := Outcome{Variant: VariantNone, Contacts: crawler.NewContacts()}
	if src == nil {
		return out
	}

	raw, present := src.EmbeddedJSON()
	in := input{src: src, payload: decodePayload(raw, present)}
	for _, a := range c.attempts {
		if c.trace != nil {
			c.trace(a.variant)
		}
		if contacts, ok := a.run(in); ok {
			return Outcome{Variant: a.variant, Contacts: contacts}
		}
	}
	return out
}

func issueItems(in input) (*crawler.Contacts, bool) {
	if in.payload.kind != payloadIssue || len(in.payload.issue.IncludeItem) == 0 {
		return nil, false
	}
	return collectItems(crawler.NewContacts(), in.payload.issue.IncludeItem), true
}

func issueSections(in input) (*crawler.Contacts, bool) {
	if in.payload.kind != payloadIssue || len(in.payload.issue.IncludeItem) > 0 {
		return nil, false
	}
	if hasNestedSections(in.payload.issue.IssueSec) {
		return nil, false
	}
	contacts := crawler.NewContacts()
	for _, sec := range in.payload.issue.IssueSec {
		collectItems(contacts, sec.IncludeItem)
	}
	return contacts, true
}

// nestedSections handles listings whose sections are themselves grouped.
// Only the inner sections are read; items sitting directly on an outer
// section are ignored.
func nestedSections(in input) (*crawler.Contacts, bool) {
	if in.payload.kind != payloadIssue || len(in.payload.issue.IncludeItem) > 0 {
		return nil, false
	}
	if !hasNestedSections(in.payload.issue.IssueSec) {
		return nil, false
	}
	contacts := crawler.NewContacts()
	for _, outer := range in.payload.issue.IssueSec {
		for _, inner := range outer.IssueSec {
			collectItems(contacts, inner.IncludeItem)
		}
	}
	return contacts, true
}

// inlineDocument reads legacy article pages. Each author carries at most one
// address; a later e-address leaf replaces an earlier one.
func inlineDocument(in input) (*crawler.Contacts, bool) {
	if in.payload.kind != payloadInline {
		return nil, false
	}
	contacts := crawler.NewContacts()
	for _, group := range in.payload.inline.Content {
		for _, author := range group.Children {
			var name, email string
			for _, leaf := range author.Children {
				switch leaf.Name {
				case "given-name":
					name = string(leaf.Value)
				case "surname":
					name = name + " " + string(leaf.Value)
				case "e-address":
					email = string(leaf.Value)
				}
			}
			contacts.Put(name, email)
		}
	}
	return contacts, true
}

// markup pairs author anchors with mailto anchors by position. It only runs
// when the page has no embedded payload at all.
func markup(in input) (*crawler.Contacts, bool) {
	if in.payload.kind != payloadAbsent {
		return nil, false
	}
	authors := in.src.Find("a.authorName.svAuthor")
	mails := in.src.Find("a.auth_mail")
	contacts := crawler.NewContacts()
	n := min(authors.Length(), mails.Length())
	for i := 0; i < n; i++ {
		author := authors.Eq(i)
		first, _ := author.Attr("data-fn")
		last, _ := author.Attr("data-ln")
		href, _ := mails.Eq(i).Attr("href")
		contacts.Put(joinName(first, last), mailtoAddress(href))
	}
	return contacts, true
}

func collectItems(contacts *crawler.Contacts, items []issueItem) *crawler.Contacts {
	for _, item := range items {
		for _, author := range item.Authors {
			contacts.Put(joinName(author.GivenName, author.Surname), author.Emails...)
		}
	}
	return contacts
}

func hasNestedSections(sections []issueSection) bool {
	for _, sec := range sections {
		if sec.IssueSec != nil {
			return true
		}
	}
	return false
}

func joinName(given, surname string) string {
	return strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(surname))
}

func mailtoAddress(href string) string {
	_, addr, found := strings.Cut(strings.TrimSpace(href), ":")
	if !found {
		return ""
	}
	addr, _, _ = strings.Cut(addr, "?")
	return strings.TrimSpace(addr)
}
