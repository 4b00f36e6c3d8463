package extract

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/journal-email-crawler/internal/crawler"
	"github.com/JakeFAU/journal-email-crawler/internal/document"
)

type author struct {
	GivenName string   `json:"givenName,omitempty"`
	Surname   string   `json:"surname,omitempty"`
	Emails    []string `json:"emails,omitempty"`
}

type item struct {
	Authors []author `json:"authors"`
}

func issuePage(t *testing.T, body map[string]any) *document.Document {
	t.Helper()
	inner, err := json.Marshal(map[string]any{
		"articles": map[string]any{"ihp": map[string]any{"data": map[string]any{"issueBody": body}}},
	})
	require.NoError(t, err)
	outer, err := json.Marshal(string(inner))
	require.NoError(t, err)
	return page(t, fmt.Sprintf(`<html><head><script type="application/json">%s</script></head><body></body></html>`, outer))
}

func page(t *testing.T, html string) *document.Document {
	t.Helper()
	doc, err := document.Parse("https://example.com/journal/x/vol/1", []byte(html))
	require.NoError(t, err)
	return doc
}

func oracle(pairs ...any) *crawler.Contacts {
	c := crawler.NewContacts()
	for i := 0; i < len(pairs); i += 2 {
		c.Put(pairs[i].(string), pairs[i+1].([]string)...)
	}
	return c
}

func extractTraced(src Source) (Outcome, []Variant) {
	var tried []Variant
	out := New(WithTrace(func(v Variant) { tried = append(tried, v) })).Extract(src)
	return out, tried
}

// TestIssueItemsVariant covers listings with a flat includeItem list.
func TestIssueItemsVariant(t *testing.T) {
	t.Parallel()

	doc := issuePage(t, map[string]any{
		"includeItem": []item{
			{Authors: []author{
				{GivenName: "Ada", Surname: "Lovelace", Emails: []string{"ada@analytical.org", "ada@home.org"}},
				{GivenName: "Charles", Surname: "Babbage"},
			}},
			{Authors: []author{{GivenName: "Alan", Surname: "Turing", Emails: []string{"alan@npl.uk"}}}},
		},
		"issueSec": []any{map[string]any{"includeItem": []item{{Authors: []author{{GivenName: "Not", Surname: "Reached", Emails: []string{"x@y.z"}}}}}}},
	})

	out, tried := extractTraced(doc)
	assert.Equal(t, VariantIssueItems, out.Variant)
	assert.Equal(t, []Variant{VariantIssueItems}, tried)
	assert.Equal(t, oracle(
		"Ada Lovelace", []string{"ada@analytical.org", "ada@home.org"},
		"Alan Turing", []string{"alan@npl.uk"},
	), out.Contacts)
}

// TestIssueSectionsVariant covers listings grouped into one level of sections.
func TestIssueSectionsVariant(t *testing.T) {
	t.Parallel()

	doc := issuePage(t, map[string]any{
		"includeItem": []item{},
		"issueSec": []any{
			map[string]any{"includeItem": []item{{Authors: []author{{GivenName: "Grace", Surname: "Hopper", Emails: []string{"grace@navy.mil"}}}}}},
			map[string]any{"includeItem": []item{{Authors: []author{{GivenName: "Edsger", Surname: "Dijkstra", Emails: []string{"ewd@utexas.edu"}}}}}},
		},
	})

	out, tried := extractTraced(doc)
	assert.Equal(t, VariantIssueSections, out.Variant)
	assert.Equal(t, []Variant{VariantIssueItems, VariantIssueSections}, tried)
	assert.Equal(t, oracle(
		"Grace Hopper", []string{"grace@navy.mil"},
		"Edsger Dijkstra", []string{"ewd@utexas.edu"},
	), out.Contacts)
}

// TestNestedSectionsVariant covers the exception shape where sections nest.
func TestNestedSectionsVariant(t *testing.T) {
	t.Parallel()

	doc := issuePage(t, map[string]any{
		"issueSec": []any{
			map[string]any{
				"includeItem": []item{{Authors: []author{{GivenName: "Outer", Surname: "Item", Emails: []string{"outer@x.org"}}}}},
			},
			map[string]any{
				"issueSec": []any{
					map[string]any{"includeItem": []item{{Authors: []author{{GivenName: "Barbara", Surname: "Liskov", Emails: []string{"liskov@mit.edu"}}}}}},
				},
			},
		},
	})

	out, tried := extractTraced(doc)
	assert.Equal(t, VariantNestedSections, out.Variant)
	assert.Equal(t, []Variant{VariantIssueItems, VariantIssueSections, VariantNestedSections}, tried)
	assert.Equal(t, oracle("Barbara Liskov", []string{"liskov@mit.edu"}), out.Contacts)
}

const inlineArticle = `<html><head><script type="application/json">
{"authors":{"content":[{"#name":"author-group","$$":[
  {"#name":"author","$$":[
    {"#name":"given-name","_":"Donald"},
    {"#name":"surname","_":"Knuth"},
    {"#name":"e-address","_":"old@stanford.edu"},
    {"#name":"e-address","_":"knuth@stanford.edu"}]},
  {"#name":"author","$$":[
    {"#name":"given-name","_":"Nomail"},
    {"#name":"surname","_":"Person"}]},
  {"#name":"author","$$":[
    {"#name":"given-name","_":"Frances⁎"},
    {"#name":"surname","_":"Allen"},
    {"#name":"e-address","_":{"nested":"ignored"}},
    {"#name":"e-address","_":"allen@ibm.com"}]}
]}]}}
</script></head><body></body></html>`

// TestInlineDocumentVariant covers legacy article pages with one email per author.
func TestInlineDocumentVariant(t *testing.T) {
	t.Parallel()

	out, tried := extractTraced(page(t, inlineArticle))
	assert.Equal(t, VariantInlineDocument, out.Variant)
	assert.Equal(t, []Variant{VariantIssueItems, VariantIssueSections, VariantNestedSections, VariantInlineDocument}, tried)
	assert.Equal(t, oracle(
		"Donald Knuth", []string{"knuth@stanford.edu"},
		"Frances Allen", []string{"allen@ibm.com"},
	), out.Contacts)
}

const markupArticle = `<html><body>
<a class="authorName svAuthor" data-fn="John" data-ln="McCarthy">J. McCarthy</a>
<a class="auth_mail" href="mailto:jmc@stanford.edu">mail</a>
<a class="authorName svAuthor" data-fn="Marvin" data-ln="Minsky">M. Minsky</a>
<a class="auth_mail" href="mailto:minsky@mit.edu?subject=hi">mail</a>
<a class="authorName svAuthor" data-fn="Unpaired" data-ln="Author">U. Author</a>
</body></html>`

// TestMarkupVariant covers pages without any embedded payload.
func TestMarkupVariant(t *testing.T) {
	t.Parallel()

	out, tried := extractTraced(page(t, markupArticle))
	assert.Equal(t, VariantMarkup, out.Variant)
	assert.Len(t, tried, 5)
	assert.Equal(t, oracle(
		"John McCarthy", []string{"jmc@stanford.edu"},
		"Marvin Minsky", []string{"minsky@mit.edu"},
	), out.Contacts)
}

// TestExtractIdempotent re-runs the same chain over the same page.
func TestExtractIdempotent(t *testing.T) {
	t.Parallel()

	chain := New()
	for _, doc := range []*document.Document{page(t, inlineArticle), page(t, markupArticle)} {
		first := chain.Extract(doc)
		second := chain.Extract(doc)
		assert.Equal(t, first, second)
	}
}

// TestMalformedPayloadsYieldEmpty checks broken payloads degrade to no result.
func TestMalformedPayloadsYieldEmpty(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":      `{"articles":`,
		"string of garbage": `"not json at all"`,
		"wrong types":       `{"articles":{"ihp":{"data":{"issueBody":{"includeItem":"oops"}}}}}`,
		"unrelated object":  `{"hello":"world"}`,
		"empty":             `   `,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			doc := page(t, `<html><head><script type="application/json">`+body+`</script></head>`+
				`<body><a class="authorName svAuthor" data-fn="A" data-ln="B"></a><a class="auth_mail" href="mailto:a@b.c"></a></body></html>`)
			out := New().Extract(doc)
			if name == "empty" {
				assert.Equal(t, VariantMarkup, out.Variant)
				return
			}
			assert.Equal(t, VariantNone, out.Variant)
			assert.Equal(t, 0, out.Contacts.Len())
		})
	}
}

// TestRetainedRecordsHaveEmails asserts no emitted record has an empty email set.
func TestRetainedRecordsHaveEmails(t *testing.T) {
	t.Parallel()

	doc := issuePage(t, map[string]any{
		"includeItem": []any{
			map[string]any{"authors": []any{
				map[string]any{"givenName": "Has", "surname": "Mail", "emails": []string{"has@mail.org"}},
				map[string]any{"givenName": "Empty", "surname": "List", "emails": []string{}},
				map[string]any{"givenName": "Blank", "surname": "Entry", "emails": []string{" "}},
				map[string]any{"givenName": "Single", "surname": "String", "emails": "single@mail.org"},
				map[string]any{"surname": "", "emails": []string{"nameless@mail.org"}},
			}},
		},
	})
	out := New().Extract(doc)
	out.Contacts.Each(func(name string, emails []string) {
		assert.NotEmpty(t, emails, name)
	})
	assert.Equal(t, []string{"Has Mail", "Single String"}, out.Contacts.Names())
}

func TestNilSource(t *testing.T) {
	t.Parallel()

	out := New().Extract(nil)
	assert.Equal(t, VariantNone, out.Variant)
	assert.Equal(t, 0, out.Contacts.Len())
}
