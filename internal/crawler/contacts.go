package crawler

import "strings"

// Contacts maps author names to their email addresses, preserving the order
// in which names were first seen.
//
// Put on an existing name replaces its emails outright; the sets are never
// merged. The name keeps its original position.
type Contacts struct {
	order  []string
	emails map[string][]string
}

// NewContacts returns an empty mapping.
func NewContacts() *Contacts {
	return &Contacts{emails: make(map[string][]string)}
}

// Put records emails for name. Blank names and records without any
// non-blank email are dropped. It reports whether the record was kept.
func (c *Contacts) Put(name string, emails ...string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	cleaned := cleanEmails(emails)
	if len(cleaned) == 0 {
		return false
	}
	if c.emails == nil {
		c.emails = make(map[string][]string)
	}
	if _, ok := c.emails[name]; !ok {
		c.order = append(c.order, name)
	}
	c.emails[name] = cleaned
	return true
}

// Merge applies Put for every entry of other, in other's order.
func (c *Contacts) Merge(other *Contacts) {
	if other == nil {
		return
	}
	other.Each(func(name string, emails []string) {
		c.Put(name, emails...)
	})
}

// Len returns the number of retained authors.
func (c *Contacts) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Names returns author names in insertion order.
func (c *Contacts) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Emails returns a copy of the emails recorded for name.
func (c *Contacts) Emails(name string) []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.emails[name]...)
}

// Each visits entries in insertion order.
func (c *Contacts) Each(fn func(name string, emails []string)) {
	if c == nil {
		return
	}
	for _, name := range c.order {
		fn(name, c.emails[name])
	}
}

func cleanEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
