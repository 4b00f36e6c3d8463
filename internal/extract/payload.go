package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/JakeFAU/journal-email-crawler/internal/document"
)

// payloadKind tags what the embedded JSON block turned out to be.
type payloadKind int

const (
	payloadAbsent payloadKind = iota
	payloadIssue
	payloadInline
	payloadUnrecognized
)

// payload is the decoded intermediate form shared by all attempts.
type payload struct {
	kind   payloadKind
	issue  *issueBody
	inline *inlineAuthors
}

type issueEnvelope struct {
	Articles struct {
		IHP struct {
			Data struct {
				IssueBody *issueBody `json:"issueBody"`
			} `json:"data"`
		} `json:"ihp"`
	} `json:"articles"`
}

type issueBody struct {
	IncludeItem []issueItem    `json:"includeItem"`
	IssueSec    []issueSection `json:"issueSec"`
}

type issueSection struct {
	IncludeItem []issueItem    `json:"includeItem"`
	IssueSec    []issueSection `json:"issueSec"`
}

type issueItem struct {
	Authors []issueAuthor `json:"authors"`
}

type issueAuthor struct {
	GivenName string     `json:"givenName"`
	Surname   string     `json:"surname"`
	Emails    stringList `json:"emails"`
}

type inlineEnvelope struct {
	Authors *inlineAuthors `json:"authors"`
}

type inlineAuthors struct {
	Content []inlineNode `json:"content"`
}

// inlineNode is one element of the legacy article tree. Leaves carry a tag in
// "#name" and their text in "_".
type inlineNode struct {
	Name     string       `json:"#name"`
	Value    textValue    `json:"_"`
	Children []inlineNode `json:"$$"`
}

// stringList accepts either a JSON array of strings or a single string.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = stringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// textValue keeps string leaves and ignores anything structured.
type textValue string

func (t *textValue) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*t = ""
		return nil
	}
	*t = textValue(s)
	return nil
}

// decodePayload classifies raw, the text of the embedded JSON block. Issue
// listings are double encoded: the block holds a JSON string whose contents
// are the document. Article pages embed the document directly.
func decodePayload(raw []byte, present bool) payload {
	if !present {
		return payload{kind: payloadAbsent}
	}
	raw = []byte(strings.ReplaceAll(string(raw), "⁎", ""))
	inner, ok := document.Unwrap(raw)
	if !ok {
		return payload{kind: payloadUnrecognized}
	}

	var issue issueEnvelope
	if err := json.Unmarshal(inner, &issue); err == nil && issue.Articles.IHP.Data.IssueBody != nil {
		return payload{kind: payloadIssue, issue: issue.Articles.IHP.Data.IssueBody}
	}

	var inline inlineEnvelope
	if err := json.Unmarshal(inner, &inline); err == nil && inline.Authors != nil {
		return payload{kind: payloadInline, inline: inline.Authors}
	}
	return payload{kind: payloadUnrecognized}
}
