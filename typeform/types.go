package typeform

import (
	"time"

	json "github.com/goccy/go-json"
)

// List envelopes report the total item count so callers can page
// exhaustively: page count = ceil(total_items / page_size).

type formsPage struct {
	TotalItems int           `json:"total_items"`
	PageCount  int           `json:"page_count"`
	Items      []FormSummary `json:"items"`
}

type FormSummary struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
	Links         struct {
		Display string `json:"display"`
	} `json:"_links"`
}

// FormDetail is the per-form detail payload. The list endpoint does not
// expose the workspace reference or the field definitions; only this one
// does.
type FormDetail struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Workspace struct {
		Href string `json:"href"`
	} `json:"workspace"`
	Hidden []string `json:"hidden"`
	Fields []Field  `json:"fields"`
}

type Field struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Ref        string          `json:"ref"`
	Type       string          `json:"type"`
	Properties FieldProperties `json:"properties"`
}

type FieldProperties struct {
	Description *string `json:"description"`
	// Fields holds the sub-fields of a "group" field.
	Fields []Field `json:"fields"`
}

type responsesPage struct {
	TotalItems int            `json:"total_items"`
	PageCount  int            `json:"page_count"`
	Items      []ResponseItem `json:"items"`
}

type ResponseItem struct {
	ResponseID string `json:"response_id"`
	// Token is threaded into the next page request as the "before"
	// cursor; it is usually equal to ResponseID but the docs say to use
	// the token.
	Token       string            `json:"token"`
	LandedAt    time.Time         `json:"landed_at"`
	SubmittedAt *time.Time        `json:"submitted_at"`
	Metadata    ResponseMetadata  `json:"metadata"`
	Hidden      map[string]string `json:"hidden"`
	Answers     []AnswerValue     `json:"answers"`
}

type ResponseMetadata struct {
	UserAgent string  `json:"user_agent"`
	Referer   string  `json:"referer"`
	NetworkID *string `json:"network_id"`
}

// AnswerValue carries the variant answer payload: the value lives under
// a key named after the Type tag ("text", "number", "choice", ...).
// Known structured variants are decoded into typed fields; everything
// else stays reachable through RawValue.
type AnswerValue struct {
	Field   FieldRef      `json:"field"`
	Type    string        `json:"type"`
	Choice  *ChoiceValue  `json:"choice"`
	Choices *ChoicesValue `json:"choices"`

	raw map[string]json.RawMessage
}

type FieldRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

type ChoiceValue struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Other *string `json:"other"`
}

type ChoicesValue struct {
	IDs    []string `json:"ids"`
	Labels []string `json:"labels"`
	Other  *string  `json:"other"`
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	type plain AnswerValue
	if err := json.Unmarshal(data, (*plain)(a)); err != nil {
		return err
	}
	return json.Unmarshal(data, &a.raw)
}

// RawValue returns the payload stored under the answer's own type tag.
func (a AnswerValue) RawValue() (json.RawMessage, bool) {
	value, ok := a.raw[a.Type]
	return value, ok
}
