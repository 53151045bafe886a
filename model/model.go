package model

import "time"

// Field order mirrors the destination table columns; the loader and the
// startup schema validation both rely on this contract staying in sync
// with the migrations under database/migrations.

type Form struct {
	ID          string
	Workspace   *string
	Updated     time.Time
	URL         string
	Title       string
	Description *string
}

// FormItem is one field of a form: a declared field, a sub-field of a
// "group" field (ParentID/ParentName set), or a synthetic hidden field.
// Position is dense and zero-based across all three kinds, in discovery
// order, and is never reset within a form.
type FormItem struct {
	ID          string
	ParentID    *string
	Form        string
	Position    int
	Name        string
	ParentName  *string
	Type        string
	Title       string
	Description *string
}

// Response is one submission attempt. Submitted is nil when the
// respondent landed on the form but never completed it.
type Response struct {
	ID        string
	Form      string
	IPAddress *string
	Landed    time.Time
	Submitted *time.Time
	Agent     string
	Referer   string
}

// Answer is one answered (or hidden) field of one response. For choice
// answers the value is a compact JSON object of option id to label.
type Answer struct {
	ID           string
	Form         string
	Response     string
	Sequence     int
	Field        string
	DataTypeHint string
	Answer       string
}
