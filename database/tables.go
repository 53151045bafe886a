package database

import "github.com/mbolis/typeform-etl/model"

// tableSpec ties a destination table to the rows it receives from a
// dataset. The first column is always the primary key the merge
// conflicts on.
type tableSpec struct {
	name    string
	columns []string
	rows    func(ds model.Dataset) [][]any
}

// entityTables lists the destination tables in foreign-key dependency
// order: forms before their items, responses before their answers.
func entityTables() []tableSpec {
	return []tableSpec{
		{
			name:    "forms",
			columns: []string{"id", "workspace", "updated", "url", "title", "description"},
			rows: func(ds model.Dataset) [][]any {
				out := make([][]any, 0, len(ds.Forms))
				for _, f := range ds.Forms {
					out = append(out, []any{f.ID, f.Workspace, f.Updated, f.URL, f.Title, f.Description})
				}
				return out
			},
		},
		{
			name:    "form_items",
			columns: []string{"id", "parent_id", "form", "position", "name", "parent_name", "type", "title", "description"},
			rows: func(ds model.Dataset) [][]any {
				out := make([][]any, 0, len(ds.FormItems))
				for _, fi := range ds.FormItems {
					out = append(out, []any{fi.ID, fi.ParentID, fi.Form, fi.Position, fi.Name, fi.ParentName, fi.Type, fi.Title, fi.Description})
				}
				return out
			},
		},
		{
			name:    "responses",
			columns: []string{"id", "form", "ip_address", "landed", "submitted", "agent", "referer"},
			rows: func(ds model.Dataset) [][]any {
				out := make([][]any, 0, len(ds.Responses))
				for _, r := range ds.Responses {
					out = append(out, []any{r.ID, r.Form, r.IPAddress, r.Landed, r.Submitted, r.Agent, r.Referer})
				}
				return out
			},
		},
		{
			name:    "answers",
			columns: []string{"id", "form", "response", "sequence", "field", "data_type_hint", "answer"},
			rows: func(ds model.Dataset) [][]any {
				out := make([][]any, 0, len(ds.Answers))
				for _, a := range ds.Answers {
					out = append(out, []any{a.ID, a.Form, a.Response, a.Sequence, a.Field, a.DataTypeHint, a.Answer})
				}
				return out
			},
		},
	}
}

// bookkeepingTables are written by the watermark tracker, not the
// loader; they are still part of the schema contract.
func bookkeepingTables() []tableSpec {
	return []tableSpec{
		{name: "options", columns: []string{"name", "value"}},
		{name: "synclog", columns: []string{"run_id", "timestamp", "version", "forms", "form_items", "responses", "answers"}},
	}
}
