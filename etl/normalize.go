package etl

import (
	"slices"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/mbolis/typeform-etl/model"
	"github.com/mbolis/typeform-etl/typeform"
)

// Normalization is pure: no network, no database, and byte-identical
// rows for identical raw input.

func normalizeForm(form typeform.FormSummary) model.Form {
	return model.Form{
		ID:      form.ID,
		Updated: form.LastUpdatedAt.UTC(),
		URL:     form.Links.Display,
		Title:   form.Title,
	}
}

// workspaceID extracts the workspace identifier from the trailing
// fixed-width segment of the workspace reference URL.
func workspaceID(href string) *string {
	if href == "" {
		return nil
	}
	if len(href) > 6 {
		href = href[len(href)-6:]
	}
	return &href
}

// normalizeFormItems flattens a form's fields into rows: one synthetic
// row per hidden field name first, then one row per declared field, with
// sub-fields of group fields emitted right after their parent. A single
// position counter runs across all of them.
func normalizeFormItems(detail typeform.FormDetail) []model.FormItem {
	var items []model.FormItem
	position := 0

	for _, name := range detail.Hidden {
		items = append(items, model.FormItem{
			ID:       DeriveID(detail.ID, "hidden", name),
			Form:     detail.ID,
			Position: position,
			Name:     name,
			Type:     "hidden",
			Title:    name,
		})
		position++
	}

	for _, field := range detail.Fields {
		items = append(items, model.FormItem{
			ID:          field.ID,
			Form:        detail.ID,
			Position:    position,
			Name:        field.Ref,
			Type:        field.Type,
			Title:       field.Title,
			Description: field.Properties.Description,
		})
		position++

		for _, sub := range field.Properties.Fields {
			parentID, parentName := field.ID, field.Ref
			items = append(items, model.FormItem{
				ID:          sub.ID,
				ParentID:    &parentID,
				Form:        detail.ID,
				Position:    position,
				Name:        sub.Ref,
				ParentName:  &parentName,
				Type:        sub.Type,
				Title:       sub.Title,
				Description: sub.Properties.Description,
			})
			position++
		}
	}
	return items
}

// normalizeResponse turns one raw response item into a response row plus
// its answer rows: hidden fields first, then declared answers, with a
// dense per-response sequence across both.
func normalizeResponse(formID string, item typeform.ResponseItem) (model.Response, []model.Answer) {
	response := model.Response{
		ID:        item.ResponseID,
		Form:      formID,
		IPAddress: item.Metadata.NetworkID,
		Landed:    item.LandedAt.UTC(),
		Agent:     item.Metadata.UserAgent,
		Referer:   item.Metadata.Referer,
	}
	if item.SubmittedAt != nil && len(item.Answers) > 0 {
		submitted := item.SubmittedAt.UTC()
		response.Submitted = &submitted
	}

	var answers []model.Answer
	sequence := 0

	// JSON object order is lost in a Go map; sort the hidden names so the
	// sequence is deterministic.
	hiddenNames := make([]string, 0, len(item.Hidden))
	for name := range item.Hidden {
		hiddenNames = append(hiddenNames, name)
	}
	slices.Sort(hiddenNames)
	for _, name := range hiddenNames {
		answers = append(answers, model.Answer{
			ID:           DeriveID(formID, item.ResponseID, name),
			Form:         formID,
			Response:     item.ResponseID,
			Sequence:     sequence,
			Field:        DeriveID(formID, "hidden", name),
			DataTypeHint: "hidden",
			Answer:       item.Hidden[name],
		})
		sequence++
	}

	for _, answer := range item.Answers {
		answers = append(answers, model.Answer{
			ID:           DeriveID(formID, item.ResponseID, answer.Field.ID),
			Form:         formID,
			Response:     item.ResponseID,
			Sequence:     sequence,
			Field:        answer.Field.ID,
			DataTypeHint: answer.Type,
			Answer:       answerText(answer),
		})
		sequence++
	}
	return response, answers
}

// answerText resolves the variant answer payload into its stored text
// form, once, so nothing downstream re-inspects type tags.
func answerText(answer typeform.AnswerValue) string {
	switch answer.Type {
	case "choice", "choices":
		return encodeChoices(answer)
	default:
		raw, ok := answer.RawValue()
		if !ok {
			return ""
		}
		return stringifyRaw(raw)
	}
}

// encodeChoices normalizes single- and multi-choice answers into one
// compact serialized mapping of selected option id to label, with an
// "other" key for free-text entries. Map keys marshal sorted, so the
// output is deterministic.
func encodeChoices(answer typeform.AnswerValue) string {
	selected := map[string]string{}
	switch {
	case answer.Choices != nil:
		for i, id := range answer.Choices.IDs {
			if i < len(answer.Choices.Labels) {
				selected[id] = answer.Choices.Labels[i]
			}
		}
		if answer.Choices.Other != nil {
			selected["other"] = *answer.Choices.Other
		}
	case answer.Choice != nil:
		if answer.Choice.ID != "" || answer.Choice.Label != "" {
			selected[answer.Choice.ID] = answer.Choice.Label
		}
		if answer.Choice.Other != nil {
			selected["other"] = *answer.Choice.Other
		}
	}
	encoded, err := json.Marshal(selected)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// stringifyRaw renders a scalar JSON payload the way it would read in
// the source: bare strings unquoted, numbers and booleans as literals.
// Anything structured is kept as compact JSON.
func stringifyRaw(raw json.RawMessage) string {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return string(raw)
	}
	switch value := value.(type) {
	case nil:
		return ""
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return string(raw)
		}
		return string(encoded)
	}
}
