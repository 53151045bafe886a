package etl

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"github.com/mbolis/typeform-etl/app"
	"github.com/mbolis/typeform-etl/database"
	"github.com/mbolis/typeform-etl/log"
	"github.com/mbolis/typeform-etl/model"
)

// Version is recorded in the synclog with every run.
const Version = "1.0.0"

// Syncer drives one incremental sync: watermark, forms, form items,
// responses and answers, load, watermark advance, statistics. Any error
// on the way aborts the run; fetched data is discarded and the watermark
// stays where it was.
type Syncer struct {
	app app.App
}

func NewSyncer(app app.App) *Syncer {
	return &Syncer{app: app}
}

func (s *Syncer) Run(ctx context.Context) (model.SyncStats, error) {
	runID := uuid.Must(uuid.NewV4()).String()
	log.Infof("sync.start: run %s (version %s)", runID, Version)

	watermark, err := database.LastSync(ctx, s.app.DB, s.app.TablePrefix, s.app.Restart)
	if err != nil {
		log.Errorf("sync.watermark.read: %v", err)
		return model.SyncStats{}, err
	}
	log.Debugf("sync.watermark: landed>=%s submitted>=%s",
		watermark.Landed.Format(time.RFC3339), watermark.Submitted.Format(time.RFC3339))

	forms, err := s.fetchForms(ctx)
	if err != nil {
		return model.SyncStats{}, err
	}
	items, forms, err := s.fetchFormItems(ctx, forms)
	if err != nil {
		return model.SyncStats{}, err
	}
	responses, answers, err := s.fetchResponses(ctx, forms, watermark)
	if err != nil {
		return model.SyncStats{}, err
	}

	ds := buildDataset(forms, items, responses, answers)
	stats := ds.Stats()

	if s.app.DryRun {
		log.Info("sync.load: skipped (dry run)")
	} else {
		loader := database.NewLoader(s.app.DB, s.app.Dialect, s.app.TablePrefix, s.app.ChunkSize)
		if err := loader.Load(ctx, ds); err != nil {
			log.Errorf("sync.load: %v", err)
			return model.SyncStats{}, err
		}
		record := database.SyncRecord{
			RunID:      runID,
			Version:    Version,
			Stats:      stats,
			LastLanded: lastLanded(ds.Responses),
		}
		if err := database.RecordSync(ctx, s.app.DB, s.app.Dialect, s.app.TablePrefix, record); err != nil {
			log.Errorf("sync.watermark.write: %v", err)
			return model.SyncStats{}, err
		}
	}

	log.Infof("Number of forms: %d", stats.Forms)
	log.Infof("Number of form fields: %d", stats.FormItems)
	log.Infof("Number of responses: %d", stats.Responses)
	log.Infof("Number of fields answered: %d", stats.Answers)
	return stats, nil
}

func (s *Syncer) fetchForms(ctx context.Context) ([]model.Form, error) {
	log.Debug("sync.forms.fetch: requesting forms")

	var forms []model.Form
	for form, err := range s.app.Client.Forms(ctx) {
		if err != nil {
			log.Errorf("sync.forms.fetch: %v", err)
			return nil, err
		}
		forms = append(forms, normalizeForm(form))
	}

	// sorted by form ID for determinism
	slices.SortFunc(forms, func(a, b model.Form) int {
		return strings.Compare(a.ID, b.ID)
	})
	return forms, nil
}

// fetchFormItems flattens every form's fields and back-fills the form's
// workspace, which only the detail endpoint exposes.
func (s *Syncer) fetchFormItems(ctx context.Context, forms []model.Form) ([]model.FormItem, []model.Form, error) {
	var items []model.FormItem
	out := slices.Clone(forms)
	for i := range out {
		detail, err := s.app.Client.FormDetail(ctx, out[i].ID)
		if err != nil {
			log.Errorf("sync.form_items.fetch: %v", err)
			return nil, nil, err
		}
		out[i].Workspace = workspaceID(detail.Workspace.Href)
		items = append(items, normalizeFormItems(detail)...)
	}
	return items, out, nil
}

// fetchResponses walks every form under both completion states, each
// bounded by its matching watermark and paginated exhaustively before
// the next partition starts.
func (s *Syncer) fetchResponses(ctx context.Context, forms []model.Form, watermark database.Watermark) ([]model.Response, []model.Answer, error) {
	var responses []model.Response
	var answers []model.Answer
	for _, form := range forms {
		for _, completed := range []bool{true, false} {
			since := watermark.Submitted
			if !completed {
				since = watermark.Landed
			}
			log.Debugf("sync.responses.fetch: form %q completed=%t since=%s",
				form.ID, completed, since.Format(time.RFC3339))

			for item, err := range s.app.Client.Responses(ctx, form.ID, completed, since) {
				if err != nil {
					log.Errorf("sync.responses.fetch: %v", err)
					return nil, nil, err
				}
				response, responseAnswers := normalizeResponse(form.ID, item)
				responses = append(responses, response)
				answers = append(answers, responseAnswers...)
			}
		}
	}
	return responses, answers, nil
}

// buildDataset de-duplicates by primary key (last row wins, in case a
// response shows up under both completion partitions) and fixes the row
// order: responses by landing time, answers grouped by response.
func buildDataset(forms []model.Form, items []model.FormItem, responses []model.Response, answers []model.Answer) model.Dataset {
	responses = dedupe(responses, func(r model.Response) string { return r.ID })
	answers = dedupe(answers, func(a model.Answer) string { return a.ID })

	slices.SortStableFunc(responses, func(a, b model.Response) int {
		if c := a.Landed.Compare(b.Landed); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	slices.SortStableFunc(answers, func(a, b model.Answer) int {
		if c := strings.Compare(a.Response, b.Response); c != 0 {
			return c
		}
		return a.Sequence - b.Sequence
	})

	return model.Dataset{
		Forms:     forms,
		FormItems: items,
		Responses: responses,
		Answers:   answers,
	}
}

func dedupe[T any](rows []T, key func(T) string) []T {
	seen := make(map[string]int, len(rows))
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if i, ok := seen[key(row)]; ok {
			out[i] = row
			continue
		}
		seen[key(row)] = len(out)
		out = append(out, row)
	}
	return out
}

func lastLanded(responses []model.Response) *time.Time {
	if len(responses) == 0 {
		return nil
	}
	last := responses[len(responses)-1].Landed
	return &last
}
