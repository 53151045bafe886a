package typeform

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	DefaultBaseURL = "https://api.typeform.com"

	defaultFormsPageSize     = 200
	defaultResponsesPageSize = 1000
)

// Incremental bounds are naive UTC timestamps, same as the values stored
// in the destination tables.
const sinceFormat = "2006-01-02T15:04:05"

// APIError is a non-success answer from the Typeform API, with enough
// context to tell which resource and form the failed request was part of.
type APIError struct {
	StatusCode int
	Resource   string
	FormID     string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("typeform %s", e.Resource)
	if e.FormID != "" {
		msg += fmt.Sprintf(" (form %q)", e.FormID)
	}
	msg += fmt.Sprintf(": status=%d", e.StatusCode)
	if e.Code != "" {
		msg += " code=" + e.Code
	}
	if e.Message != "" {
		msg += " message=" + e.Message
	}
	return msg
}

type ClientOptions struct {
	Token             string
	BaseURL           string
	HTTPClient        *http.Client
	FormsPageSize     int
	ResponsesPageSize int
}

type Client struct {
	baseURL           string
	token             string
	httpClient        *http.Client
	formsPageSize     int
	responsesPageSize int
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	formsPageSize := opts.FormsPageSize
	if formsPageSize <= 0 {
		formsPageSize = defaultFormsPageSize
	}
	responsesPageSize := opts.ResponsesPageSize
	if responsesPageSize <= 0 {
		responsesPageSize = defaultResponsesPageSize
	}
	return &Client{
		baseURL:           baseURL,
		token:             strings.TrimSpace(opts.Token),
		httpClient:        httpClient,
		formsPageSize:     formsPageSize,
		responsesPageSize: responsesPageSize,
	}
}

// Forms lists every form of the account, following the page protocol
// exhaustively. The sequence stops at the first error.
func (c *Client) Forms(ctx context.Context) iter.Seq2[FormSummary, error] {
	return func(yield func(FormSummary, error) bool) {
		for page := 1; ; page++ {
			q := url.Values{}
			q.Set("page_size", strconv.Itoa(c.formsPageSize))
			q.Set("page", strconv.Itoa(page))

			var env formsPage
			if err := c.getJSON(ctx, "/forms", q, &env, "list forms", ""); err != nil {
				yield(FormSummary{}, err)
				return
			}
			for _, item := range env.Items {
				if !yield(item, nil) {
					return
				}
			}
			if page >= pageCount(env.PageCount, env.TotalItems, c.formsPageSize) {
				return
			}
		}
	}
}

func (c *Client) FormDetail(ctx context.Context, formID string) (FormDetail, error) {
	var detail FormDetail
	err := c.getJSON(ctx, "/forms/"+url.PathEscape(formID), nil, &detail, "form detail", formID)
	return detail, err
}

// Responses yields every response of one form for one value of the
// "completed" filter, landed or submitted at since or later. Each page
// carries the last item's token into the next request as the "before"
// cursor, so ordering stays stable across large result sets.
func (c *Client) Responses(ctx context.Context, formID string, completed bool, since time.Time) iter.Seq2[ResponseItem, error] {
	resource := fmt.Sprintf("responses (completed=%t)", completed)
	return func(yield func(ResponseItem, error) bool) {
		base := url.Values{}
		base.Set("since", since.UTC().Format(sinceFormat))
		base.Set("completed", strconv.FormatBool(completed))

		// Probe for the partition size first, with a minimal page.
		probe := cloneValues(base)
		probe.Set("page_size", "1")
		probe.Set("page", "1")
		var stats responsesPage
		if err := c.getJSON(ctx, "/forms/"+url.PathEscape(formID)+"/responses", probe, &stats, resource, formID); err != nil {
			yield(ResponseItem{}, err)
			return
		}

		pages := (stats.TotalItems + c.responsesPageSize - 1) / c.responsesPageSize
		before := ""
		for page := 1; page <= pages; page++ {
			q := cloneValues(base)
			q.Set("page_size", strconv.Itoa(c.responsesPageSize))
			q.Set("page", strconv.Itoa(page))
			if before != "" {
				q.Set("before", before)
			}

			var env responsesPage
			if err := c.getJSON(ctx, "/forms/"+url.PathEscape(formID)+"/responses", q, &env, resource, formID); err != nil {
				yield(ResponseItem{}, err)
				return
			}
			for _, item := range env.Items {
				if !yield(item, nil) {
					return
				}
				before = item.Token
			}
		}
	}
}

// getJSON performs one authenticated GET. There is no retry here: any
// transport failure or non-success status aborts the whole sync.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any, resource, formID string) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("typeform %s: %w", resource, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("typeform %s: %w", resource, err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("typeform %s: %w", resource, readErr)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errPayload struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		}
		_ = json.Unmarshal(body, &errPayload)
		return &APIError{
			StatusCode: resp.StatusCode,
			Resource:   resource,
			FormID:     formID,
			Code:       errPayload.Code,
			Message:    errPayload.Description,
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("typeform %s: malformed payload: %w", resource, err)
	}
	return nil
}

func pageCount(reported, total, pageSize int) int {
	if reported > 0 {
		return reported
	}
	return (total + pageSize - 1) / pageSize
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, value := range values {
		out[key] = value
	}
	return out
}
