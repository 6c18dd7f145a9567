// Package dhis2 posts aggregate data value sets to a DHIS2 instance.
package dhis2

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/FelixKiprotich350/ampath-facility-client-tool-sub000/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const dataValueSetsPath = "/api/dataValueSets"

// Client is a thin DHIS2 API client
type Client struct {
	http *resty.Client
	log  zerolog.Logger
}

// Response is the classified answer to a data value set submission
type Response struct {
	StatusCode int
	Body       []byte
	Message    string
	Conflicts  []models.ImportConflict
}

// Success reports whether the submission was accepted (any 2xx)
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// NewClient creates a client for the instance at baseURL
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http: c,
		log:  log.With().Str("component", "dhis2").Logger(),
	}
}

// PostDataValueSet submits one payload with Basic auth. A non-nil error means the
// request never produced an HTTP response; classify it with ClassifyError.
func (c *Client) PostDataValueSet(ctx context.Context, creds models.Credentials, payload *models.DataValueSet) (*Response, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(creds.Username, creds.Password).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(dataValueSetsPath)
	if err != nil {
		return nil, err
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}
	out.Message, out.Conflicts = parseBody(resp.Body())
	if out.Message == "" && !out.Success() {
		out.Message = http.StatusText(out.StatusCode)
	}

	c.log.Debug().
		Int("status", out.StatusCode).
		Str("period", payload.Period).
		Int("values", len(payload.DataValues)).
		Msg("Data value set posted")

	return out, nil
}

// webMessage covers both the flat import summary of older DHIS2 versions and the
// wrapped web message of newer ones.
type webMessage struct {
	Message     string                  `json:"message"`
	Description string                  `json:"description"`
	Conflicts   []models.ImportConflict `json:"conflicts"`
	Response    *struct {
		Description string                  `json:"description"`
		Conflicts   []models.ImportConflict `json:"conflicts"`
	} `json:"response"`
}

func parseBody(body []byte) (string, []models.ImportConflict) {
	var msg webMessage
	if len(body) == 0 || json.Unmarshal(body, &msg) != nil {
		return "", nil
	}

	message := msg.Message
	if message == "" {
		message = msg.Description
	}
	conflicts := msg.Conflicts

	if msg.Response != nil {
		if message == "" {
			message = msg.Response.Description
		}
		if len(conflicts) == 0 {
			conflicts = msg.Response.Conflicts
		}
	}
	return message, conflicts
}
