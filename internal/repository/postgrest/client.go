package postgrest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/stockboard/internal/config"
	"github.com/mamadbah2/stockboard/internal/repository/table"
)

const restPath = "/rest/v1"

// Client is a resty-backed implementation of table.Client talking to a
// PostgREST endpoint (Supabase REST API).
type Client struct {
	httpClient *resty.Client
}

var _ table.Client = (*Client)(nil)

// NewClient builds a PostgREST client using the provided backend configuration.
func NewClient(cfg config.BackendConfig) *Client {
	base := strings.TrimSuffix(cfg.URL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(base+restPath).
		SetHeader("apikey", cfg.APIKey).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Accept", "application/json").
		SetTimeout(15 * time.Second)

	return &Client{httpClient: restyClient}
}

// apiError represents a PostgREST error payload.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Query selects every column of tableName ordered and limited per opts.
func (c *Client) Query(ctx context.Context, tableName string, opts table.Options) ([]table.Row, error) {
	if tableName == "" {
		return nil, fmt.Errorf("table name must not be empty")
	}

	params := map[string]string{"select": "*"}
	if opts.OrderBy != "" {
		direction := "desc"
		if opts.Ascending {
			direction = "asc"
		}
		params["order"] = fmt.Sprintf("%s.%s", opts.OrderBy, direction)
	}
	if opts.Limit > 0 {
		params["limit"] = strconv.Itoa(opts.Limit)
	}

	var rows []table.Row
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&rows).
		SetError(apiErr).
		Get("/" + tableName)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableName, err)
	}

	if resp.IsError() {
		message := apiErr.Message
		if message == "" {
			message = strings.TrimSpace(resp.String())
		}
		return nil, fmt.Errorf("query %s: status=%d code=%s message=%s", tableName, resp.StatusCode(), apiErr.Code, message)
	}

	return rows, nil
}
