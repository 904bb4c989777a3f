package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-crm-sync/core"
	"github.com/goliatone/go-crm-sync/ratelimit"
)

// Config wires the remote CRM client.
type Config struct {
	Endpoint string
	Space    string
	Token    string
	Adapter  core.TransportAdapter
	Policy   core.RateLimitPolicy
	Logger   core.Logger
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("remote: endpoint is required")
	}
	if strings.TrimSpace(c.Space) == "" {
		return fmt.Errorf("remote: team space is required")
	}
	if c.Adapter == nil {
		return fmt.Errorf("remote: transport adapter is required")
	}
	return nil
}

// Client speaks the remote CRM's GraphQL API through a transport adapter.
// Every call passes the rate-limit policy keyed by (space, entity) so one
// hot entity type cannot starve the rest.
type Client struct {
	endpoint string
	space    string
	token    string
	adapter  core.TransportAdapter
	policy   core.RateLimitPolicy
	logger   core.Logger
}

func New(cfg Config) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		_, logger = glog.Resolve("remote", nil, nil)
	}
	return &Client{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		space:    strings.TrimSpace(cfg.Space),
		token:    strings.TrimSpace(cfg.Token),
		adapter:  cfg.Adapter,
		policy:   cfg.Policy,
		logger:   logger,
	}, nil
}

type graphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (c *Client) FetchByReference(ctx context.Context, entityType string, reference string) (core.Record, error) {
	data, err := c.call(ctx, entityType, "FetchByReference", queryFetchByReference, map[string]any{
		"type":  remoteTypeName(entityType),
		"id":    reference,
		"space": c.space,
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Entity map[string]any `json:"entity"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, core.NewTransportError("remote: malformed fetch response", err)
	}
	if payload.Entity == nil {
		return nil, core.NewNotFoundError("remote: reference not found", map[string]any{
			"entity":    entityType,
			"reference": reference,
		})
	}
	return flattenEntity(payload.Entity), nil
}

func (c *Client) FetchMetadata(ctx context.Context, entityType string, reference string) (core.RemoteMetadata, error) {
	data, err := c.call(ctx, entityType, "FetchMetadata", queryFetchMetadata, map[string]any{
		"type":  remoteTypeName(entityType),
		"id":    reference,
		"space": c.space,
	})
	if err != nil {
		return core.RemoteMetadata{}, err
	}
	var payload struct {
		Entity map[string]any `json:"entity"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return core.RemoteMetadata{}, core.NewTransportError("remote: malformed metadata response", err)
	}
	if payload.Entity == nil {
		return core.RemoteMetadata{}, core.NewNotFoundError("remote: reference not found", map[string]any{
			"entity":    entityType,
			"reference": reference,
		})
	}
	return metadataFromMap(payload.Entity), nil
}

func (c *Client) CountModifiedSince(ctx context.Context, entityType string, salesUnitIDs []string, sinceRevision int64) (int, error) {
	data, err := c.call(ctx, entityType, "CountModifiedSince", queryCountModifiedSince, map[string]any{
		"type":  remoteTypeName(entityType),
		"space": c.space,
		"units": salesUnitIDs,
		"since": sinceRevision,
	})
	if err != nil {
		return 0, err
	}
	var payload struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, core.NewTransportError("remote: malformed count response", err)
	}
	return payload.Count, nil
}

func (c *Client) ListModifiedSince(ctx context.Context, entityType string, salesUnitIDs []string, sinceRevision int64, cursor string, limit int) (core.RemotePage, error) {
	data, err := c.call(ctx, entityType, "ListModifiedSince", queryListModifiedSince, map[string]any{
		"type":   remoteTypeName(entityType),
		"space":  c.space,
		"units":  salesUnitIDs,
		"since":  sinceRevision,
		"cursor": cursor,
		"limit":  limit,
	})
	if err != nil {
		return core.RemotePage{}, err
	}
	var payload struct {
		Page struct {
			Items      []map[string]any `json:"items"`
			NextCursor string           `json:"nextCursor"`
			HasMore    bool             `json:"hasMore"`
		} `json:"page"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return core.RemotePage{}, core.NewTransportError("remote: malformed page response", err)
	}
	page := core.RemotePage{
		NextCursor: payload.Page.NextCursor,
		HasMore:    payload.Page.HasMore,
	}
	for _, item := range payload.Page.Items {
		page.Items = append(page.Items, flattenEntity(item))
	}
	return page, nil
}

func (c *Client) Upsert(ctx context.Context, entityType string, originReference string, record core.Record) (core.RemoteMetadata, error) {
	data, err := c.call(ctx, entityType, "Upsert", mutationUpsert, map[string]any{
		"type":   remoteTypeName(entityType),
		"space":  c.space,
		"origin": originReference,
		"record": map[string]any(record),
	})
	if err != nil {
		return core.RemoteMetadata{}, err
	}
	var payload struct {
		Upsert map[string]any `json:"upsert"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return core.RemoteMetadata{}, core.NewTransportError("remote: malformed upsert response", err)
	}
	if payload.Upsert == nil {
		return core.RemoteMetadata{}, core.NewRemoteRejectedError("remote: upsert returned no result", nil)
	}
	return metadataFromMap(payload.Upsert), nil
}

func (c *Client) call(ctx context.Context, entityType, operationName, query string, variables map[string]any) (json.RawMessage, error) {
	key := core.RateLimitKey{Space: c.space, Entity: entityType}
	if c.policy != nil {
		if err := c.policy.BeforeCall(ctx, key); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return nil, throttled.ToSyncError()
			}
			return nil, err
		}
	}

	res, err := c.adapter.Do(ctx, core.TransportRequest{
		URL:     c.endpoint,
		Headers: c.headers(),
		Metadata: map[string]any{
			"query":          query,
			"operation_name": operationName,
			"variables":      variables,
		},
	})
	if c.policy != nil {
		meta := core.RemoteResponseMeta{StatusCode: res.StatusCode, Headers: res.Headers}
		if afterErr := c.policy.AfterCall(ctx, key, meta); afterErr != nil {
			c.logger.Warn("rate limit state update failed",
				"entity", entityType,
				"error", afterErr,
			)
		}
	}
	if err != nil {
		return nil, core.NewTransportError("remote: call failed", err)
	}

	if err := classifyStatus(res.StatusCode, entityType); err != nil {
		return nil, err
	}

	var decoded graphQLResponse
	if err := json.Unmarshal(res.Body, &decoded); err != nil {
		return nil, core.NewTransportError("remote: malformed response body", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, classifyGraphQLError(decoded.Errors[0], entityType)
	}
	return decoded.Data, nil
}

func (c *Client) headers() map[string]string {
	headers := map[string]string{}
	if c.token != "" {
		headers["Authorization"] = "Bearer " + c.token
	}
	return headers
}

func classifyStatus(statusCode int, entityType string) error {
	switch {
	case statusCode == http.StatusNotFound:
		return core.NewNotFoundError("remote: endpoint answered 404", map[string]any{"entity": entityType})
	case statusCode == http.StatusTooManyRequests:
		return core.NewRateLimitedError("remote: rate limited", map[string]any{"entity": entityType})
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		return core.NewRemoteRejectedError(fmt.Sprintf("remote: rejected request with %d", statusCode), nil)
	case statusCode >= 500:
		return core.NewTransportError(fmt.Sprintf("remote: upstream failure %d", statusCode), nil)
	case statusCode >= 300:
		return core.NewTransportError(fmt.Sprintf("remote: unexpected status %d", statusCode), nil)
	default:
		return nil
	}
}

func classifyGraphQLError(gqlErr graphQLError, entityType string) error {
	code := ""
	if gqlErr.Extensions != nil {
		code = strings.ToUpper(strings.TrimSpace(fmt.Sprint(gqlErr.Extensions["code"])))
	}
	switch code {
	case "NOT_FOUND":
		return core.NewNotFoundError(gqlErr.Message, map[string]any{"entity": entityType})
	case "RATE_LIMITED", "THROTTLED":
		return core.NewRateLimitedError(gqlErr.Message, map[string]any{"entity": entityType})
	default:
		return core.NewRemoteRejectedError(gqlErr.Message, nil)
	}
}

// flattenEntity folds the optional data envelope into the record so strategy
// code sees one flat attribute map.
func flattenEntity(entity map[string]any) core.Record {
	record := make(core.Record, len(entity))
	for key, value := range entity {
		if key == "data" {
			if nested, ok := value.(map[string]any); ok {
				for nestedKey, nestedValue := range nested {
					record[nestedKey] = nestedValue
				}
				continue
			}
		}
		record[key] = value
	}
	return record
}

func metadataFromMap(entity map[string]any) core.RemoteMetadata {
	record := core.Record(entity)
	meta := core.RemoteMetadata{
		ID:       record.String("id"),
		Revision: record.Int64("revision"),
	}
	if ts, err := time.Parse(time.RFC3339, record.String("created")); err == nil {
		meta.Created = ts
	}
	if ts, err := time.Parse(time.RFC3339, record.String("modified")); err == nil {
		meta.Modified = ts
	}
	return meta
}

var _ core.RemoteClient = (*Client)(nil)
