package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/harunnryd/renga/internal/config"
	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/provider"
	"github.com/harunnryd/renga/internal/tool"
)

const (
	ProviderID = "notion"

	maxResponseBytes = 2 << 20
	searchPageSize   = 10
	blockPageSize    = 100
)

// Adapter talks to the Notion REST API with a workspace integration token.
type Adapter struct {
	client   *http.Client
	baseURL  string
	token    string
	version  string
	retryMax int
}

func New(cfg config.NotionConfig, retryMax int) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, rengaErrors.Configuration("notion token is missing")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultNotionBaseURL
	}
	version := cfg.Version
	if version == "" {
		version = config.DefaultNotionVersion
	}

	timeout, err := config.DurationOrDefault(cfg.Timeout, config.DefaultNotionTimeout)
	if err != nil {
		return nil, rengaErrors.Wrap(err, "invalid notion timeout")
	}

	return &Adapter{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		token:    cfg.Token,
		version:  version,
		retryMax: retryMax,
	}, nil
}

func (a *Adapter) ID() string {
	return ProviderID
}

func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) Descriptors(ctx context.Context) ([]tool.Descriptor, error) {
	return []tool.Descriptor{
		{
			Provider:    ProviderID,
			Name:        "search_pages",
			Description: "Search for pages in the Notion workspace by title",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Text to match against page titles",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Provider:    ProviderID,
			Name:        "read_page",
			Description: "Read the text content of a Notion page",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"page_id": map[string]interface{}{
						"type":        "string",
						"description": "ID of the page to read",
					},
				},
				"required": []string{"page_id"},
			},
		},
		{
			Provider:    ProviderID,
			Name:        "create_page",
			Description: "Create a new Notion page with a title and text content",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Title of the new page",
					},
					"content": map[string]interface{}{
						"type":        "string",
						"description": "Body text of the new page",
					},
					"parent_id": map[string]interface{}{
						"type":        "string",
						"description": "Optional parent page ID; discovered via search when omitted",
					},
				},
				"required": []string{"title", "content"},
			},
		},
		{
			Provider:    ProviderID,
			Name:        "query_database",
			Description: "Query all entries of a Notion database",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"database_id": map[string]interface{}{
						"type":        "string",
						"description": "ID of the database to query",
					},
				},
				"required": []string{"database_id"},
			},
		},
	}, nil
}

func (a *Adapter) Execute(ctx context.Context, operation string, args json.RawMessage) tool.Result {
	return provider.Protect(func() (json.RawMessage, error) {
		switch operation {
		case "search_pages":
			return provider.WithReadRetry(ctx, a.retryMax, func() (json.RawMessage, error) {
				return a.searchPages(ctx, args)
			})
		case "read_page":
			return provider.WithReadRetry(ctx, a.retryMax, func() (json.RawMessage, error) {
				return a.readPage(ctx, args)
			})
		case "query_database":
			return provider.WithReadRetry(ctx, a.retryMax, func() (json.RawMessage, error) {
				return a.queryDatabase(ctx, args)
			})
		case "create_page":
			// Write: a single attempt, never retried.
			return a.createPage(ctx, args)
		default:
			return nil, fmt.Errorf("operation %s: %w", operation, rengaErrors.ErrUnknownTool)
		}
	})
}

type searchArgs struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Results []struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		Properties map[string]struct {
			Title []richText `json:"title"`
		} `json:"properties"`
	} `json:"results"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

func (a *Adapter) searchPages(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in searchArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, rengaErrors.InvalidInput("search_pages: malformed arguments")
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, rengaErrors.InvalidInput("search_pages: query is required")
	}

	body, err := a.doRequest(ctx, http.MethodPost, "/v1/search", map[string]interface{}{
		"query":     in.Query,
		"filter":    map[string]string{"property": "object", "value": "page"},
		"page_size": searchPageSize,
	})
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rengaErrors.Wrap(err, "decode search response")
	}

	pages := make([]map[string]string, 0, len(resp.Results))
	for _, result := range resp.Results {
		page := map[string]string{"id": result.ID, "url": result.URL}
		for _, prop := range result.Properties {
			if len(prop.Title) > 0 {
				page["title"] = prop.Title[0].PlainText
				break
			}
		}
		pages = append(pages, page)
	}

	return json.Marshal(map[string]interface{}{"pages": pages, "count": len(pages)})
}

type readPageArgs struct {
	PageID string `json:"page_id"`
}

type blockChildrenResponse struct {
	Results []map[string]json.RawMessage `json:"results"`
}

type blockText struct {
	RichText []richText `json:"rich_text"`
}

// textBlockTypes are the block kinds whose rich_text is flattened into the
// page content, like the original integration read pages.
var textBlockTypes = []string{
	"paragraph", "bulleted_list_item", "numbered_list_item",
	"heading_1", "heading_2", "heading_3", "to_do", "quote",
}

func (a *Adapter) readPage(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in readPageArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, rengaErrors.InvalidInput("read_page: malformed arguments")
	}
	if strings.TrimSpace(in.PageID) == "" {
		return nil, rengaErrors.InvalidInput("read_page: page_id is required")
	}

	path := fmt.Sprintf("/v1/blocks/%s/children?page_size=%d", in.PageID, blockPageSize)
	body, err := a.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp blockChildrenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rengaErrors.Wrap(err, "decode block children response")
	}

	var parts []string
	for _, block := range resp.Results {
		for _, blockType := range textBlockTypes {
			raw, ok := block[blockType]
			if !ok {
				continue
			}
			var bt blockText
			if err := json.Unmarshal(raw, &bt); err != nil {
				continue
			}
			for _, rt := range bt.RichText {
				if rt.PlainText != "" {
					parts = append(parts, rt.PlainText)
				}
			}
			break
		}
	}

	return json.Marshal(map[string]interface{}{
		"page_id": in.PageID,
		"content": strings.Join(parts, "\n"),
		"blocks":  len(resp.Results),
	})
}

type createPageArgs struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ParentID string `json:"parent_id"`
}

func (a *Adapter) createPage(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in createPageArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, rengaErrors.InvalidInput("create_page: malformed arguments")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, rengaErrors.InvalidInput("create_page: title is required")
	}

	parentID := strings.TrimSpace(in.ParentID)
	if parentID == "" {
		discovered, err := a.discoverParent(ctx)
		if err != nil {
			return nil, err
		}
		parentID = discovered
	}

	payload := map[string]interface{}{
		"parent": map[string]string{"page_id": parentID},
		"properties": map[string]interface{}{
			"title": map[string]interface{}{
				"title": []map[string]interface{}{
					{"text": map[string]string{"content": in.Title}},
				},
			},
		},
		"children": []map[string]interface{}{
			{
				"object": "block",
				"type":   "paragraph",
				"paragraph": map[string]interface{}{
					"rich_text": []map[string]interface{}{
						{"type": "text", "text": map[string]string{"content": in.Content}},
					},
				},
			},
		},
	}

	body, err := a.doRequest(ctx, http.MethodPost, "/v1/pages", payload)
	if err != nil {
		return nil, err
	}

	var created struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, rengaErrors.Wrap(err, "decode create page response")
	}

	return json.Marshal(map[string]string{
		"page_id": created.ID,
		"url":     created.URL,
		"title":   in.Title,
	})
}

// discoverParent finds any accessible page to hang a new page under when the
// caller did not name one.
func (a *Adapter) discoverParent(ctx context.Context) (string, error) {
	body, err := a.doRequest(ctx, http.MethodPost, "/v1/search", map[string]interface{}{
		"filter":    map[string]string{"property": "object", "value": "page"},
		"page_size": 1,
	})
	if err != nil {
		return "", err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", rengaErrors.Wrap(err, "decode parent search response")
	}
	if len(resp.Results) == 0 {
		return "", rengaErrors.InvalidInput("create_page: no parent page found, pass parent_id")
	}
	return resp.Results[0].ID, nil
}

type queryDatabaseArgs struct {
	DatabaseID string `json:"database_id"`
}

func (a *Adapter) queryDatabase(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in queryDatabaseArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, rengaErrors.InvalidInput("query_database: malformed arguments")
	}
	if strings.TrimSpace(in.DatabaseID) == "" {
		return nil, rengaErrors.InvalidInput("query_database: database_id is required")
	}

	path := fmt.Sprintf("/v1/databases/%s/query", in.DatabaseID)
	body, err := a.doRequest(ctx, http.MethodPost, path, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rengaErrors.Wrap(err, "decode database query response")
	}

	return json.Marshal(map[string]interface{}{
		"database_id": in.DatabaseID,
		"entries":     resp.Results,
		"count":       len(resp.Results),
	})
}

func (a *Adapter) doRequest(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, rengaErrors.Wrap(err, "encode request payload")
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, rengaErrors.Wrap(err, "build notion request")
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Notion-Version", a.version)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, rengaErrors.MapError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, rengaErrors.MapError(err)
	}

	if err := rengaErrors.MapHTTPStatus(resp.StatusCode, string(data)); err != nil {
		return nil, err
	}

	return data, nil
}
