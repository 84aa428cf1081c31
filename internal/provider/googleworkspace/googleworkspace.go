package googleworkspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/harunnryd/renga/internal/config"
	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/provider"
	"github.com/harunnryd/renga/internal/tool"
)

const (
	ProviderID = "googleworkspace"

	maxResponseBytes  = 4 << 20
	defaultMaxResults = 10
	maxMaxResults     = 50
	defaultSheetRange = "A1:Z100"
	maxDocumentChars  = 3000
)

// Adapter reads Drive, Docs and Sheets through their REST APIs. Every
// operation is read-only, mirroring the readonly OAuth scopes the
// integration is expected to carry.
type Adapter struct {
	client        *http.Client
	accessToken   string
	driveBaseURL  string
	docsBaseURL   string
	sheetsBaseURL string
	retryMax      int
}

func New(cfg config.GoogleConfig, retryMax int) (*Adapter, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, rengaErrors.Configuration("google access token is missing")
	}

	timeout, err := config.DurationOrDefault(cfg.Timeout, config.DefaultGoogleTimeout)
	if err != nil {
		return nil, rengaErrors.Wrap(err, "invalid google timeout")
	}

	driveBaseURL := strings.TrimSuffix(cfg.DriveBaseURL, "/")
	if driveBaseURL == "" {
		driveBaseURL = config.DefaultGoogleDriveBaseURL
	}
	docsBaseURL := strings.TrimSuffix(cfg.DocsBaseURL, "/")
	if docsBaseURL == "" {
		docsBaseURL = config.DefaultGoogleDocsBaseURL
	}
	sheetsBaseURL := strings.TrimSuffix(cfg.SheetsBaseURL, "/")
	if sheetsBaseURL == "" {
		sheetsBaseURL = config.DefaultGoogleSheetsBaseURL
	}

	return &Adapter{
		client:        &http.Client{Timeout: timeout},
		accessToken:   cfg.AccessToken,
		driveBaseURL:  driveBaseURL,
		docsBaseURL:   docsBaseURL,
		sheetsBaseURL: sheetsBaseURL,
		retryMax:      retryMax,
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
			Name:        "search_files",
			Description: "Search Google Drive files by name",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "Text to match against file names",
					},
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of files to return (default 10)",
					},
				},
				"required": []string{"query"},
			},
		},
		{
			Provider:    ProviderID,
			Name:        "list_files",
			Description: "List recently modified Google Drive files",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"max_results": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of files to return (default 10)",
					},
				},
			},
		},
		{
			Provider:    ProviderID,
			Name:        "read_document",
			Description: "Read the text content of a Google Doc",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"document_id": map[string]interface{}{
						"type":        "string",
						"description": "ID of the document to read",
					},
				},
				"required": []string{"document_id"},
			},
		},
		{
			Provider:    ProviderID,
			Name:        "read_spreadsheet",
			Description: "Read cell values from a Google Sheet",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"spreadsheet_id": map[string]interface{}{
						"type":        "string",
						"description": "ID of the spreadsheet to read",
					},
					"range": map[string]interface{}{
						"type":        "string",
						"description": "Cell range to read, for example Sheet1!A1:D10 (default A1:Z100)",
					},
				},
				"required": []string{"spreadsheet_id"},
			},
		},
	}, nil
}

func (a *Adapter) Execute(ctx context.Context, operation string, args json.RawMessage) tool.Result {
	return provider.Protect(func() (json.RawMessage, error) {
		// Every operation here is an idempotent read.
		return provider.WithReadRetry(ctx, a.retryMax, func() (json.RawMessage, error) {
			switch operation {
			case "search_files":
				return a.searchFiles(ctx, args)
			case "list_files":
				return a.listFiles(ctx, args)
			case "read_document":
				return a.readDocument(ctx, args)
			case "read_spreadsheet":
				return a.readSpreadsheet(ctx, args)
			default:
				return nil, fmt.Errorf("operation %s: %w", operation, rengaErrors.ErrUnknownTool)
			}
		})
	})
}

type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	CreatedTime  string `json:"createdTime,omitempty"`
	ModifiedTime string `json:"modifiedTime,omitempty"`
	WebViewLink  string `json:"webViewLink,omitempty"`
}

type driveListResponse struct {
	Files []driveFile `json:"files"`
}

type searchFilesArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

func (a *Adapter) searchFiles(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in searchFilesArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, rengaErrors.InvalidInput("search_files: malformed arguments")
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, rengaErrors.InvalidInput("search_files: query is required")
	}

	query := url.Values{}
	// Drive query operators take single-quoted literals; escape embedded quotes.
	escaped := strings.ReplaceAll(in.Query, `'`, `\'`)
	query.Set("q", fmt.Sprintf("name contains '%s' and trashed=false", escaped))
	query.Set("fields", "files(id, name, mimeType, createdTime, modifiedTime)")
	query.Set("pageSize", fmt.Sprintf("%d", normalizeMaxResults(in.MaxResults)))

	body, err := a.doRequest(ctx, a.driveBaseURL+"/files?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var resp driveListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rengaErrors.Wrap(err, "decode drive search response")
	}

	return json.Marshal(map[string]interface{}{"files": resp.Files, "count": len(resp.Files)})
}

type listFilesArgs struct {
	MaxResults int `json:"max_results"`
}

func (a *Adapter) listFiles(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in listFilesArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, rengaErrors.InvalidInput("list_files: malformed arguments")
		}
	}

	query := url.Values{}
	query.Set("orderBy", "modifiedTime desc")
	query.Set("fields", "files(id, name, mimeType, createdTime, modifiedTime, webViewLink)")
	query.Set("pageSize", fmt.Sprintf("%d", normalizeMaxResults(in.MaxResults)))

	body, err := a.doRequest(ctx, a.driveBaseURL+"/files?"+query.Encode())
	if err != nil {
		return nil, err
	}

	var resp driveListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rengaErrors.Wrap(err, "decode drive list response")
	}

	return json.Marshal(map[string]interface{}{"files": resp.Files, "count": len(resp.Files)})
}

type readDocumentArgs struct {
	DocumentID string `json:"document_id"`
}

type docsResponse struct {
	Title      string `json:"title"`
	RevisionID string `json:"revisionId"`
	Body       struct {
		Content []struct {
			Paragraph *struct {
				Elements []struct {
					TextRun *struct {
						Content string `json:"content"`
					} `json:"textRun"`
				} `json:"elements"`
			} `json:"paragraph"`
		} `json:"content"`
	} `json:"body"`
}

func (a *Adapter) readDocument(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in readDocumentArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, rengaErrors.InvalidInput("read_document: malformed arguments")
	}
	if strings.TrimSpace(in.DocumentID) == "" {
		return nil, rengaErrors.InvalidInput("read_document: document_id is required")
	}

	body, err := a.doRequest(ctx, a.docsBaseURL+"/documents/"+url.PathEscape(in.DocumentID))
	if err != nil {
		return nil, err
	}

	var resp docsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, rengaErrors.Wrap(err, "decode document response")
	}

	var sb strings.Builder
	for _, element := range resp.Body.Content {
		if element.Paragraph == nil {
			continue
		}
		for _, textRun := range element.Paragraph.Elements {
			if textRun.TextRun != nil {
				sb.WriteString(textRun.TextRun.Content)
			}
		}
	}

	content, truncated := truncateRunes(sb.String(), maxDocumentChars)

	return json.Marshal(map[string]interface{}{
		"title":       resp.Title,
		"document_id": in.DocumentID,
		"content":     content,
		"truncated":   truncated,
		"revision_id": resp.RevisionID,
	})
}

type readSpreadsheetArgs struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Range         string `json:"range"`
}

func (a *Adapter) readSpreadsheet(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var in readSpreadsheetArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, rengaErrors.InvalidInput("read_spreadsheet: malformed arguments")
	}
	if strings.TrimSpace(in.SpreadsheetID) == "" {
		return nil, rengaErrors.InvalidInput("read_spreadsheet: spreadsheet_id is required")
	}

	rangeName := strings.TrimSpace(in.Range)
	if rangeName == "" {
		rangeName = defaultSheetRange
	}

	metaBody, err := a.doRequest(ctx,
		a.sheetsBaseURL+"/spreadsheets/"+url.PathEscape(in.SpreadsheetID)+"?fields=properties.title")
	if err != nil {
		return nil, err
	}

	var meta struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(metaBody, &meta); err != nil {
		return nil, rengaErrors.Wrap(err, "decode spreadsheet metadata")
	}

	valuesBody, err := a.doRequest(ctx,
		a.sheetsBaseURL+"/spreadsheets/"+url.PathEscape(in.SpreadsheetID)+"/values/"+url.PathEscape(rangeName))
	if err != nil {
		return nil, err
	}

	var values struct {
		Values [][]interface{} `json:"values"`
	}
	if err := json.Unmarshal(valuesBody, &values); err != nil {
		return nil, rengaErrors.Wrap(err, "decode spreadsheet values")
	}

	return json.Marshal(map[string]interface{}{
		"title":          meta.Properties.Title,
		"spreadsheet_id": in.SpreadsheetID,
		"range":          rangeName,
		"data":           values.Values,
	})
}

// truncateRunes cuts s to at most limit bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, limit int) (string, bool) {
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

func normalizeMaxResults(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	if n > maxMaxResults {
		return maxMaxResults
	}
	return n
}

func (a *Adapter) doRequest(ctx context.Context, endpoint string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, rengaErrors.Wrap(err, "build google request")
	}
	req.Header.Set("Authorization", "Bearer "+a.accessToken)

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
