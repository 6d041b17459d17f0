package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"buddyboard-be/pkg/shape"
)

var ErrDocumentNotFound = errors.New("collab: document not found")

// Document is a board document as served by the note API.
type Document struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Shapes          shape.List `json:"shapes"`
	BackgroundColor string     `json:"backgroundColor"`
}

// DocumentClient talks to the note REST API.
type DocumentClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

var _ DocumentStore = (*DocumentClient)(nil)

func NewDocumentClient(baseURL, token string) *DocumentClient {
	return &DocumentClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type persistRequest struct {
	Shapes shape.List `json:"shapes"`
}

// LoadDocument fetches the document with its shapes.
func (d *DocumentClient) LoadDocument(ctx context.Context, documentID string) (*Document, error) {
	data, err := d.do(ctx, http.MethodGet, documentID, nil)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	if doc.Shapes == nil {
		doc.Shapes = shape.List{}
	}
	return &doc, nil
}

// PersistDocument overwrites the document's shapes.
func (d *DocumentClient) PersistDocument(ctx context.Context, documentID string, shapes shape.List) error {
	payload, err := json.Marshal(persistRequest{Shapes: shapes})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = d.do(ctx, http.MethodPut, documentID, payload)
	return err
}

func (d *DocumentClient) do(ctx context.Context, method, documentID string, payload []byte) (json.RawMessage, error) {
	endpoint := d.BaseURL + "/api/note/v1/" + url.PathEscape(documentID)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, documentID)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("document service error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var env envelope
	if err := json.Unmarshal(bodyBytes, &env); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return env.Data, nil
}
