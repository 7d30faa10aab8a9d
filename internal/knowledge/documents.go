package knowledge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/lgc202/llm-gateway/httpx"
)

func (c *Client) ListDocuments(ctx context.Context, datasetID string, opts ListOptions) ([]Document, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: dataset id is required", ErrInvalidArgument)
	}
	var out struct {
		Docs  []Document `json:"docs"`
		Total int        `json:"total"`
	}
	if err := c.doJSON(ctx, http.MethodGet, datasetPath(datasetID, "documents"), nil, &out, opts.query()...); err != nil {
		return nil, err
	}
	return out.Docs, nil
}

// UploadDocument 以 multipart 表单流式上传单个文件，body 不可重放，因此不重试
func (c *Client) UploadDocument(ctx context.Context, datasetID, filename, contentType string, r io.Reader) ([]Document, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("%w: dataset id is required", ErrInvalidArgument)
	}
	body, ct := multipartBody(filename, contentType, r)
	defer body.Close()

	req, err := c.http.NewRequest(ctx, http.MethodPost, datasetPath(datasetID, "documents"),
		httpx.WithBody(body, ct),
		httpx.WithHeader("Accept", "application/json"),
		httpx.WithBearerToken(c.apiKey),
	)
	if err != nil {
		return nil, fmt.Errorf("knowledge: build request: %w", err)
	}

	var out []Document
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	c.logger.Info().Str("dataset", datasetID).Str("file", filename).Int("documents", len(out)).Msg("document uploaded")
	return out, nil
}

func (c *Client) UpdateDocument(ctx context.Context, datasetID, documentID string, req UpdateDocumentRequest) error {
	if datasetID == "" || documentID == "" {
		return fmt.Errorf("%w: dataset and document ids are required", ErrInvalidArgument)
	}
	return c.doJSON(ctx, http.MethodPut, datasetPath(datasetID, "documents", url.PathEscape(documentID)), req, nil)
}

func (c *Client) DeleteDocuments(ctx context.Context, datasetID string, documentIDs ...string) error {
	if datasetID == "" || len(documentIDs) == 0 {
		return fmt.Errorf("%w: dataset and document ids are required", ErrInvalidArgument)
	}
	return c.doJSON(ctx, http.MethodDelete, datasetPath(datasetID, "documents"), idsBody{IDs: documentIDs}, nil)
}

// ParseDocuments 触发文档解析（分块）
func (c *Client) ParseDocuments(ctx context.Context, datasetID string, documentIDs ...string) error {
	if datasetID == "" || len(documentIDs) == 0 {
		return fmt.Errorf("%w: dataset and document ids are required", ErrInvalidArgument)
	}
	return c.doJSON(ctx, http.MethodPost, datasetPath(datasetID, "chunks"), documentIDsBody{DocumentIDs: documentIDs}, nil)
}

func (c *Client) StopParsing(ctx context.Context, datasetID string, documentIDs ...string) error {
	if datasetID == "" || len(documentIDs) == 0 {
		return fmt.Errorf("%w: dataset and document ids are required", ErrInvalidArgument)
	}
	return c.doJSON(ctx, http.MethodDelete, datasetPath(datasetID, "chunks"), documentIDsBody{DocumentIDs: documentIDs}, nil)
}
