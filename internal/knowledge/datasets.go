package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const datasetsPath = "/api/v1/datasets"

func datasetPath(id string, sub ...string) string {
	p := datasetsPath + "/" + url.PathEscape(id)
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

func (c *Client) ListDatasets(ctx context.Context, opts ListOptions) ([]Dataset, error) {
	var out []Dataset
	if err := c.doJSON(ctx, http.MethodGet, datasetsPath, nil, &out, opts.query()...); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDataset 未指定的 embedding 模型、分块方式和解析配置使用默认值
func (c *Client) CreateDataset(ctx context.Context, req CreateDatasetRequest) (Dataset, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Dataset{}, fmt.Errorf("%w: dataset name is required", ErrInvalidArgument)
	}
	if req.EmbeddingModel == "" {
		req.EmbeddingModel = DefaultEmbeddingModel
	}
	if req.ChunkMethod == "" {
		req.ChunkMethod = DefaultChunkMethod
	}
	if req.ParserConfig == nil {
		pc := DefaultParserConfig()
		req.ParserConfig = &pc
	}

	var out Dataset
	if err := c.doJSON(ctx, http.MethodPost, datasetsPath, req, &out); err != nil {
		return Dataset{}, err
	}
	return out, nil
}

func (c *Client) UpdateDataset(ctx context.Context, id string, req UpdateDatasetRequest) error {
	if id == "" {
		return fmt.Errorf("%w: dataset id is required", ErrInvalidArgument)
	}
	return c.doJSON(ctx, http.MethodPut, datasetPath(id), req, nil)
}

func (c *Client) DeleteDatasets(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: dataset ids are required", ErrInvalidArgument)
	}
	return c.doJSON(ctx, http.MethodDelete, datasetsPath, idsBody{IDs: ids}, nil)
}

type idsBody struct {
	IDs []string `json:"ids"`
}

type documentIDsBody struct {
	DocumentIDs []string `json:"document_ids"`
}
