package knowledge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Retrieve 在指定知识库中检索与问题相关的分块，阈值和 top_k 为零时取默认值
func (c *Client) Retrieve(ctx context.Context, req RetrievalRequest) (RetrievalResult, error) {
	if strings.TrimSpace(req.Question) == "" || len(req.DatasetIDs) == 0 {
		return RetrievalResult{}, fmt.Errorf("%w: question and dataset ids are required", ErrInvalidArgument)
	}
	if req.SimilarityThreshold <= 0 {
		req.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if req.TopK <= 0 {
		req.TopK = DefaultTopK
	}

	var out RetrievalResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/retrieval", req, &out); err != nil {
		return RetrievalResult{}, err
	}
	return out, nil
}
