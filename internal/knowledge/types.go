package knowledge

// 创建知识库时的默认解析配置
const (
	DefaultEmbeddingModel = "BAAI/bge-large-zh-v1.5"
	DefaultChunkMethod    = "naive"
	defaultChunkTokenNum  = 128
	defaultDelimiter      = "\\n!?;。；！？"

	DefaultSimilarityThreshold = 0.2
	DefaultTopK                = 5
)

type RaptorConfig struct {
	UseRaptor bool `json:"use_raptor"`
}

type ParserConfig struct {
	ChunkTokenNum   int           `json:"chunk_token_num,omitempty"`
	Delimiter       string        `json:"delimiter,omitempty"`
	HTML4Excel      bool          `json:"html4excel"`
	LayoutRecognize bool          `json:"layout_recognize"`
	Raptor          *RaptorConfig `json:"raptor,omitempty"`
}

// DefaultParserConfig 返回 naive 分块方式的默认配置
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		ChunkTokenNum:   defaultChunkTokenNum,
		Delimiter:       defaultDelimiter,
		HTML4Excel:      false,
		LayoutRecognize: true,
		Raptor:          &RaptorConfig{UseRaptor: false},
	}
}

type Dataset struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Avatar         string        `json:"avatar,omitempty"`
	Language       string        `json:"language,omitempty"`
	Permission     string        `json:"permission,omitempty"`
	EmbeddingModel string        `json:"embedding_model,omitempty"`
	ChunkMethod    string        `json:"chunk_method,omitempty"`
	ParserConfig   *ParserConfig `json:"parser_config,omitempty"`
	ChunkCount     int           `json:"chunk_count"`
	DocumentCount  int           `json:"document_count"`
	CreateTime     int64         `json:"create_time,omitempty"`
	UpdateTime     int64         `json:"update_time,omitempty"`
}

// CreateDatasetRequest 零值字段在发送前用默认值补齐
type CreateDatasetRequest struct {
	Name           string        `json:"name"`
	Description    *string       `json:"description"`
	EmbeddingModel string        `json:"embedding_model"`
	ChunkMethod    string        `json:"chunk_method"`
	ParserConfig   *ParserConfig `json:"parser_config"`
}

type UpdateDatasetRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type Document struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	DatasetID    string        `json:"dataset_id,omitempty"`
	Type         string        `json:"type,omitempty"`
	Size         int64         `json:"size"`
	Location     string        `json:"location,omitempty"`
	ChunkMethod  string        `json:"chunk_method,omitempty"`
	ParserConfig *ParserConfig `json:"parser_config,omitempty"`
	Run          string        `json:"run,omitempty"`
	Progress     float64       `json:"progress"`
	ChunkCount   int           `json:"chunk_count"`
	TokenCount   int           `json:"token_count"`
	CreateTime   int64         `json:"create_time,omitempty"`
}

type UpdateDocumentRequest struct {
	ChunkMethod  string        `json:"chunk_method"`
	ParserConfig *ParserConfig `json:"parser_config"`
}

// ListOptions 列表分页与过滤参数，零值字段不发送
type ListOptions struct {
	Page     int
	PageSize int
	OrderBy  string
	Desc     *bool
	Name     string
	ID       string
}

type RetrievalRequest struct {
	Question            string   `json:"question"`
	DatasetIDs          []string `json:"dataset_ids"`
	DocumentIDs         []string `json:"document_ids,omitempty"`
	SimilarityThreshold float64  `json:"similarity_threshold"`
	TopK                int      `json:"top_k"`
}

type Chunk struct {
	ID               string   `json:"id"`
	Content          string   `json:"content"`
	DocumentID       string   `json:"document_id"`
	DocumentKeyword  string   `json:"document_keyword,omitempty"`
	DatasetID        string   `json:"kb_id,omitempty"`
	ImportantKeyword []string `json:"important_keywords,omitempty"`
	Similarity       float64  `json:"similarity"`
	VectorSimilarity float64  `json:"vector_similarity"`
	TermSimilarity   float64  `json:"term_similarity"`
}

type DocumentAggregate struct {
	DocumentID   string `json:"doc_id"`
	DocumentName string `json:"doc_name"`
	Count        int    `json:"count"`
}

type RetrievalResult struct {
	Chunks       []Chunk             `json:"chunks"`
	DocumentAggs []DocumentAggregate `json:"doc_aggs,omitempty"`
	Total        int                 `json:"total"`
}
