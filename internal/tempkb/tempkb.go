// Package tempkb 管理网页问答使用的临时知识库：一个按名称约定的 RAGFlow 数据集，
// 前端把正在浏览的网页或本地文件放进去，问答结束后清理未锁定的文档。
package tempkb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/lgc202/llm-gateway/internal/knowledge"
)

const (
	DefaultDatasetName = "网页问答临时知识库"

	pageSize = 100
	maxPages = 50

	maxFilenameRunes = 80
)

// ErrDatasetNotFound 知识库服务中没有约定名称的数据集
var ErrDatasetNotFound = errors.New("tempkb: dataset not found")

// Store 是 tempkb 用到的知识库操作，*knowledge.Client 满足该接口
type Store interface {
	ListDatasets(ctx context.Context, opts knowledge.ListOptions) ([]knowledge.Dataset, error)
	ListDocuments(ctx context.Context, datasetID string, opts knowledge.ListOptions) ([]knowledge.Document, error)
	UploadDocument(ctx context.Context, datasetID, filename, contentType string, r io.Reader) ([]knowledge.Document, error)
	DeleteDocuments(ctx context.Context, datasetID string, documentIDs ...string) error
}

type Service struct {
	store  Store
	name   string
	logger zerolog.Logger

	mu        sync.Mutex
	datasetID string
}

// New 创建 Service，name 为空时使用 DefaultDatasetName
func New(store Store, name string, logger zerolog.Logger) *Service {
	if strings.TrimSpace(name) == "" {
		name = DefaultDatasetName
	}
	return &Service{
		store:  store,
		name:   name,
		logger: logger.With().Str("component", "tempkb").Logger(),
	}
}

func (s *Service) DatasetName() string { return s.name }

// dataset 返回临时数据集 id。找到后缓存，找不到时下次调用重新查找。
func (s *Service) dataset(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.datasetID != "" {
		return s.datasetID, nil
	}

	all, err := collect(func(page int) ([]knowledge.Dataset, error) {
		return s.store.ListDatasets(ctx, knowledge.ListOptions{Page: page, PageSize: pageSize})
	})
	if err != nil {
		return "", err
	}
	for _, ds := range all {
		if ds.Name == s.name {
			s.datasetID = ds.ID
			s.logger.Debug().Str("dataset", ds.ID).Msg("temp dataset resolved")
			return ds.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrDatasetNotFound, s.name)
}

// Documents 列出临时数据集中的全部文档
func (s *Service) Documents(ctx context.Context) ([]knowledge.Document, error) {
	id, err := s.dataset(ctx)
	if err != nil {
		return nil, err
	}
	return s.documents(ctx, id)
}

func (s *Service) documents(ctx context.Context, datasetID string) ([]knowledge.Document, error) {
	return collect(func(page int) ([]knowledge.Document, error) {
		return s.store.ListDocuments(ctx, datasetID, knowledge.ListOptions{Page: page, PageSize: pageSize})
	})
}

// Upload 上传一个文件，返回知识库创建的文档
func (s *Service) Upload(ctx context.Context, filename, contentType string, r io.Reader) (knowledge.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return knowledge.Document{}, fmt.Errorf("%w: filename is required", knowledge.ErrInvalidArgument)
	}
	id, err := s.dataset(ctx)
	if err != nil {
		return knowledge.Document{}, err
	}
	docs, err := s.store.UploadDocument(ctx, id, filename, contentType, r)
	if err != nil {
		return knowledge.Document{}, err
	}
	if len(docs) == 0 {
		return knowledge.Document{}, fmt.Errorf("tempkb: upload of %q returned no document", filename)
	}
	s.logger.Info().Str("document", docs[0].ID).Str("file", filename).Msg("temp document added")
	return docs[0], nil
}

type Webpage struct {
	Title   string
	URL     string
	Content string
}

func (p Webpage) text() string {
	var b strings.Builder
	b.WriteString("Title: " + p.Title + "\n")
	b.WriteString("URL: " + p.URL + "\n")
	b.WriteString("\nContent:\n")
	b.WriteString(p.Content)
	return b.String()
}

// AddWebpage 把网页内容保存为一个纯文本文档
func (s *Service) AddWebpage(ctx context.Context, p Webpage) (knowledge.Document, error) {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.URL) == "" || strings.TrimSpace(p.Content) == "" {
		return knowledge.Document{}, fmt.Errorf("%w: title, url and content are required", knowledge.ErrInvalidArgument)
	}
	return s.Upload(ctx, webpageFilename(p.Title), "text/plain; charset=utf-8", strings.NewReader(p.text()))
}

// webpageFilename 由标题生成文件名，去掉路径分隔符和控制字符
func webpageFilename(title string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '"':
			return '_'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	if rs := []rune(name); len(rs) > maxFilenameRunes {
		name = string(rs[:maxFilenameRunes])
	}
	if name == "" {
		name = "webpage"
	}
	return name + ".txt"
}

func (s *Service) Delete(ctx context.Context, documentID string) error {
	if strings.TrimSpace(documentID) == "" {
		return fmt.Errorf("%w: document id is required", knowledge.ErrInvalidArgument)
	}
	id, err := s.dataset(ctx)
	if err != nil {
		return err
	}
	return s.store.DeleteDocuments(ctx, id, documentID)
}

// ClearUnlocked 删除不在 locked 中的全部文档，返回删除的数量
func (s *Service) ClearUnlocked(ctx context.Context, locked []string) (int, error) {
	id, err := s.dataset(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := s.documents(ctx, id)
	if err != nil {
		return 0, err
	}

	var unlocked []string
	for _, d := range docs {
		if !slices.Contains(locked, d.ID) {
			unlocked = append(unlocked, d.ID)
		}
	}
	if len(unlocked) == 0 {
		return 0, nil
	}
	if err := s.store.DeleteDocuments(ctx, id, unlocked...); err != nil {
		return 0, err
	}
	s.logger.Info().Int("deleted", len(unlocked)).Int("locked", len(docs)-len(unlocked)).Msg("temp documents cleared")
	return len(unlocked), nil
}

// collect 逐页读取直到某页不满
func collect[T any](fetch func(page int) ([]T, error)) ([]T, error) {
	var all []T
	for page := 1; page <= maxPages; page++ {
		items, err := fetch(page)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < pageSize {
			break
		}
	}
	return all, nil
}
