package api

import (
	"net/http"
	"strconv"

	"github.com/lgc202/llm-gateway/internal/knowledge"
)

const maxUploadBytes = 64 << 20

// knowledgeClient 未配置知识库时写入 503 并返回 nil
func (s *Server) knowledgeClient(w http.ResponseWriter, r *http.Request) *knowledge.Client {
	if s.kb == nil {
		s.writeError(w, r, knowledge.ErrNotConfigured)
		return nil
	}
	return s.kb
}

func listOptions(r *http.Request) knowledge.ListOptions {
	q := r.URL.Query()
	opts := knowledge.ListOptions{
		OrderBy: q.Get("orderby"),
		Name:    q.Get("name"),
		ID:      q.Get("id"),
	}
	opts.Page, _ = strconv.Atoi(q.Get("page"))
	opts.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if d, err := strconv.ParseBool(q.Get("desc")); err == nil {
		opts.Desc = &d
	}
	return opts
}

func (s *Server) listDatasets(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	out, err := kb.ListDatasets(r.Context(), listOptions(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, out)
}

type datasetBody struct {
	Name           string  `json:"name"`
	Description    *string `json:"description"`
	EmbeddingModel string  `json:"embedding_model"`
	ChunkMethod    string  `json:"chunk_method"`
}

func (s *Server) createDataset(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	var req datasetBody
	if err := decodeBody(w, r, "dataset", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := kb.CreateDataset(r.Context(), knowledge.CreateDatasetRequest{
		Name:           req.Name,
		Description:    req.Description,
		EmbeddingModel: req.EmbeddingModel,
		ChunkMethod:    req.ChunkMethod,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, out)
}

func (s *Server) updateDataset(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	var req datasetBody
	if err := decodeBody(w, r, "dataset", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := kb.UpdateDataset(r.Context(), r.PathValue("id"), knowledge.UpdateDatasetRequest{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, nil)
}

type idsBody struct {
	IDs []string `json:"ids"`
}

func (s *Server) deleteDatasets(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	var req idsBody
	if err := decodeBody(w, r, "ids", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := kb.DeleteDatasets(r.Context(), req.IDs...); err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, nil)
}

func (s *Server) deleteDataset(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	if err := kb.DeleteDatasets(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, nil)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	docs, err := kb.ListDocuments(r.Context(), r.PathValue("id"), listOptions(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, map[string]any{"docs": docs})
}

// uploadDocument 接收 multipart 表单中的 file 字段并转发
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, &validationError{problems: []string{"multipart field \"file\" is required"}})
		return
	}
	defer f.Close()

	docs, err := kb.UploadDocument(r.Context(), r.PathValue("id"), hdr.Filename, hdr.Header.Get("Content-Type"), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, docs)
}

func (s *Server) deleteDocuments(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	var req idsBody
	if err := decodeBody(w, r, "ids", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := kb.DeleteDocuments(r.Context(), r.PathValue("id"), req.IDs...); err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, nil)
}

func (s *Server) updateDocument(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	var req knowledge.UpdateDocumentRequest
	if err := decodeBody(w, r, "document", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := kb.UpdateDocument(r.Context(), r.PathValue("id"), r.PathValue("doc"), req); err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, nil)
}

type documentIDsBody struct {
	DocumentIDs []string `json:"document_ids"`
}

func (s *Server) parseDocuments(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	var req documentIDsBody
	if err := decodeBody(w, r, "document_ids", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := kb.ParseDocuments(r.Context(), r.PathValue("id"), req.DocumentIDs...); err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, nil)
}

func (s *Server) stopParsing(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	var req documentIDsBody
	if err := decodeBody(w, r, "document_ids", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := kb.StopParsing(r.Context(), r.PathValue("id"), req.DocumentIDs...); err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, nil)
}

func (s *Server) retrieve(w http.ResponseWriter, r *http.Request) {
	kb := s.knowledgeClient(w, r)
	if kb == nil {
		return
	}
	var req knowledge.RetrievalRequest
	if err := decodeBody(w, r, "retrieval", &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := kb.Retrieve(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	knowledgeOK(w, out)
}
