package api

import (
	"net/http"

	"github.com/lgc202/llm-gateway/internal/knowledge"
	"github.com/lgc202/llm-gateway/internal/tempkb"
)

// 临时知识库接口沿用 {success, ...} 响应结构，失败时为 {success: false, error}

func tempOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	jsonOK(w, body, http.StatusOK)
}

func (s *Server) tempError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	ev := s.logger.Warn()
	if code >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", code).Msg("temp knowledge request failed")
	jsonOK(w, map[string]any{"success": false, "error": err.Error()}, code)
}

func (s *Server) tempService(w http.ResponseWriter, r *http.Request) *tempkb.Service {
	if s.temp == nil {
		s.tempError(w, r, knowledge.ErrNotConfigured)
		return nil
	}
	return s.temp
}

func (s *Server) tempDocuments(w http.ResponseWriter, r *http.Request) {
	svc := s.tempService(w, r)
	if svc == nil {
		return
	}
	docs, err := svc.Documents(r.Context())
	if err != nil {
		s.tempError(w, r, err)
		return
	}
	if docs == nil {
		docs = []knowledge.Document{}
	}
	tempOK(w, map[string]any{"documents": docs})
}

func (s *Server) tempUpload(w http.ResponseWriter, r *http.Request) {
	svc := s.tempService(w, r)
	if svc == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	f, hdr, err := r.FormFile("file")
	if err != nil {
		s.tempError(w, r, &validationError{problems: []string{"multipart field \"file\" is required"}})
		return
	}
	defer f.Close()

	doc, err := svc.Upload(r.Context(), hdr.Filename, hdr.Header.Get("Content-Type"), f)
	if err != nil {
		s.tempError(w, r, err)
		return
	}
	tempOK(w, map[string]any{"document_id": doc.ID})
}

type webpageBody struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

func (s *Server) tempWebpage(w http.ResponseWriter, r *http.Request) {
	svc := s.tempService(w, r)
	if svc == nil {
		return
	}
	var req webpageBody
	if err := decodeBody(w, r, "webpage", &req); err != nil {
		s.tempError(w, r, err)
		return
	}
	doc, err := svc.AddWebpage(r.Context(), tempkb.Webpage{Title: req.Title, URL: req.URL, Content: req.Content})
	if err != nil {
		s.tempError(w, r, err)
		return
	}
	tempOK(w, map[string]any{"document_id": doc.ID})
}

func (s *Server) tempDelete(w http.ResponseWriter, r *http.Request) {
	svc := s.tempService(w, r)
	if svc == nil {
		return
	}
	if err := svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.tempError(w, r, err)
		return
	}
	tempOK(w, nil)
}

type lockedIDsBody struct {
	LockedIDs []string `json:"locked_ids"`
}

func (s *Server) tempClearUnlocked(w http.ResponseWriter, r *http.Request) {
	svc := s.tempService(w, r)
	if svc == nil {
		return
	}
	var req lockedIDsBody
	if err := decodeBody(w, r, "locked_ids", &req); err != nil {
		s.tempError(w, r, err)
		return
	}
	n, err := svc.ClearUnlocked(r.Context(), req.LockedIDs)
	if err != nil {
		s.tempError(w, r, err)
		return
	}
	tempOK(w, map[string]any{"deleted": n})
}
