package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"signdesk/internal/domain"
	"signdesk/internal/editor"
	"signdesk/internal/services/documents"
)

type saveFieldsRequest struct {
	Fields []domain.Field `json:"fields"`
}

type alignRequest struct {
	Alignment editor.Alignment `json:"alignment"`
}

// handleListFields serves both the whole document and a single page.
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	page := 0
	if chi.URLParam(r, "page") != "" {
		if err := pathParam(r, "page", &page); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	fields, err := s.docs.Fields(r.Context(), id, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func (s *Server) handleSaveFields(w http.ResponseWriter, r *http.Request) {
	var id string
	var page int
	if err := pathParams(r, &id, &page); err != nil {
		s.writeError(w, r, err)
		return
	}
	var in saveFieldsRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	saved, err := s.docs.SaveFields(r.Context(), id, page, in.Fields, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGestures(w http.ResponseWriter, r *http.Request) {
	var id string
	var page int
	if err := pathParams(r, &id, &page); err != nil {
		s.writeError(w, r, err)
		return
	}
	var in documents.GestureRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.docs.ReplayGestures(r.Context(), id, page, in, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var id string
	var page int
	if err := pathParams(r, &id, &page); err != nil {
		s.writeError(w, r, err)
		return
	}
	var dpi *float64
	if err := queryParam(r, "dpi", &dpi); err != nil {
		s.writeError(w, r, err)
		return
	}
	d := 0.0
	if dpi != nil {
		d = *dpi
	}
	placements, err := s.docs.Preview(r.Context(), id, page, d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, placements)
}

func (s *Server) handleDuplicateField(w http.ResponseWriter, r *http.Request) {
	var id, fieldID string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := pathParam(r, "fieldID", &fieldID); err != nil {
		s.writeError(w, r, err)
		return
	}
	dup, err := s.docs.DuplicateField(r.Context(), id, fieldID, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

func (s *Server) handleAlignFields(w http.ResponseWriter, r *http.Request) {
	var id, fieldID string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := pathParam(r, "fieldID", &fieldID); err != nil {
		s.writeError(w, r, err)
		return
	}
	var in alignRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	fields, err := s.docs.AlignFields(r.Context(), id, fieldID, in.Alignment, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

func pathParams(r *http.Request, id *string, page *int) error {
	if err := pathParam(r, "id", id); err != nil {
		return err
	}
	return pathParam(r, "page", page)
}
