package httpadapter

import (
	"io"
	"net/http"

	"signdesk/internal/fieldtype"
	"signdesk/internal/services/documents"
)

func (s *Server) handleFieldTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, fieldtype.Table())
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	var owner *string
	var includeArchived *bool
	if err := queryParam(r, "ownerId", &owner); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := queryParam(r, "includeArchived", &includeArchived); err != nil {
		s.writeError(w, r, err)
		return
	}
	ownerID := ""
	if owner != nil {
		ownerID = *owner
	}
	docs, err := s.docs.List(r.Context(), ownerID, includeArchived != nil && *includeArchived)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var in documents.CreateInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.docs.Create(r.Context(), in, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.docs.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// handleAttachSource takes the raw PDF as the request body.
func (s *Server) handleAttachSource(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(data) == 0 {
		s.writeError(w, r, badRequest("empty body"))
		return
	}
	doc, err := s.docs.AttachSource(r.Context(), id, data, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	rs, err := s.docs.Recipients(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) handleAddRecipient(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	var in documents.RecipientInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.docs.AddRecipient(r.Context(), id, in, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	trail, err := s.docs.AuditTrail(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trail)
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	html, err := s.docs.Certificate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}
