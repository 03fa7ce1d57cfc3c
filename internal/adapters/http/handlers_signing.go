package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"signdesk/internal/domain"
	"signdesk/internal/services/documents"
	"signdesk/internal/workers/bakerunner"
)

type signRequest struct {
	Values map[string]string `json:"values"`
}

type declineRequest struct {
	Reason string `json:"reason"`
}

type transitionRequest struct {
	Status domain.DocumentStatus `json:"status"`
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	var id, rid string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := pathParam(r, "rid", &rid); err != nil {
		s.writeError(w, r, err)
		return
	}
	elig, err := s.docs.CheckEligibility(r.Context(), id, rid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, elig)
}

// handleSign records a signature. With ?wait=true the final signature also
// bakes the document before responding.
func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var id, rid string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := pathParam(r, "rid", &rid); err != nil {
		s.writeError(w, r, err)
		return
	}
	wait, timeout, err := s.waitParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in signRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.docs.Sign(r.Context(), id, rid, in.Values, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if wait && res.Completed {
		doc, baked, err := s.bakeInline(r.Context(), id, timeout)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		res.Document = doc
		if !baked {
			code = http.StatusAccepted
		}
	}
	writeJSON(w, code, res)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	var id, rid string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := pathParam(r, "rid", &rid); err != nil {
		s.writeError(w, r, err)
		return
	}
	var in declineRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := s.docs.Decline(r.Context(), id, rid, in.Reason, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var id string
	if err := pathParam(r, "id", &id); err != nil {
		s.writeError(w, r, err)
		return
	}
	wait, timeout, err := s.waitParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in transitionRequest
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	if !in.Status.Valid() {
		s.writeError(w, r, badRequest("unknown status %q", in.Status))
		return
	}
	doc, err := s.docs.TransitionStatus(r.Context(), id, in.Status, actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if wait && doc.Status == domain.StatusProcessing {
		var baked bool
		if doc, baked, err = s.bakeInline(r.Context(), id, timeout); err != nil {
			s.writeError(w, r, err)
			return
		}
		if !baked {
			code = http.StatusAccepted
		}
	}
	writeJSON(w, code, doc)
}

func (s *Server) waitParams(r *http.Request) (bool, time.Duration, error) {
	var wait *bool
	var seconds *int
	if err := queryParam(r, "wait", &wait); err != nil {
		return false, 0, err
	}
	if err := queryParam(r, "timeout", &seconds); err != nil {
		return false, 0, err
	}
	timeout := s.opts.InlineTimeout
	if seconds != nil && *seconds > 0 {
		timeout = time.Duration(*seconds) * time.Second
	}
	return wait != nil && *wait, timeout, nil
}

// bakeInline runs the queued bake with the worker's processing path. When the
// timeout or the client ends the wait first, the bake keeps running and
// baked is false; the document is returned as it stands.
func (s *Server) bakeInline(ctx context.Context, id string, timeout time.Duration) (doc domain.Document, baked bool, err error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err = bakerunner.ProcessInline(wctx, s.jobs, s.docs, bakerunner.Options{
		Retryable: documents.Transient,
		Log:       s.log,
	}, id)
	if err != nil && !(wctx.Err() != nil && errors.Is(err, wctx.Err())) {
		return domain.Document{}, false, err
	}
	baked = err == nil
	doc, err = s.docs.Get(context.WithoutCancel(ctx), id)
	return doc, baked, err
}
