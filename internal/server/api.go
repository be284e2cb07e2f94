package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/livetemplate/slidestudio"
	"github.com/livetemplate/slidestudio/internal/geometry"
	"github.com/livetemplate/slidestudio/internal/host"
)

func (s *Server) registerAPI(r chi.Router) {
	r.Get("/deck", s.handleGetDeck)
	r.Put("/deck", s.handlePutDeck)

	r.Post("/slides", s.handleAddSlide)
	r.Route("/slides/{id}", func(r chi.Router) {
		r.Put("/", s.handleUpdateSlide)
		r.Delete("/", s.handleDeleteSlide)
		r.Post("/duplicate", s.handleDuplicateSlide)
		r.Post("/move", s.handleMoveSlide)
		r.Get("/notes", s.handleNotes)
	})

	r.Post("/undo", s.handleUndo)
	r.Post("/redo", s.handleRedo)

	r.Get("/templates", s.handleTemplates)
	r.Get("/templates/{id}", s.handleTemplate)

	r.Get("/export", s.handleExport)
	r.Post("/import", s.handleImport)

	r.Get("/zoom", s.handleZoom)
	r.Get("/present-scale", s.handlePresentScale)
}

// decodeBody reads a JSON request body of bounded size into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// writeDeckError maps domain errors to status codes.
func writeDeckError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, slidestudio.ErrSlideNotFound), errors.Is(err, slidestudio.ErrUnknownTemplate):
		status = http.StatusNotFound
	case errors.Is(err, slidestudio.ErrLastSlide), errors.Is(err, slidestudio.ErrOutOfRange),
		errors.Is(err, slidestudio.ErrInvalidDeck):
		status = http.StatusBadRequest
	case errors.Is(err, slidestudio.ErrNothingToUndo), errors.Is(err, slidestudio.ErrNothingToRedo),
		errors.Is(err, host.ErrDesignModeActive):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] %v", err)
	}
	body := map[string]string{"error": err.Error()}
	if hint := slidestudio.Hint(err); hint != "" {
		body["hint"] = hint
	}
	writeJSON(w, status, body)
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.studio.View(true))
}

func (s *Server) handlePutDeck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.studio.Rename(req.Title); err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.studio.View(false))
}

func (s *Server) handleAddSlide(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Template string `json:"template"`
		After    string `json:"after"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	slide, err := s.studio.AddSlide(req.Template, req.After)
	if err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slide)
}

func (s *Server) handleUpdateSlide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var patch slidestudio.SlidePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if err := s.studio.UpdateSlide(id, patch); err != nil {
		writeDeckError(w, err)
		return
	}
	slide, err := s.studio.Slide(id)
	if err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slide)
}

func (s *Server) handleDeleteSlide(w http.ResponseWriter, r *http.Request) {
	next, err := s.studio.Delete(chi.URLParam(r, "id"))
	if err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"next": next})
}

func (s *Server) handleDuplicateSlide(w http.ResponseWriter, r *http.Request) {
	slide, err := s.studio.Duplicate(chi.URLParam(r, "id"))
	if err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, slide)
}

func (s *Server) handleMoveSlide(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Delta *int `json:"delta"`
		To    *int `json:"to"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var err error
	switch {
	case req.To != nil:
		err = s.studio.MoveTo(id, *req.To)
	case req.Delta != nil:
		err = s.studio.Move(id, *req.Delta)
	default:
		writeJSONError(w, http.StatusBadRequest, "delta or to is required")
		return
	}
	if err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.studio.View(false))
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	html, err := s.studio.Notes(chi.URLParam(r, "id"))
	if err != nil {
		writeDeckError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.Undo(); err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.studio.View(false))
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.Redo(); err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.studio.View(false))
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	all, err := slidestudio.Templates()
	if err != nil {
		writeDeckError(w, err)
		return
	}
	category := r.URL.Query().Get("category")
	out := make([]slidestudio.Template, 0, len(all))
	for _, t := range all {
		if category != "" && t.Category != category {
			continue
		}
		t.Code = ""
		out = append(out, t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := slidestudio.TemplateByID(chi.URLParam(r, "id"))
	if err != nil {
		writeDeckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleExport downloads the deck as JSON, or as a standalone HTML player
// with ?format=html.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	d := s.studio.Deck()
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.FileName(".html")))
		if err := s.studio.ExportHTML(w); err != nil {
			log.Printf("[API] Export failed: %v", err)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.FileName(".json")))
	if err := s.studio.ExportJSON(w); err != nil {
		log.Printf("[API] Export failed: %v", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	d, err := slidestudio.ReadJSON(r.Body)
	if err != nil {
		writeDeckError(w, err)
		return
	}
	s.studio.Replace(d, false)
	writeJSON(w, http.StatusOK, s.studio.View(false))
}

func queryFloat(r *http.Request, key string) float64 {
	v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
	if err != nil {
		return 0
	}
	return v
}

// handleZoom applies a zoom control to the editor stage.
func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	action, pct, err := geometry.ParseAction(r.URL.Query().Get("action"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	current := queryFloat(r, "current")
	if action == "" {
		current = pct
	}
	writeJSON(w, http.StatusOK, s.geometry.Zoom(action, current, queryFloat(r, "w"), queryFloat(r, "h")))
}

func (s *Server) handlePresentScale(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.geometry.Present(queryFloat(r, "w"), queryFloat(r, "h")))
}
