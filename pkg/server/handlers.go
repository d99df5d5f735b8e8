package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nstogner/butler/pkg/browser"
	"github.com/nstogner/butler/pkg/controller"
	"github.com/nstogner/butler/pkg/domain"
)

// messageRequest is the body of a chat message, over HTTP or WebSocket.
type messageRequest struct {
	Text     string            `json:"text"`
	URL      string            `json:"url,omitempty"`
	Platform domain.PlatformID `json:"platform,omitempty"`
}

func (m messageRequest) ambient() controller.Ambient {
	return controller.Ambient{URL: m.URL, Platform: m.Platform}
}

// --- Sessions ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.chats.NewSession()
	s.jsonResponse(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.Delete(r.PathValue("id")); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.Reset(r.PathValue("id")); err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.chats.History(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	s.jsonResponse(w, http.StatusOK, turns)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Text == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("text is required"))
		return
	}

	reply, err := s.chats.Chat(r.Context(), r.PathValue("id"), req.Text, req.ambient())
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, reply)
}

// --- Tools ---

func (s *Server) handleDispatchTools(w http.ResponseWriter, r *http.Request) {
	var calls []domain.ToolCall
	if err := json.NewDecoder(r.Body).Decode(&calls); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.dispatcher.Dispatch(r.Context(), calls))
}

// --- Orders ---

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		s.errorResponse(w, http.StatusNotFound, errors.New("order history is disabled"))
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.errorResponse(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	orders, err := s.log.RecentOrders(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if s.log == nil {
		s.errorResponse(w, http.StatusNotFound, errors.New("order history is disabled"))
		return
	}
	rec, err := s.log.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	pending := s.orders.Pending()
	if pending == nil {
		pending = []domain.PendingOrder{}
	}
	s.jsonResponse(w, http.StatusOK, pending)
}

func (s *Server) handleResumeOrder(w http.ResponseWriter, r *http.Request) {
	out, err := s.orders.Resume(r.Context(), browser.Handle(r.PathValue("handle")))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	s.jsonResponse(w, http.StatusOK, out)
}

// --- Tabs and platforms ---

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	png, err := s.orders.Screenshot(r.Context(), browser.Handle(r.PathValue("handle")))
	if err != nil {
		s.errorResponse(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (s *Server) handleDetectPlatform(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	id, ok := s.orders.DetectPlatform(rawURL)
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"platform":  id,
		"supported": ok,
	})
}
