package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/muza/internal/engine"
)

// MaxGenerateLength bounds the length parameter of /api/generate.
const MaxGenerateLength = 64

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decode reads a JSON body into v and validates its struct tags.
func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return err
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"nodes":    s.eng.Graph.Len(),
		"provider": s.eng.LLM != nil,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Graph.Stats())
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Graph.FullNetwork())
}

func (s *Server) handleVisualNetwork(w http.ResponseWriter, r *http.Request) {
	maxNodes, err := queryInt(r, "max", engine.DefaultVisualNodes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Graph.VisualNetwork(maxNodes))
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	node, ok := s.eng.Graph.Node(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	length, err := queryInt(r, "length", engine.DefaultGenerateLength)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if length < 1 || length > MaxGenerateLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("length must be between 1 and %d", MaxGenerateLength))
		return
	}
	seed := r.URL.Query().Get("seed")
	writeJSON(w, http.StatusOK, map[string]string{
		"seed": seed,
		"text": s.eng.Graph.Generate(seed, length),
	})
}

func (s *Server) handleReflect(w http.ResponseWriter, r *http.Request) {
	reflection, ok := s.eng.Graph.Reflect()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, reflection)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Graph.Snapshot())
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Graph.Tick())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "n", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.eng.Bus().Recent(n))
}

type learnRequest struct {
	Text       string   `json:"text" validate:"required"`
	Importance *float64 `json:"importance" validate:"omitempty,gte=0,lte=1"`
	Charge     *float64 `json:"charge" validate:"omitempty,gte=0,lte=1"`
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	importance, charge := engine.DefaultImportance, engine.DefaultCharge
	if req.Importance != nil {
		importance = *req.Importance
	}
	if req.Charge != nil {
		charge = *req.Charge
	}

	s.eng.Learn(req.Text, importance, charge)
	writeJSON(w, http.StatusOK, s.eng.Graph.Stats())
}

type inputRequest struct {
	Text   string `json:"text" validate:"required"`
	Source string `json:"source" validate:"omitempty,oneof=user ai"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	source := engine.SourceUser
	if req.Source != "" {
		source = engine.Source(req.Source)
	}

	s.eng.ProcessInput(req.Text, source)
	writeJSON(w, http.StatusOK, s.eng.Graph.Stats())
}

func (s *Server) handleEvolve(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.Evolve())
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := s.eng.Chat(r.Context(), req.Message)
	if errors.Is(err, engine.ErrEmptyMessage) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reply)
}
