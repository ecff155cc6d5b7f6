package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"knightwalk/walk"
)

const (
	defaultStart        = "b1"
	defaultAutoInterval = 250 * time.Millisecond
	defaultMaxSteps     = 1_000_000
	maxStepBatch        = 100_000
)

var validate = validator.New()

type Options struct {
	Logger *slog.Logger
	// MaxSteps caps the step count accepted by /api/simulate.
	MaxSteps int
}

// Server exposes the walk engine over HTTP and keeps one live walk that can
// be stepped by hand or on a timer.
type Server struct {
	mu       sync.Mutex
	live     *session
	logger   *slog.Logger
	maxSteps int
	auto     struct {
		active   bool
		stopCh   chan struct{}
		interval time.Duration
	}
}

type session struct {
	id      string
	cfg     walk.BoardConfig
	blocked []string
	start   walk.Position
	seed    int64
	walker  *walk.Walker
}

func New(opts Options) *Server {
	s := &Server{
		logger:   opts.Logger,
		maxSteps: opts.MaxSteps,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxSteps <= 0 {
		s.maxSteps = defaultMaxSteps
	}
	live, err := newSession(resetRequest{Start: defaultStart})
	if err != nil {
		// The default board is always valid.
		panic(err)
	}
	s.live = live
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/moves", s.handleMoves)
	mux.HandleFunc("/api/simulate", s.handleSimulate)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/step", s.handleStep)
	mux.HandleFunc("/api/auto", s.handleAuto)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

type boardRequest struct {
	Size    int      `json:"size" validate:"gte=0,lte=1000"`
	Torus   bool     `json:"torus"`
	Blocked []string `json:"blocked"`
}

type simulateRequest struct {
	boardRequest
	Start string `json:"start" validate:"required"`
	Steps int    `json:"steps" validate:"gte=0"`
	Seed  *int64 `json:"seed,omitempty"`
}

type resetRequest struct {
	boardRequest
	Start string `json:"start"`
	Seed  *int64 `json:"seed,omitempty"`
}

type stepRequest struct {
	Count int `json:"count" validate:"gte=0"`
}

type autoRequest struct {
	Running    bool `json:"running"`
	IntervalMS int  `json:"interval_ms"`
}

type autoResponse struct {
	Running bool `json:"running"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type movesResponse struct {
	From  string   `json:"from"`
	Moves []string `json:"moves"`
}

type visitPayload struct {
	Square string `json:"square"`
	Count  int    `json:"count"`
}

type simulateResponse struct {
	Steps  int             `json:"steps"`
	Seed   int64           `json:"seed"`
	Total  int             `json:"total"`
	Unique int             `json:"unique"`
	Visits []visitPayload  `json:"visits"`
	Rings  []walk.RingStat `json:"rings"`
}

type statePayload struct {
	ID          string          `json:"id"`
	Size        int             `json:"size"`
	Torus       bool            `json:"torus"`
	Blocked     []string        `json:"blocked"`
	Start       string          `json:"start"`
	Position    string          `json:"position"`
	Seed        int64           `json:"seed"`
	Steps       int             `json:"steps"`
	Stuck       bool            `json:"stuck"`
	AutoPlaying bool            `json:"autoPlaying"`
	Unique      int             `json:"unique"`
	Visits      []visitPayload  `json:"visits"`
	Rings       []walk.RingStat `json:"rings,omitempty"`
}

func (s *Server) handleMoves(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := strings.TrimSpace(q.Get("from"))
	if from == "" {
		s.writeError(w, "moves", http.StatusBadRequest, errors.New("query 'from' is required"))
		return
	}

	req := boardRequest{Blocked: splitSquares(q["blocked"])}
	if raw := q.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, "moves", http.StatusBadRequest, fmt.Errorf("size: %w", err))
			return
		}
		req.Size = size
	}
	if raw := q.Get("torus"); raw != "" {
		torus, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, "moves", http.StatusBadRequest, fmt.Errorf("torus: %w", err))
			return
		}
		req.Torus = torus
	}

	cfg, err := boardFromRequest(req)
	if err != nil {
		s.writeError(w, "moves", http.StatusBadRequest, err)
		return
	}
	pos, err := startFromRequest(from, cfg)
	if err != nil {
		s.writeError(w, "moves", http.StatusBadRequest, err)
		return
	}

	moves := walk.GenerateMoves(pos, cfg)
	resp := movesResponse{From: walk.FormatPosition(pos), Moves: make([]string, 0, len(moves))}
	for _, m := range moves {
		resp.Moves = append(resp.Moves, walk.FormatPosition(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "simulate", http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		s.writeError(w, "simulate", http.StatusBadRequest, err)
		return
	}
	if req.Steps > s.maxSteps {
		s.writeError(w, "simulate", http.StatusBadRequest, fmt.Errorf("%w: %d exceeds limit %d", walk.ErrInvalidStepCount, req.Steps, s.maxSteps))
		return
	}
	cfg, err := boardFromRequest(req.boardRequest)
	if err != nil {
		s.writeError(w, "simulate", http.StatusBadRequest, err)
		return
	}
	start, err := startFromRequest(req.Start, cfg)
	if err != nil {
		s.writeError(w, "simulate", http.StatusBadRequest, err)
		return
	}
	seed := seedOrNow(req.Seed)

	started := time.Now()
	visits := walk.Simulate(req.Steps, start, cfg, walk.NewRand(seed))
	resp := simulateResponse{
		Steps:  req.Steps,
		Seed:   seed,
		Total:  visits.Total(),
		Unique: visits.Unique(),
		Visits: visitList(visits),
	}
	if req.Steps > 0 {
		rings, err := walk.Analyze(req.Steps, visits, cfg.Size)
		if err != nil {
			s.writeError(w, "simulate", http.StatusInternalServerError, err)
			return
		}
		resp.Rings = rings
	}

	result := "completed"
	if walkStuck(visits, cfg, req.Steps) {
		result = "stuck"
	}
	walksTotal.WithLabelValues(result).Inc()
	walkSteps.Observe(float64(req.Steps))
	walkDuration.Observe(time.Since(started).Seconds())
	s.logger.Debug("simulated walk",
		"start", walk.FormatPosition(start),
		"size", cfg.Size,
		"torus", cfg.Torus,
		"steps", req.Steps,
		"unique", resp.Unique,
		"result", result)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	payload := s.serializeState()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req resetRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "reset", http.StatusBadRequest, errors.New("invalid JSON body"))
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		s.writeError(w, "reset", http.StatusBadRequest, err)
		return
	}
	if req.Start == "" {
		req.Start = defaultStart
	}
	live, err := newSession(req)
	if err != nil {
		s.writeError(w, "reset", http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.stopAutoPlayLocked()
	s.live = live
	payload := s.serializeState()
	s.mu.Unlock()

	s.logger.Info("live walk reset", "session", live.id, "size", live.cfg.Size, "start", payload.Start)
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req := stepRequest{Count: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "step", http.StatusBadRequest, errors.New("invalid JSON body"))
			return
		}
	}
	if err := validate.Struct(req); err != nil {
		s.writeError(w, "step", http.StatusBadRequest, err)
		return
	}
	if req.Count > maxStepBatch {
		s.writeError(w, "step", http.StatusBadRequest, fmt.Errorf("count %d exceeds limit %d", req.Count, maxStepBatch))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.auto.active {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "auto play is running"})
		return
	}
	s.stepLocked(req.Count)
	writeJSON(w, http.StatusOK, s.serializeState())
}

func (s *Server) handleAuto(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload autoRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, "auto", http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if payload.Running {
		interval := time.Duration(payload.IntervalMS) * time.Millisecond
		if err := s.startAutoPlayLocked(interval); err != nil {
			s.writeError(w, "auto", http.StatusBadRequest, err)
			return
		}
	} else {
		s.stopAutoPlayLocked()
	}

	writeJSON(w, http.StatusOK, autoResponse{Running: s.auto.active})
}

func newSession(req resetRequest) (*session, error) {
	cfg, err := boardFromRequest(req.boardRequest)
	if err != nil {
		return nil, err
	}
	start, err := startFromRequest(req.Start, cfg)
	if err != nil {
		return nil, err
	}
	seed := seedOrNow(req.Seed)
	return &session{
		id:      uuid.NewString(),
		cfg:     cfg,
		blocked: formatBlocked(cfg),
		start:   start,
		seed:    seed,
		walker:  walk.NewWalker(start, cfg, walk.NewRand(seed)),
	}, nil
}

// stepLocked advances the live walk by up to n moves and reports how many
// were made.
func (s *Server) stepLocked(n int) int {
	made := 0
	for ; made < n; made++ {
		if _, ok := s.live.walker.Step(); !ok {
			break
		}
	}
	liveSteps.Add(float64(made))
	return made
}

func (s *Server) serializeState() statePayload {
	wk := s.live.walker
	visits := wk.Visits()
	payload := statePayload{
		ID:          s.live.id,
		Size:        s.live.cfg.Size,
		Torus:       s.live.cfg.Torus,
		Blocked:     append([]string{}, s.live.blocked...),
		Start:       walk.FormatPosition(s.live.start),
		Position:    walk.FormatPosition(wk.Position()),
		Seed:        s.live.seed,
		Steps:       wk.Steps(),
		Stuck:       wk.Stuck(),
		AutoPlaying: s.auto.active,
		Unique:      visits.Unique(),
		Visits:      visitList(visits),
	}
	if wk.Steps() > 0 {
		if rings, err := walk.Analyze(wk.Steps(), visits, s.live.cfg.Size); err == nil {
			payload.Rings = rings
		}
	}
	return payload
}

func (s *Server) startAutoPlayLocked(interval time.Duration) error {
	if s.auto.active {
		return errors.New("auto play already running")
	}
	if s.live.walker.Stuck() {
		return errors.New("the knight has no legal move; reset the walk first")
	}
	if interval <= 0 {
		interval = defaultAutoInterval
	}
	stop := make(chan struct{})
	s.auto.active = true
	s.auto.stopCh = stop
	s.auto.interval = interval
	go s.runAutoPlay(stop, interval)
	return nil
}

func (s *Server) stopAutoPlayLocked() {
	if !s.auto.active {
		return
	}
	if s.auto.stopCh != nil {
		close(s.auto.stopCh)
	}
	s.auto.active = false
	s.auto.stopCh = nil
}

func (s *Server) runAutoPlay(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			// A later start owns a different channel.
			if !s.auto.active || s.auto.stopCh != stop {
				s.mu.Unlock()
				return
			}
			if s.stepLocked(1) == 0 {
				s.logger.Info("live walk stuck, stopping auto play",
					"session", s.live.id,
					"position", walk.FormatPosition(s.live.walker.Position()))
				s.auto.active = false
				s.auto.stopCh = nil
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
		}
	}
}

// Close stops auto play.
func (s *Server) Close() {
	s.mu.Lock()
	s.stopAutoPlayLocked()
	s.mu.Unlock()
}

func boardFromRequest(req boardRequest) (walk.BoardConfig, error) {
	size := req.Size
	if size == 0 {
		size = walk.DefaultBoardSize
	}
	blocked, err := walk.ParsePositions(req.Blocked)
	if err != nil {
		return walk.BoardConfig{}, fmt.Errorf("blocked: %w", err)
	}
	return walk.NewBoardConfig(size, blocked, req.Torus)
}

func startFromRequest(square string, cfg walk.BoardConfig) (walk.Position, error) {
	pos, err := walk.ParsePosition(square)
	if err != nil {
		return walk.Position{}, err
	}
	if !cfg.Inside(pos) {
		return walk.Position{}, fmt.Errorf("%w: %s is off a %dx%d board", walk.ErrInvalidPosition, walk.FormatPosition(pos), cfg.Size, cfg.Size)
	}
	return pos, nil
}

// walkStuck reports whether the walk ended early. A knight only stops on a
// square without legal moves, so any such visited square means it got stuck.
func walkStuck(visits walk.VisitMap, cfg walk.BoardConfig, steps int) bool {
	if steps == 0 {
		return false
	}
	for p := range visits {
		if len(walk.GenerateMoves(p, cfg)) == 0 {
			return true
		}
	}
	return false
}

func seedOrNow(seed *int64) int64 {
	if seed != nil {
		return *seed
	}
	return time.Now().UnixNano()
}

// splitSquares flattens repeated query values, each of which may list several
// squares separated by ';' or spaces. Commas stay inside a square ("2,1").
func splitSquares(values []string) []string {
	var out []string
	for _, raw := range values {
		out = append(out, strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ' ' })...)
	}
	return out
}

func formatBlocked(cfg walk.BoardConfig) []string {
	squares := make([]walk.Position, 0, len(cfg.Blocked))
	for p := range cfg.Blocked {
		squares = append(squares, p)
	}
	slices.SortFunc(squares, comparePositions)
	out := make([]string, 0, len(squares))
	for _, p := range squares {
		out = append(out, walk.FormatPosition(p))
	}
	return out
}

func visitList(visits walk.VisitMap) []visitPayload {
	squares := make([]walk.Position, 0, len(visits))
	for p := range visits {
		squares = append(squares, p)
	}
	slices.SortFunc(squares, comparePositions)
	out := make([]visitPayload, 0, len(squares))
	for _, p := range squares {
		out = append(out, visitPayload{Square: walk.FormatPosition(p), Count: visits[p]})
	}
	return out
}

func comparePositions(a, b walk.Position) int {
	if a.X != b.X {
		return a.X - b.X
	}
	return a.Y - b.Y
}

func (s *Server) writeError(w http.ResponseWriter, endpoint string, status int, err error) {
	requestErrors.WithLabelValues(endpoint).Inc()
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}
