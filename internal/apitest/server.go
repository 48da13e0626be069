// Package apitest hosts a miniature HAMU backend for tests. It speaks the
// backend's JSON dialect over chi routes and honours the client_id
// idempotency contract, so facade and engine tests can drive the real REST
// client end to end instead of stubbing it.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/AmbeyiBrian/HAMUPROJECT-sub000/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

const defaultPageSize = 50

// Server is an in-process HAMU backend. Zero-value credentials are
// brian/hunter2 with token pair access-1/refresh-1.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	username  string
	password  string
	access    string
	refresh   string
	rotations int

	profile  map[string]any
	lists    map[string][]map[string]any
	created  map[string][]map[string]any
	seenIDs  map[string]bool
	smsSent  []map[string]any
	loyalty  *domain.LoyaltyCheck
	reports  map[string]map[string]any
	failures map[string]int
	noAuth   bool
	pageSize int

	requests []string
}

func NewServer() *Server {
	s := &Server{
		username: "brian",
		password: "hunter2",
		access:   "access-1",
		refresh:  "refresh-1",
		profile:  map[string]any{"id": 4, "username": "brian", "user_class": "Agent"},
		lists:    map[string][]map[string]any{},
		created:  map[string][]map[string]any{},
		seenIDs:  map[string]bool{},
		reports:  map[string]map[string]any{},
		failures: map[string]int{},
		pageSize: defaultPageSize,
	}

	r := chi.NewRouter()
	r.Post("/token/", s.handleToken)
	r.Post("/token/refresh/", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.recordAndAuth)
		r.Get("/users/me/", s.handleMe)
		r.Get("/customers/export_for_offline/", s.handleExport("customers"))
		r.Get("/packages/export_for_offline/", s.handleExport("packages"))
		r.Get("/stock-items/low_stock/", s.handleLowStock)
		r.Get("/refills/check_loyalty/", s.handleLoyalty)
		r.Get("/analytics/{report}/", s.handleAnalytics)
		r.Post("/customers/{customerID}/send_sms/", s.handleSendSMS)
		r.Get("/{collection}/", s.handleList)
		r.Post("/{collection}/", s.handleCreate)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// Config returns a client configuration pointed at this server.
func (s *Server) Config() *domain.Config {
	return &domain.Config{
		VaultSecret: "apitest-secret",
		API:         domain.APIConfig{BaseURL: s.URL + "/", TimeoutSeconds: 5},
		Cache:       domain.CacheConfig{TTLMinutes: 30},
		Sync:        domain.SyncConfig{Auto: true, SweepIntervalMinutes: 15},
	}
}

// Seed replaces the canned list for a collection.
func (s *Server) Seed(collection string, records ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[collection] = records
}

// Created returns the records POSTed to a collection, in arrival order.
func (s *Server) Created(collection string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.created[collection]))
	copy(out, s.created[collection])
	return out
}

// SMSSent returns the payloads delivered to send_sms endpoints.
func (s *Server) SMSSent() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.smsSent))
	copy(out, s.smsSent)
	return out
}

// Requests lists every authenticated request as "METHOD /path".
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// FailNext makes the next n requests to "METHOD /path" answer 500.
func (s *Server) FailNext(method string, path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = n
}

// ExpireAccess invalidates the current access token. The next authenticated
// request gets a 401 and has to refresh.
func (s *Server) ExpireAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rotations++
	s.access = fmt.Sprintf("access-%d", s.rotations+1)
}

// RevokeSession makes every token invalid, including refresh. Clients end up
// with a session-expired error.
func (s *Server) RevokeSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noAuth = true
}

// AccessToken returns the token the server currently accepts.
func (s *Server) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// SetPageSize shrinks pages so pagination paths are reachable with small
// fixtures.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// SetLoyalty sets the answer for refills/check_loyalty/.
func (s *Server) SetLoyalty(check *domain.LoyaltyCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loyalty = check
}

// SetAnalytics sets the response body for analytics/<report>/.
func (s *Server) SetAnalytics(report string, body map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report] = body
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		detail(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noAuth || creds.Username != s.username || creds.Password != s.password {
		detail(w, r, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	render.JSON(w, r, map[string]string{"access": s.access, "refresh": s.refresh})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		detail(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.noAuth || body.Refresh != s.refresh {
		detail(w, r, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	render.JSON(w, r, map[string]string{"access": s.access})
}

func (s *Server) recordAndAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)

		key := r.Method + " " + r.URL.Path
		if s.failures[key] > 0 {
			s.failures[key]--
			s.mu.Unlock()
			detail(w, r, http.StatusInternalServerError, "internal server error")
			return
		}

		authorized := !s.noAuth && r.Header.Get("Authorization") == "Bearer "+s.access
		s.mu.Unlock()

		if !authorized {
			detail(w, r, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	render.JSON(w, r, s.profile)
}

func (s *Server) handleExport(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		records := s.allRecords(collection)
		render.JSON(w, r, map[string]any{
			"results":     records,
			"count":       len(records),
			"export_type": collection,
		})
	}
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.lists["low-stock"]
	if records == nil {
		records = []map[string]any{}
	}
	// DRF list actions answer with a bare array
	render.JSON(w, r, records)
}

func (s *Server) handleLoyalty(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loyalty != nil {
		render.JSON(w, r, s.loyalty)
		return
	}

	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	render.JSON(w, r, map[string]any{
		"free_quantity":           0,
		"paid_quantity":           quantity,
		"total_cost":              0,
		"refills_until_next_free": 0,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	report := chi.URLParam(r, "report")

	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.reports[report]
	if !ok {
		detail(w, r, http.StatusNotFound, "unknown report")
		return
	}
	render.JSON(w, r, body)
}

func (s *Server) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		detail(w, r, http.StatusBadRequest, "malformed request body")
		return
	}
	payload["customer_path_id"] = chi.URLParam(r, "customerID")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.smsSent = append(s.smsSent, payload)
	render.JSON(w, r, map[string]string{"status": "sent"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records := s.allRecords(collection)
	start := (page - 1) * s.pageSize
	if start > len(records) {
		detail(w, r, http.StatusNotFound, "Invalid page.")
		return
	}
	end := start + s.pageSize
	if end > len(records) {
		end = len(records)
	}

	next := ""
	if end < len(records) {
		next = fmt.Sprintf("%s/%s/?page=%d", s.URL, collection, page+1)
	}
	previous := ""
	if page > 1 {
		previous = fmt.Sprintf("%s/%s/?page=%d", s.URL, collection, page-1)
	}

	render.JSON(w, r, map[string]any{
		"count":    len(records),
		"next":     next,
		"previous": previous,
		"results":  records[start:end],
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var record map[string]any
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		detail(w, r, http.StatusBadRequest, "malformed request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if clientID, ok := record["client_id"].(string); ok && clientID != "" {
		key := collection + ":" + clientID
		if s.seenIDs[key] {
			detail(w, r, http.StatusConflict, "duplicate transaction")
			return
		}
		s.seenIDs[key] = true
	}

	record["id"] = 1000 + len(s.created[collection]) + 1
	s.created[collection] = append(s.created[collection], record)

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, record)
}

// allRecords is canned list data plus whatever tests created. Callers hold
// the lock.
func (s *Server) allRecords(collection string) []map[string]any {
	records := make([]map[string]any, 0, len(s.lists[collection])+len(s.created[collection]))
	records = append(records, s.lists[collection]...)
	records = append(records, s.created[collection]...)
	return records
}

func detail(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"detail": message})
}
