package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"moodsun/api/internal/auth"
	"moodsun/api/internal/store"
)

const (
	moodEntriesPath  = "/api/mood-entries"
	maxMultipartSize = 32 << 20
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	metrics    http.Handler
	log        *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		metrics:    promhttp.HandlerFor(service.gatherer, promhttp.HandlerOpts{}),
		log:        service.log.Named("http"),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		ready, checks := s.service.Ready(ctx)
		if !ready {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
		}
		writeJSON(w, statusCode, map[string]any{
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/metrics" {
		s.metrics.ServeHTTP(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/account/signup" {
		s.handleSignUp(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/account/signin" {
		s.handleSignIn(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/account/refresh" {
		s.handleRefresh(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/account/reset-password/request" {
		s.handleRequestReset(w, r)
		return
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/account/reset-password" {
		s.handleResetPassword(w, r)
		return
	}

	claims, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	accountID := claims.Subject

	if r.Method == http.MethodPost && r.URL.Path == "/api/account/logout" {
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.accounts.Logout(r.Context(), claims, body.RefreshToken); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method == http.MethodDelete && r.URL.Path == "/api/account" {
		if err := s.service.accounts.DeleteAccount(r.Context(), accountID); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/groups" {
		groups, err := s.service.engine.GetAllGroupsWithActivities(r.Context(), accountID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
		return
	}

	if r.Method == http.MethodPut && r.URL.Path == "/api/group-schema" {
		s.handleGroupSchema(w, r, accountID)
		return
	}

	if r.URL.Path == moodEntriesPath {
		s.handleMoodEntries(w, r, accountID)
		return
	}
	if id, ok := strings.CutPrefix(r.URL.Path, moodEntriesPath+"/"); ok && id != "" && !strings.Contains(id, "/") {
		s.handleMoodEntry(w, r, accountID, id)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	tokens, err := s.service.accounts.SignUp(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokens)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	tokens, err := s.service.accounts.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	tokens, err := s.service.accounts.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (s *HTTPServer) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.accounts.RequestPasswordReset(r.Context(), body.Email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If an account exists, a reset email has been sent",
	})
}

func (s *HTTPServer) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.accounts.ResetPassword(r.Context(), body.Token, body.NewPassword); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successfully",
	})
}

func (s *HTTPServer) handleGroupSchema(w http.ResponseWriter, r *http.Request, accountID string) {
	var change GroupSchemaChange
	if err := decodeBody(r, &change); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	data, err := s.service.ApplyGroupSchema(r.Context(), accountID, change)
	if err != nil {
		status, code, message, details := mapError(err)
		s.logFailure(r, status, err)
		response := map[string]any{
			"code":          code,
			"error":         message,
			"accountGroups": data.AccountGroups,
			"moodEntries":   data.MoodEntries,
		}
		if details != nil {
			response["details"] = details
		}
		writeJSON(w, status, response)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *HTTPServer) handleMoodEntries(w http.ResponseWriter, r *http.Request, accountID string) {
	switch r.Method {
	case http.MethodGet:
		entries, err := s.service.engine.GetAllMoodEntriesWithActivities(r.Context(), accountID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)

	case http.MethodPut:
		var entries []store.MoodEntry
		if err := decodeBody(r, &entries); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.engine.UpdateAllMoodEntries(r.Context(), accountID, entries)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		views, err := s.service.engine.GetAllMoodEntriesWithActivities(r.Context(), accountID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"inserted":    result.Inserted,
			"updated":     result.Updated,
			"deleted":     result.Deleted,
			"moodEntries": views,
		})

	case http.MethodPost:
		form, err := readEntryForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		defer form.close()
		view, err := s.service.CreateMoodEntry(r.Context(), accountID, form.record, form.uploads)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		w.Header().Set("Location", moodEntriesPath+"/"+view.ID)
		writeJSON(w, http.StatusCreated, view)

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleMoodEntry(w http.ResponseWriter, r *http.Request, accountID, id string) {
	switch r.Method {
	case http.MethodGet:
		view, err := s.service.engine.GetMoodEntryWithActivities(r.Context(), accountID, id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case http.MethodPut:
		form, err := readEntryForm(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		defer form.close()
		form.record.ID = id
		view, err := s.service.UpdateMoodEntry(r.Context(), accountID, form.record, form.kept, form.uploads, form.deleted)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)

	case http.MethodDelete:
		if err := s.service.DeleteMoodEntry(r.Context(), accountID, id); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// entryForm is a mood entry write, sent either as a JSON record or as a
// multipart form with record, images, newImages and deletedImages parts.
type entryForm struct {
	record  store.MoodEntry
	kept    []string
	deleted []string
	uploads []ImageUpload
	files   []multipart.File
}

func (f *entryForm) close() {
	for _, file := range f.files {
		_ = file.Close()
	}
}

func readEntryForm(r *http.Request) (*entryForm, error) {
	form := &entryForm{}
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := decodeBody(r, &form.record); err != nil {
			return nil, err
		}
		return form, nil
	}

	if err := r.ParseMultipartForm(maxMultipartSize); err != nil {
		return nil, fmt.Errorf("invalid multipart body")
	}
	record := r.MultipartForm.Value["record"]
	if len(record) == 0 {
		return nil, fmt.Errorf("missing record")
	}
	if err := json.Unmarshal([]byte(record[0]), &form.record); err != nil {
		return nil, fmt.Errorf("invalid record")
	}
	var err error
	if form.kept, err = formRefs(r.MultipartForm.Value["images"]); err != nil {
		return nil, err
	}
	if form.deleted, err = formRefs(r.MultipartForm.Value["deletedImages"]); err != nil {
		return nil, err
	}
	for _, header := range r.MultipartForm.File["newImages"] {
		file, err := header.Open()
		if err != nil {
			form.close()
			return nil, fmt.Errorf("read image %s", header.Filename)
		}
		form.files = append(form.files, file)
		form.uploads = append(form.uploads, ImageUpload{
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
	}
	return form, nil
}

// formRefs accepts image references as repeated fields or as one JSON array.
// It returns nil when the field is absent.
func formRefs(values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var refs []string
		if err := json.Unmarshal([]byte(values[0]), &refs); err != nil {
			return nil, fmt.Errorf("invalid image list")
		}
		if refs == nil {
			refs = []string{}
		}
		return refs, nil
	}
	refs := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			refs = append(refs, v)
		}
	}
	return refs, nil
}

func (s *HTTPServer) requireAccount(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return auth.Claims{}, false
	}
	claims, err := s.service.accounts.Authenticate(r.Context(), token)
	if err != nil {
		s.fail(w, r, err)
		return auth.Claims{}, false
	}
	return claims, true
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	s.logFailure(r, status, err)
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) logFailure(r *http.Request, status int, err error) {
	if status < http.StatusInternalServerError {
		return
	}
	s.log.Error("request failed",
		zap.String("request_id", requestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", reqID)

		next.ServeHTTP(writer, r)

		s.log.Info("request",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
