// Package httpapi exposes the JSON API. It is a thin collaborator
// surface: request decoding, viewer-context extraction and status-code
// mapping live here, every decision lives in the service layer.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/voidnote/voidnote/internal/common"
	"github.com/voidnote/voidnote/internal/logging"
	"github.com/voidnote/voidnote/internal/server/auth"
	sc "github.com/voidnote/voidnote/internal/server/config"
	"github.com/voidnote/voidnote/internal/server/models"
	"github.com/voidnote/voidnote/internal/server/services"
	"github.com/voidnote/voidnote/internal/timex"
)

type Handler struct {
	svc    *services.SecretService
	config *sc.Config
	logger logging.Logger
}

func NewHandler(svc *services.SecretService, cfg *sc.Config, logger logging.Logger) *Handler {
	return &Handler{
		svc:    svc,
		config: cfg,
		logger: logger.With("module", "httpapi"),
	}
}

// CreateRequest carries sender-encrypted material. []byte fields
// marshal as base64; the server never sees plaintext or keys.
type CreateRequest struct {
	Ciphertext   []byte `json:"ciphertext,omitempty"`
	ContentNonce []byte `json:"content_nonce,omitempty"`

	FileRef   string `json:"file_ref,omitempty"`
	FileNonce []byte `json:"file_nonce,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	FileType  string `json:"file_type,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`

	PassphraseHash    []byte `json:"passphrase_hash,omitempty"`
	KeyDerivationSalt []byte `json:"key_derivation_salt,omitempty"`

	MaxViews int            `json:"max_views,omitempty"`
	TTL      timex.Duration `json:"ttl,omitempty"`

	RequireAuth    bool     `json:"require_auth,omitempty"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	CustomLabels   []string `json:"custom_labels,omitempty"`
}

type CreateResponse struct {
	ID         string    `json:"id"`
	ShortID    string    `json:"short_id"`
	OwnerToken string    `json:"owner_token"`
	ExpiresAt  time.Time `json:"expires_at"`
	MaxViews   int       `json:"max_views"`
}

type RevealResponse struct {
	Ciphertext        []byte `json:"ciphertext,omitempty"`
	ContentNonce      []byte `json:"content_nonce,omitempty"`
	KeyDerivationSalt []byte `json:"key_derivation_salt,omitempty"`
	HasPassphrase     bool   `json:"has_passphrase"`

	FileName  string `json:"file_name,omitempty"`
	FileType  string `json:"file_type,omitempty"`
	FileSize  int64  `json:"file_size,omitempty"`
	FileNonce []byte `json:"file_nonce,omitempty"`
	FileURL   string `json:"file_url,omitempty"`

	ViewsRemaining int `json:"views_remaining"`
}

type StatusResponse struct {
	Available      bool      `json:"available"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	ViewsRemaining int       `json:"views_remaining,omitempty"`
	HasPassphrase  bool      `json:"has_passphrase,omitempty"`
	HasFile        bool      `json:"has_file,omitempty"`
}

type ExpiryRequest struct {
	ExpiresAt time.Time `json:"expires_at"`
}

type UploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type AccessLogEntry struct {
	AccessedAt  time.Time `json:"accessed_at"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ActorIP     string    `json:"actor_ip,omitempty"`
	ActorAgent  string    `json:"actor_agent,omitempty"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateSecret(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.Create(r.Context(), services.CreateParams{
		Ciphertext:        req.Ciphertext,
		ContentNonce:      req.ContentNonce,
		FileRef:           req.FileRef,
		FileNonce:         req.FileNonce,
		FileName:          req.FileName,
		FileType:          req.FileType,
		FileSize:          req.FileSize,
		PassphraseHash:    req.PassphraseHash,
		KeyDerivationSalt: req.KeyDerivationSalt,
		MaxViews:          req.MaxViews,
		TTL:               req.TTL.Duration,
		AccessRules: models.AccessRules{
			RequireAuth:    req.RequireAuth,
			AllowedDomains: req.AllowedDomains,
			CustomLabels:   req.CustomLabels,
		},
		OwnerID: h.viewerID(r),
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrCreationFailed):
			h.error(w, http.StatusServiceUnavailable, "could not allocate identifier")
		case errors.Is(err, common.ErrStoreUnavailable):
			h.error(w, http.StatusServiceUnavailable, "store unavailable")
		default:
			h.error(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	h.json(w, http.StatusCreated, CreateResponse{
		ID:         res.Secret.ID,
		ShortID:    res.Secret.ShortID,
		OwnerToken: res.OwnerToken,
		ExpiresAt:  res.Secret.ExpiresAt,
		MaxViews:   res.Secret.MaxViews,
	})
}

func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	key, url, err := h.svc.PresignUpload(r.Context())
	if err != nil {
		h.error(w, http.StatusServiceUnavailable, "blob storage unavailable")
		return
	}
	h.json(w, http.StatusOK, UploadResponse{Key: key, URL: url})
}

func (h *Handler) RevealSecret(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "id")

	res, err := h.svc.Reveal(r.Context(), shortID, h.requestContext(r))
	if err != nil {
		h.denial(w, err)
		return
	}

	h.json(w, http.StatusOK, RevealResponse{
		Ciphertext:        res.Ciphertext,
		ContentNonce:      res.ContentNonce,
		KeyDerivationSalt: res.KeyDerivationSalt,
		HasPassphrase:     res.HasPassphrase,
		FileName:          res.FileName,
		FileType:          res.FileType,
		FileSize:          res.FileSize,
		FileNonce:         res.FileNonce,
		FileURL:           res.FileURL,
		ViewsRemaining:    res.ViewsRemaining,
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.error(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}

	h.json(w, http.StatusOK, StatusResponse{
		Available:      st.Available,
		ExpiresAt:      st.ExpiresAt,
		ViewsRemaining: st.ViewsRemaining,
		HasPassphrase:  st.HasPassphrase,
		HasFile:        st.HasFile,
	})
}

func (h *Handler) BurnSecret(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.svc.ForceBurn(r.Context(), id, r.Header.Get(common.OwnerTokenHeaderName), h.requestContext(r))
	if err != nil {
		h.ownerError(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"status": "burned"})
}

func (h *Handler) ExtendExpiry(w http.ResponseWriter, r *http.Request) {
	var req ExpiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExpiresAt.IsZero() {
		h.error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := chi.URLParam(r, "id")
	err := h.svc.ExtendExpiry(r.Context(), id, r.Header.Get(common.OwnerTokenHeaderName), req.ExpiresAt)
	if err != nil {
		h.ownerError(w, err)
		return
	}
	h.json(w, http.StatusOK, map[string]string{"status": "extended"})
}

func (h *Handler) GetAccessLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entries, err := h.svc.AccessLog(r.Context(), id, r.Header.Get(common.OwnerTokenHeaderName))
	if err != nil {
		h.ownerError(w, err)
		return
	}

	out := make([]AccessLogEntry, len(entries))
	for i, e := range entries {
		out[i] = AccessLogEntry{
			AccessedAt:  e.AccessedAt,
			Status:      string(e.Status),
			Error:       e.ErrorMessage,
			ActorIP:     e.ActorIP,
			ActorAgent:  e.ActorAgent,
			ActorUserID: e.ActorUserID,
		}
	}
	h.json(w, http.StatusOK, out)
}

// requestContext builds the viewer context the rule evaluator and the
// audit log see. Viewer identity comes from an optional bearer token;
// the core treats it as an opaque verified id.
func (h *Handler) requestContext(r *http.Request) models.RequestContext {
	host := r.Host
	if hostOnly, _, err := net.SplitHostPort(host); err == nil {
		host = hostOnly
	}
	return models.RequestContext{
		UserID:    h.viewerID(r),
		Hostname:  host,
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

func (h *Handler) viewerID(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return ""
	}
	id, err := auth.OwnerIDFromToken(token, []byte(h.config.SecretKey))
	if err != nil {
		return ""
	}
	return id
}

// denial maps reveal-path errors. Unavailability keeps one generic 404
// body for every cause; rule denials are distinct because they are
// actionable for their intended audience.
func (h *Handler) denial(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrSecretNotAvailable):
		h.error(w, http.StatusNotFound, "secret not available")
	case errors.Is(err, common.ErrAuthRequired):
		h.error(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, common.ErrDomainNotAllowed):
		h.error(w, http.StatusForbidden, "access not allowed from this domain")
	case errors.Is(err, common.ErrStoreUnavailable):
		h.error(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) ownerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		h.error(w, http.StatusUnauthorized, "invalid owner token")
	case errors.Is(err, common.ErrNotFound):
		h.error(w, http.StatusNotFound, "secret not available")
	case errors.Is(err, common.ErrAlreadyBurned):
		h.error(w, http.StatusConflict, "secret already burned")
	case errors.Is(err, common.ErrExpired):
		h.error(w, http.StatusConflict, "secret expired")
	case errors.Is(err, common.ErrStoreUnavailable):
		h.error(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.error(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) json(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn(context.Background(), "response encoding failed", "error", err)
	}
}

func (h *Handler) error(w http.ResponseWriter, status int, message string) {
	h.json(w, status, ErrorResponse{Error: message})
}
