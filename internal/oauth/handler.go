package oauth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"jarvis/pkg/logging"
)

// UserResolver returns the authenticated user of a request. The server's
// authentication middleware provides it.
type UserResolver func(r *http.Request) (userID string, ok bool)

// Handler serves the integration endpoints on top of a Manager.
type Handler struct {
	manager *Manager
	user    UserResolver
}

// NewHandler creates a Handler.
func NewHandler(manager *Manager, user UserResolver) *Handler {
	return &Handler{manager: manager, user: user}
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// IntegrationView is the public shape of an Integration. It deliberately
// has no refresh token field.
type IntegrationView struct {
	Type         IntegrationType   `json:"type" yaml:"type"`
	AppID        string            `json:"appId" yaml:"appId"`
	Status       IntegrationStatus `json:"status" yaml:"status"`
	StatusReason string            `json:"statusReason,omitempty" yaml:"statusReason,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt" yaml:"updatedAt"`
}

// NewIntegrationView strips the credential from an integration.
func NewIntegrationView(i *Integration) IntegrationView {
	return IntegrationView{
		Type:         i.IntegrationType,
		AppID:        i.AppID,
		Status:       i.Status,
		StatusReason: i.StatusReason,
		UpdatedAt:    i.UpdatedAt,
	}
}

// GenerateAuthLink handles GET /integrations/GenerateAuthLink?referer=&type=
// by redirecting the browser to the provider.
func (h *Handler) GenerateAuthLink(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)

	userID, ok := h.user(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	q := r.URL.Query()
	t, err := ParseIntegrationType(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	authURL, err := h.manager.StartAuthorization(r.Context(), userID, t, q.Get("referer"))
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		logging.Error("OAuth", err, "Failed to start authorization for user=%s", logging.TruncateID(userID))
		writeError(w, http.StatusInternalServerError, "server_error", "failed to start authorization")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

// ExchangeCodeForToken handles the provider callback
// GET /integrations/ExchangeCodeForToken?code=&error=&error_description=&sessionId=.
func (h *Handler) ExchangeCodeForToken(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)

	q := r.URL.Query()
	sessionID := q.Get(SessionIDParam)
	if sessionID == "" {
		// Providers that drop redirect_uri query parameters still echo state.
		sessionID = q.Get("state")
	}

	auth, err := h.manager.CompleteAuthorization(r.Context(), CallbackParams{
		SessionID:        sessionID,
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		status, body := callbackError(err)
		writeError(w, status, body.Error, body.ErrorDescription)
		return
	}

	http.Redirect(w, r, auth.Referer, http.StatusFound)
}

// ListIntegrations handles GET /integrations.
func (h *Handler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	setSecurityHeaders(w)

	userID, ok := h.user(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	integrations, err := h.manager.ListIntegrations(r.Context(), userID)
	if err != nil {
		logging.Error("OAuth", err, "Failed to list integrations for user=%s", logging.TruncateID(userID))
		writeError(w, http.StatusInternalServerError, "server_error", "failed to list integrations")
		return
	}

	views := make([]IntegrationView, 0, len(integrations))
	for _, i := range integrations {
		views = append(views, NewIntegrationView(i))
	}
	writeJSON(w, http.StatusOK, views)
}

// callbackError maps a CompleteAuthorization error to a response.
func callbackError(err error) (int, errorResponse) {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return http.StatusBadRequest, errorResponse{Error: authErr.Code, ErrorDescription: authErr.Description}
	}

	var tokenErr *TokenEndpointError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusBadRequest, errorResponse{
			Error:            "invalid_session",
			ErrorDescription: "authorization session expired or not found, request a new link",
		}
	case errors.Is(err, ErrTransient):
		return http.StatusBadGateway, errorResponse{
			Error:            "temporarily_unavailable",
			ErrorDescription: "the provider could not be reached, request a new link",
		}
	case errors.As(err, &tokenErr) && tokenErr.Code != "":
		return http.StatusBadRequest, errorResponse{Error: tokenErr.Code, ErrorDescription: tokenErr.Description}
	case errors.Is(err, ErrTokenExchange), errors.Is(err, ErrProviderContract):
		return http.StatusBadRequest, errorResponse{
			Error:            "token_exchange_failed",
			ErrorDescription: "the authorization code could not be redeemed",
		}
	default:
		logging.Error("OAuth", err, "Callback failed")
		return http.StatusInternalServerError, errorResponse{Error: "server_error"}
	}
}

// setSecurityHeaders keeps codes and tokens out of caches and referers.
func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "no-referrer")
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: description})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("OAuth", "Failed to write response: %v", err)
	}
}
