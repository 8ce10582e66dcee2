package httpx

import (
	"errors"
	"net/http"

	domainauth "github.com/target/authflow/internal/domain/auth"
)

// UserHandlers provides HTTP handlers for protected user operations.
type UserHandlers struct {
	Svc AuthServiceInterface
}

// Profile returns the caller's own profile. The RequireAuth middleware has
// already validated the bearer token and stored the user ID in context.
// GET /user/profile.
func (h *UserHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
		return
	}

	profile, err := h.Svc.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domainauth.ErrUserNotFound) {
			WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "user_not_found", Err: err})
			return
		}
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "profile_failed", Err: err})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}
