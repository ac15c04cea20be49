package response

import (
	"encoding/json"
	"errors"
	"net/http"

	xerrors "github.com/rajpalom13/move-meal-sub001/pkg/xerrors"
)

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type APIResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func Paginated(w http.ResponseWriter, status int, data interface{}, p Pagination) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data, Pagination: &p})
}

func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{Success: false, Error: msg})
}

// FromError maps a domain error onto its HTTP status.
func FromError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, xerrors.ErrForbidden):
		Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, xerrors.ErrConflict):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrUnauthorized):
		Error(w, http.StatusUnauthorized, err.Error())
	default:
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
