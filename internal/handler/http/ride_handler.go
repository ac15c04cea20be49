package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rajpalom13/move-meal-sub001/internal/auth"
	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/internal/service"
	"github.com/rajpalom13/move-meal-sub001/pkg/geo"
	"github.com/rajpalom13/move-meal-sub001/pkg/response"
)

type RideHandler struct {
	svc *service.RideService
}

func NewRideHandler(svc *service.RideService) *RideHandler {
	return &RideHandler{svc: svc}
}

func (h *RideHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateRideInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.Create(r.Context(), auth.UserID(r.Context()), auth.Gender(r.Context()), in)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, c)
}

func (h *RideHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)

	var femaleOnly *bool
	if v := r.URL.Query().Get("female_only"); v != "" {
		b := v == "true"
		femaleOnly = &b
	}

	clusters, total, err := h.svc.List(r.Context(), r.URL.Query().Get("status"), femaleOnly, limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, http.StatusOK, clusters, paginationFor(page, limit, total))
}

func (h *RideHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)
	clusters, total, err := h.svc.ListMine(r.Context(), auth.UserID(r.Context()), limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, http.StatusOK, clusters, paginationFor(page, limit, total))
}

func (h *RideHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	p, ok := pointParam(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "lat and lng query params are required")
		return
	}
	page, limit, offset := pageParams(r)
	clusters, total, err := h.svc.Nearby(r.Context(), auth.UserID(r.Context()), p, radiusParam(r), limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, http.StatusOK, clusters, paginationFor(page, limit, total))
}

func (h *RideHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *RideHandler) Join(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PickupPoint   geo.Point `json:"pickup_point"`
		PickupAddress string    `json:"pickup_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.Join(r.Context(), chi.URLParam(r, "id"),
		auth.UserID(r.Context()), auth.Gender(r.Context()), in.PickupPoint, in.PickupAddress)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *RideHandler) Leave(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Leave(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *RideHandler) UpdatePickup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PickupPoint   geo.Point `json:"pickup_point"`
		PickupAddress string    `json:"pickup_address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.UpdatePickup(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), in.PickupPoint, in.PickupAddress)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *RideHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status domain.RideStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Status == "" {
		response.Error(w, http.StatusBadRequest, "status is required")
		return
	}

	c, err := h.svc.Advance(r.Context(), chi.URLParam(r, "id"),
		auth.UserID(r.Context()), auth.RoleOf(r.Context()) == "admin", in.Status)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *RideHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"),
		auth.UserID(r.Context()), auth.RoleOf(r.Context()) == "admin")
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}
