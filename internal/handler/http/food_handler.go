package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rajpalom13/move-meal-sub001/internal/auth"
	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/internal/service"
	"github.com/rajpalom13/move-meal-sub001/pkg/response"
)

type FoodHandler struct {
	svc *service.FoodService
}

func NewFoodHandler(svc *service.FoodService) *FoodHandler {
	return &FoodHandler{svc: svc}
}

func (h *FoodHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateFoodInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.Create(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, c)
}

func (h *FoodHandler) List(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)
	clusters, total, err := h.svc.List(r.Context(), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, http.StatusOK, clusters, paginationFor(page, limit, total))
}

func (h *FoodHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pageParams(r)
	clusters, total, err := h.svc.ListMine(r.Context(), auth.UserID(r.Context()), limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, http.StatusOK, clusters, paginationFor(page, limit, total))
}

func (h *FoodHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	p, ok := pointParam(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "lat and lng query params are required")
		return
	}
	page, limit, offset := pageParams(r)
	clusters, total, err := h.svc.Nearby(r.Context(), p, radiusParam(r), limit, offset)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Paginated(w, http.StatusOK, clusters, paginationFor(page, limit, total))
}

func (h *FoodHandler) DeliveryQuote(w http.ResponseWriter, r *http.Request) {
	p, ok := pointParam(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "lat and lng query params are required")
		return
	}
	q, err := h.svc.Quote(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, q)
}

func (h *FoodHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *FoodHandler) Join(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OrderAmount float64 `json:"order_amount"`
		Items       string  `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.Join(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), in.OrderAmount, in.Items)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *FoodHandler) Leave(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Leave(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *FoodHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OrderAmount float64 `json:"order_amount"`
		Items       string  `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	c, err := h.svc.UpdateOrder(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), in.OrderAmount, in.Items)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *FoodHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status domain.FoodStatus `json:"status"`
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

func (h *FoodHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Cancel(r.Context(), chi.URLParam(r, "id"),
		auth.UserID(r.Context()), auth.RoleOf(r.Context()) == "admin")
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}

func (h *FoodHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	err := h.svc.ResendCollectionOTP(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]string{"message": "collection code reissued"})
}

func (h *FoodHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Code == "" {
		response.Error(w, http.StatusBadRequest, "code is required")
		return
	}

	c, err := h.svc.VerifyCollection(r.Context(), chi.URLParam(r, "id"), auth.UserID(r.Context()), in.Code)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, c)
}
