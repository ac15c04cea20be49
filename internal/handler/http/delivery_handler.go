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

type DeliveryHandler struct {
	svc *service.DeliveryService
}

func NewDeliveryHandler(svc *service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{svc: svc}
}

func (h *DeliveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ClusterID string `json:"cluster_id"`
		RiderID   string `json:"rider_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.ClusterID == "" || in.RiderID == "" {
		response.Error(w, http.StatusBadRequest, "cluster_id and rider_id are required")
		return
	}

	d, err := h.svc.Create(r.Context(), auth.UserID(r.Context()),
		auth.RoleOf(r.Context()) == "admin", in.ClusterID, in.RiderID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, d)
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, d)
}

func (h *DeliveryHandler) Start(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	started, err := h.svc.Start(r.Context(), auth.UserID(r.Context()), auth.RoleOf(r.Context()) == "admin", d)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, started)
}

func (h *DeliveryHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Party string `json:"party"` // sender | receiver
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Code == "" {
		response.Error(w, http.StatusBadRequest, "party and code are required")
		return
	}

	var kind domain.OTPKind
	switch in.Party {
	case "sender":
		kind = domain.OTPDeliverySender
	case "receiver":
		kind = domain.OTPDeliveryReceiver
	default:
		response.Error(w, http.StatusBadRequest, "party must be sender or receiver")
		return
	}

	d, err := h.svc.VerifyHandoff(r.Context(), auth.UserID(r.Context()), in.Code, kind, chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, d)
}

func (h *DeliveryHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	cancelled, err := h.svc.Cancel(r.Context(), auth.UserID(r.Context()), auth.RoleOf(r.Context()) == "admin", d)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, cancelled)
}
