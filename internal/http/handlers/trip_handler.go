// README: Trip handlers for booking, status, cancellation, history, and fare quotes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedesk/internal/http/middleware"
	"ridedesk/internal/modules/pricing"
	"ridedesk/internal/modules/trip"
	"ridedesk/internal/types"
)

type TripHandler struct {
	trips   *trip.Service
	pricing *pricing.Service
}

func NewTripHandler(trips *trip.Service, pricing *pricing.Service) *TripHandler {
	return &TripHandler{trips: trips, pricing: pricing}
}

type createRideReq struct {
	Pickup   types.Place `json:"pickup"`
	Dropoff  types.Place `json:"dropoff"`
	Category string      `json:"category"`
}

type createDeliveryReq struct {
	Pickup        types.Place `json:"pickup"`
	Dropoff       types.Place `json:"dropoff"`
	Category      string      `json:"category"`
	PackageType   string      `json:"package_type" binding:"required"`
	ReceiverName  string      `json:"receiver_name" binding:"required"`
	ReceiverPhone string      `json:"receiver_phone" binding:"required"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type estimateReq struct {
	Kind     string      `json:"kind" binding:"required"`
	Category string      `json:"category"`
	Pickup   types.Point `json:"pickup"`
	Dropoff  types.Point `json:"dropoff"`
}

func (h *TripHandler) CreateRide(c *gin.Context) {
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		Kind:        trip.KindRide,
		RequesterID: types.ID(middleware.CallerUID(c)),
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		Category:    req.Category,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

func (h *TripHandler) CreateDelivery(c *gin.Context) {
	var req createDeliveryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	t, err := h.trips.Create(c.Request.Context(), trip.CreateCommand{
		Kind:        trip.KindDelivery,
		RequesterID: types.ID(middleware.CallerUID(c)),
		Pickup:      req.Pickup,
		Dropoff:     req.Dropoff,
		Category:    req.Category,
		Delivery: &trip.DeliveryDetails{
			PackageType:   req.PackageType,
			ReceiverName:  req.ReceiverName,
			ReceiverPhone: req.ReceiverPhone,
		},
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, t)
}

// Get returns a trip to its requester, its driver, an admin, or any driver
// while the trip is still open for offers.
func (h *TripHandler) Get(c *gin.Context) {
	id, ok := tripIDParam(c)
	if !ok {
		return
	}
	t, err := h.trips.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeAppError(c, err)
		return
	}
	uid := types.ID(middleware.CallerUID(c))
	role := middleware.CallerRole(c)
	switch {
	case t.RequesterID == uid, t.IsAssignedTo(uid), role == middleware.RoleAdmin:
	case role == middleware.RoleDriver && t.Status == trip.StatusPending:
	default:
		writeError(c, http.StatusForbidden, "forbidden: not a party to this trip")
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) Cancel(c *gin.Context) {
	id, ok := tripIDParam(c)
	if !ok {
		return
	}
	var req cancelReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	t, err := h.trips.Cancel(c.Request.Context(), trip.CancelCommand{
		TripID:    types.ID(id),
		ActorID:   types.ID(middleware.CallerUID(c)),
		ActorType: middleware.CallerRole(c),
		Reason:    req.Reason,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *TripHandler) ListMine(c *gin.Context) {
	list, err := h.trips.ListByRequester(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeAppError(c, err)
		return
	}
	if list == nil {
		list = []*trip.Trip{}
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": list})
}

func (h *TripHandler) EstimateFare(c *gin.Context) {
	var req estimateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	category := req.Category
	if category == "" {
		category = "economy"
		if req.Kind == string(trip.KindDelivery) {
			category = "standard"
		}
	}
	q, err := h.pricing.Quote(c.Request.Context(), req.Kind, category, req.Pickup, req.Dropoff)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}
