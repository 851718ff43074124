// README: Driver handlers for presence, offers, and lifecycle actions.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedesk/internal/http/middleware"
	"ridedesk/internal/modules/offer"
	"ridedesk/internal/modules/presence"
	"ridedesk/internal/modules/trip"
	"ridedesk/internal/types"
)

type DriverHandler struct {
	trips    *trip.Service
	offers   *offer.Service
	presence *presence.Service
}

func NewDriverHandler(trips *trip.Service, offers *offer.Service, presence *presence.Service) *DriverHandler {
	return &DriverHandler{trips: trips, offers: offers, presence: presence}
}

type presenceReq struct {
	Availability presence.Availability `json:"availability" binding:"required"`
	Position     *types.Point          `json:"position"`
}

type availabilityReq struct {
	Availability presence.Availability `json:"availability" binding:"required"`
}

func callerDriver(c *gin.Context) types.ID {
	return types.ID(middleware.CallerUID(c))
}

func (h *DriverHandler) UpdatePresence(c *gin.Context) {
	var req presenceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.presence.Upsert(c.Request.Context(), presence.UpsertCommand{
		DriverID:     callerDriver(c),
		Availability: req.Availability,
		Position:     req.Position,
	})
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *DriverHandler) UpdateAvailability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	p, err := h.presence.SetAvailability(c.Request.Context(), callerDriver(c), req.Availability)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func (h *DriverHandler) GetPresence(c *gin.Context) {
	p, err := h.presence.Get(c.Request.Context(), callerDriver(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

type dashboardResp struct {
	DriverID            types.ID              `json:"driver_id"`
	Availability        presence.Availability `json:"availability"`
	CompletedTrips      int                   `json:"completed_trips"`
	CompletedRides      int                   `json:"completed_rides"`
	CompletedDeliveries int                   `json:"completed_deliveries"`
	Earnings            types.Money           `json:"earnings"`
}

// Dashboard reports availability and lifetime totals. A driver who never
// reported presence shows as OFFLINE.
func (h *DriverHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	driverID := callerDriver(c)

	availability := presence.Offline
	p, err := h.presence.Get(ctx, driverID)
	switch {
	case err == nil:
		availability = p.Availability
	case !errors.Is(err, presence.ErrNotFound):
		writeAppError(c, err)
		return
	}
	st, err := h.trips.DriverSummary(ctx, driverID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, dashboardResp{
		DriverID:            driverID,
		Availability:        availability,
		CompletedTrips:      st.CompletedTrips(),
		CompletedRides:      st.CompletedRides,
		CompletedDeliveries: st.CompletedDeliveries,
		Earnings:            st.Earnings,
	})
}

func (h *DriverHandler) ListTrips(c *gin.Context) {
	list, err := h.trips.ListByDriver(c.Request.Context(), callerDriver(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	if list == nil {
		list = []*trip.Trip{}
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": list})
}

func (h *DriverHandler) ListOffers(c *gin.Context) {
	list, err := h.offers.OpenOffers(c.Request.Context(), callerDriver(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"offers": list})
}

func (h *DriverHandler) Accept(c *gin.Context) {
	id, ok := tripIDParam(c)
	if !ok {
		return
	}
	t, err := h.offers.Accept(c.Request.Context(), types.ID(id), callerDriver(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, t)
}

func (h *DriverHandler) Reject(c *gin.Context) {
	id, ok := tripIDParam(c)
	if !ok {
		return
	}
	o, err := h.offers.Reject(c.Request.Context(), types.ID(id), callerDriver(c))
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, o)
}

// Advance returns the handler for one lifecycle action.
func (h *DriverHandler) Advance(action trip.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := tripIDParam(c)
		if !ok {
			return
		}
		t, err := h.trips.Advance(c.Request.Context(), trip.AdvanceCommand{
			TripID:   types.ID(id),
			DriverID: callerDriver(c),
			Action:   action,
		})
		if err != nil {
			writeAppError(c, err)
			return
		}
		writeJSON(c, http.StatusOK, t)
	}
}
