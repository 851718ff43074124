// README: Matching handlers trigger dispatch for a pending trip and report its history.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridedesk/internal/http/middleware"
	"ridedesk/internal/modules/matching"
	"ridedesk/internal/modules/trip"
	"ridedesk/internal/types"
)

type MatchingHandler struct {
	trips    *trip.Service
	matching *matching.Service
}

func NewMatchingHandler(trips *trip.Service, matching *matching.Service) *MatchingHandler {
	return &MatchingHandler{trips: trips, matching: matching}
}

// ownTrip loads the trip named in the path when the caller is its requester or
// an admin. It writes the error response itself.
func (h *MatchingHandler) ownTrip(c *gin.Context) (*trip.Trip, bool) {
	id, ok := tripIDParam(c)
	if !ok {
		return nil, false
	}
	t, err := h.trips.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeAppError(c, err)
		return nil, false
	}
	if t.RequesterID != types.ID(middleware.CallerUID(c)) && middleware.CallerRole(c) != middleware.RoleAdmin {
		writeError(c, http.StatusForbidden, "forbidden: only the requester can see dispatch for this trip")
		return nil, false
	}
	return t, true
}

// Dispatch may be triggered by the trip's requester or an admin.
func (h *MatchingHandler) Dispatch(c *gin.Context) {
	t, ok := h.ownTrip(c)
	if !ok {
		return
	}
	res, err := h.matching.Dispatch(c.Request.Context(), t.ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *MatchingHandler) History(c *gin.Context) {
	t, ok := h.ownTrip(c)
	if !ok {
		return
	}
	hist, err := h.matching.History(c.Request.Context(), t.ID)
	if err != nil {
		writeAppError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, hist)
}
