package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hookline/tow-bookings/internal/domain"
)

// Estimate quotes a tow without creating anything.
// GET /v1/estimate?vehicle_size=medium&distance_km=10
func (h *Handlers) Estimate(w http.ResponseWriter, r *http.Request) {
	size := r.URL.Query().Get("vehicle_size")
	if size == "" {
		writeError(w, http.StatusBadRequest, "vehicle_size is required")
		return
	}

	distance, err := strconv.ParseFloat(r.URL.Query().Get("distance_km"), 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "distance_km must be a number")
		return
	}

	parsed, ok := domain.ParseVehicleSize(size)
	if !ok {
		// Let pricing report the unmapped size as a configuration fault
		parsed = domain.VehicleSize(size)
	}

	quote, err := h.bookings.Estimate(r.Context(), parsed, distance)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// CreatePaymentIntent opens a payment intent for the quoted total. The
// client confirms it with card details before submitting the booking.
// POST /v1/payments/intent
func (h *Handlers) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleSize string  `json:"vehicle_size"`
		DistanceKm  float64 `json:"distance_km"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	parsed, ok := domain.ParseVehicleSize(req.VehicleSize)
	if !ok {
		parsed = domain.VehicleSize(req.VehicleSize)
	}

	intent, err := h.bookings.CreatePaymentIntent(r.Context(), parsed, req.DistanceKm)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"intent_id":     intent.ID,
		"client_secret": intent.ClientSecret,
		"amount_cents":  intent.AmountCents,
		"currency":      intent.Currency,
	})
}

// CreateBooking submits a booking. Callers either present a bearer token
// or flag the submission as test mode; anonymous paid bookings are not
// accepted.
// POST /v1/bookings
func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	claims := getClaims(r)
	if claims != nil {
		req.UserID = &claims.Sub
	} else if !req.TestMode {
		writeError(w, http.StatusUnauthorized, "Sign in to book, or submit in test mode")
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	result, err := h.bookings.Submit(r.Context(), &req, idempotencyKey)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// GetBooking returns one booking to its owner or to staff.
// GET /v1/bookings/{id}
func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	booking, err := h.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if booking == nil {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}

	if !isStaff(claims) && !booking.IsUserOwner(claims.Sub) {
		writeError(w, http.StatusForbidden, "Not your booking")
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

// ListMyBookings returns the caller's bookings, newest first.
// GET /v1/bookings
func (h *Handlers) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	claims := getClaims(r)
	limit, offset := parsePagination(r)

	bookings, err := h.bookings.ListByUser(r.Context(), claims.Sub, limit, offset)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"count":    len(bookings),
	})
}
