package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hookline/tow-bookings/internal/domain"
)

// AdminCreateBooking enters a booking taken over the phone. No payment
// is collected here; the booking starts out pending.
// POST /v1/admin/bookings
func (h *Handlers) AdminCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	booking, err := h.admin.CreateBooking(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, booking)
}

// ListBookings returns the paged dispatch view, newest first, each row
// joined with its customer and service summaries.
// GET /v1/admin/bookings?page=1&limit=20&status=paid
func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePage(r)

	var status *domain.BookingStatus
	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		st, ok := domain.ParseBookingStatus(statusParam)
		if !ok {
			writeError(w, http.StatusBadRequest, "Invalid status parameter")
			return
		}
		status = &st
	}

	result, err := h.admin.ListBookings(r.Context(), page, limit, status)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// AdminGetBooking handles getting a single booking for dispatch staff.
// GET /v1/admin/bookings/{id}
func (h *Handlers) AdminGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	detail, err := h.admin.GetBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// AdminUpdateBooking handles updating any booking for dispatch staff.
// PATCH /v1/admin/bookings/{id}
func (h *Handlers) AdminUpdateBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	var patch domain.BookingPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	updated, err := h.admin.UpdateBooking(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// AdminDeleteBooking removes a booking row. The linked service row stays.
// DELETE /v1/admin/bookings/{id}
func (h *Handlers) AdminDeleteBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	if err := h.admin.DeleteBooking(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Receipt streams the booking receipt as a PDF download.
// GET /v1/admin/bookings/{id}/receipt
func (h *Handlers) Receipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID")
		return
	}

	pdf, filename, err := h.admin.Receipt(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// AdminCreateUser opens an account with any valid role. Self-service
// registration only issues customer accounts; staff come through here.
// POST /v1/admin/users
func (h *Handlers) AdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	user, err := h.admin.CreateUser(r.Context(), &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// ListUsers handles listing accounts for admins.
// GET /v1/admin/users?page=1&limit=20
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePage(r)

	result, err := h.admin.ListUsers(r.Context(), page, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/admin/users/{id}
func (h *Handlers) AdminGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := h.admin.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// AdminUpdateUser handles profile and role changes for admins.
// PATCH /v1/admin/users/{id}
func (h *Handlers) AdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	user, err := h.admin.UpdateUser(r.Context(), id, &req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DELETE /v1/admin/users/{id}
func (h *Handlers) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.admin.DeleteUser(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AdminCreateService registers a service record ahead of time, for jobs
// booked over the phone.
// POST /v1/admin/services
func (h *Handlers) AdminCreateService(w http.ResponseWriter, r *http.Request) {
	var create domain.ServiceCreate
	if err := json.NewDecoder(r.Body).Decode(&create); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	svc, err := h.admin.CreateService(r.Context(), &create)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, svc)
}

// GET /v1/admin/services?page=1&limit=20
func (h *Handlers) ListServices(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePage(r)

	result, err := h.admin.ListServices(r.Context(), page, limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /v1/admin/services/{id}
func (h *Handlers) AdminGetService(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service ID")
		return
	}

	svc, err := h.admin.GetService(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, svc)
}

// PATCH /v1/admin/services/{id}
func (h *Handlers) AdminUpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service ID")
		return
	}

	var patch domain.ServicePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	svc, err := h.admin.UpdateService(r.Context(), id, patch)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, svc)
}

// DELETE /v1/admin/services/{id}
func (h *Handlers) AdminDeleteService(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service ID")
		return
	}

	if err := h.admin.DeleteService(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// VerifyService answers receipt QR scans. No auth; the response carries
// the service row only.
// GET /verify/{serviceNumber}
func (h *Handlers) VerifyService(w http.ResponseWriter, r *http.Request) {
	serviceNumber := chi.URLParam(r, "serviceNumber")
	if serviceNumber == "" {
		writeError(w, http.StatusBadRequest, "Service number is required")
		return
	}

	svc, err := h.admin.VerifyService(r.Context(), serviceNumber)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":   true,
		"service": svc,
	})
}
