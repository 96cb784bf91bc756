package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/internal/handlers"
	"github.com/hookline/tow-bookings/internal/payments"
	"github.com/hookline/tow-bookings/internal/pricing"
	"github.com/hookline/tow-bookings/pkg/auth"
	"github.com/hookline/tow-bookings/pkg/config"
)

const testSecret = "handler-test-secret"

// ---------- Mocks ----------

type mockBookingService struct {
	bookings  map[int64]*domain.Booking
	submitted []*domain.SubmitRequest
	lastKey   string
	submitErr error
}

func newMockBookingService() *mockBookingService {
	return &mockBookingService{bookings: make(map[int64]*domain.Booking)}
}

func (m *mockBookingService) Estimate(_ context.Context, size domain.VehicleSize, distanceKm float64) (pricing.Quote, error) {
	return pricing.Estimate(size, distanceKm)
}

func (m *mockBookingService) CreatePaymentIntent(_ context.Context, size domain.VehicleSize, distanceKm float64) (*payments.Intent, error) {
	quote, err := pricing.Estimate(size, distanceKm)
	if err != nil {
		return nil, err
	}
	return &payments.Intent{
		ID:           "pi_mock",
		ClientSecret: "pi_mock_secret_abc",
		AmountCents:  quote.TotalCents,
		Currency:     "usd",
		Status:       "requires_payment_method",
	}, nil
}

func (m *mockBookingService) Submit(_ context.Context, req *domain.SubmitRequest, key string) (*domain.SubmitResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if m.submitErr != nil {
		return nil, m.submitErr
	}

	m.submitted = append(m.submitted, req)
	m.lastKey = key

	id := int64(len(m.submitted))
	status := domain.BookingPaid
	if req.TestMode {
		status = domain.BookingTestMode
	}
	return &domain.SubmitResult{
		BookingID:     id,
		ServiceID:     id + 100,
		ServiceNumber: fmt.Sprintf("TOW-%08X", id),
		Status:        status,
		TotalCents:    9000,
	}, nil
}

func (m *mockBookingService) GetBooking(_ context.Context, id int64) (*domain.Booking, error) {
	return m.bookings[id], nil
}

func (m *mockBookingService) ListByUser(_ context.Context, userID int64, limit, offset int) ([]domain.Booking, error) {
	var result []domain.Booking
	for _, b := range m.bookings {
		if b.IsUserOwner(userID) {
			result = append(result, *b)
		}
	}
	return result, nil
}

type mockAdminService struct {
	bookings      map[int64]*domain.BookingDetail
	users         map[int64]*domain.User
	services      map[int64]*domain.Service
	nextServiceID int64
	listErr       error
	updateErr     error
}

func newMockAdminService() *mockAdminService {
	return &mockAdminService{
		bookings:      make(map[int64]*domain.BookingDetail),
		users:         make(map[int64]*domain.User),
		services:      make(map[int64]*domain.Service),
		nextServiceID: 1,
	}
}

func (m *mockAdminService) CreateBooking(_ context.Context, req *domain.SubmitRequest) (*domain.Booking, error) {
	req.Normalize()
	if err := req.ValidateDetails(); err != nil {
		return nil, err
	}
	id := int64(len(m.bookings) + 1)
	detail := &domain.BookingDetail{
		Booking: domain.Booking{
			ID:            id,
			ServiceNumber: domain.NewServiceNumber(),
			Status:        domain.BookingPending,
			CustomerName:  req.CustomerName,
			VehicleSize:   req.VehicleSize,
			DistanceKm:    req.DistanceKm,
		},
	}
	m.bookings[id] = detail
	booking := detail.Booking
	return &booking, nil
}

func (m *mockAdminService) ListBookings(_ context.Context, page, limit int, status *domain.BookingStatus) (*domain.BookingPage, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	data := []domain.BookingDetail{}
	for _, d := range m.bookings {
		if status != nil && d.Status != *status {
			continue
		}
		data = append(data, *d)
	}
	count := int64(len(data))
	totalPages := (count + int64(limit) - 1) / int64(limit)
	return &domain.BookingPage{Data: data, Count: count, TotalPages: totalPages}, nil
}

func (m *mockAdminService) GetBooking(_ context.Context, id int64) (*domain.BookingDetail, error) {
	d, exists := m.bookings[id]
	if !exists {
		return nil, domain.NotFoundError{Resource: "booking"}
	}
	return d, nil
}

func (m *mockAdminService) UpdateBooking(_ context.Context, id int64, patch domain.BookingPatch) (*domain.Booking, error) {
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	d, exists := m.bookings[id]
	if !exists {
		return nil, domain.NotFoundError{Resource: "booking"}
	}
	if patch.Status != nil {
		d.Status = *patch.Status
	}
	if patch.CustomerName != nil {
		d.CustomerName = *patch.CustomerName
	}
	booking := d.Booking
	return &booking, nil
}

func (m *mockAdminService) DeleteBooking(_ context.Context, id int64) error {
	if _, exists := m.bookings[id]; !exists {
		return domain.NotFoundError{Resource: "booking"}
	}
	delete(m.bookings, id)
	return nil
}

func (m *mockAdminService) Receipt(_ context.Context, bookingID int64) ([]byte, string, error) {
	d, exists := m.bookings[bookingID]
	if !exists {
		return nil, "", domain.NotFoundError{Resource: "booking"}
	}
	return []byte("%PDF-1.4 mock receipt"), d.ServiceNumber + ".pdf", nil
}

func (m *mockAdminService) CreateUser(_ context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	id := int64(len(m.users) + 1)
	user := &domain.User{ID: id, Email: req.Email, Name: req.Name, Phone: req.Phone, Role: req.Role}
	m.users[id] = user
	return user, nil
}

func (m *mockAdminService) ListUsers(_ context.Context, page, limit int) (*domain.UserPage, error) {
	data := []domain.User{}
	for _, u := range m.users {
		data = append(data, *u)
	}
	count := int64(len(data))
	totalPages := (count + int64(limit) - 1) / int64(limit)
	return &domain.UserPage{Data: data, Count: count, TotalPages: totalPages}, nil
}

func (m *mockAdminService) GetUser(_ context.Context, id int64) (*domain.User, error) {
	u, exists := m.users[id]
	if !exists {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	return u, nil
}

func (m *mockAdminService) UpdateUser(_ context.Context, id int64, req *domain.UpdateUserRequest) (*domain.User, error) {
	u, exists := m.users[id]
	if !exists {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Role != nil {
		u.Role = *req.Role
	}
	return u, nil
}

func (m *mockAdminService) DeleteUser(_ context.Context, id int64) error {
	delete(m.users, id)
	return nil
}

func (m *mockAdminService) CreateService(_ context.Context, create *domain.ServiceCreate) (*domain.Service, error) {
	create.Normalize()
	svc := &domain.Service{
		ID:            m.nextServiceID,
		ServiceNumber: domain.NewServiceNumber(),
		ServiceType:   create.ServiceType,
		CreatedAt:     time.Now(),
	}
	m.nextServiceID++
	m.services[svc.ID] = svc
	return svc, nil
}

func (m *mockAdminService) ListServices(_ context.Context, page, limit int) (*domain.ServicePage, error) {
	data := []domain.Service{}
	for _, s := range m.services {
		data = append(data, *s)
	}
	count := int64(len(data))
	totalPages := (count + int64(limit) - 1) / int64(limit)
	return &domain.ServicePage{Data: data, Count: count, TotalPages: totalPages}, nil
}

func (m *mockAdminService) GetService(_ context.Context, id int64) (*domain.Service, error) {
	s, exists := m.services[id]
	if !exists {
		return nil, domain.NotFoundError{Resource: "service"}
	}
	return s, nil
}

func (m *mockAdminService) UpdateService(_ context.Context, id int64, patch domain.ServicePatch) (*domain.Service, error) {
	s, exists := m.services[id]
	if !exists {
		return nil, domain.NotFoundError{Resource: "service"}
	}
	if patch.ServiceType != nil {
		s.ServiceType = *patch.ServiceType
	}
	return s, nil
}

func (m *mockAdminService) DeleteService(_ context.Context, id int64) error {
	delete(m.services, id)
	return nil
}

func (m *mockAdminService) VerifyService(_ context.Context, serviceNumber string) (*domain.Service, error) {
	for _, s := range m.services {
		if s.ServiceNumber == serviceNumber {
			return s, nil
		}
	}
	return nil, domain.NotFoundError{Resource: "service"}
}

type mockAuthService struct {
	users      map[int64]*domain.User
	registered []*domain.CreateUserRequest
}

func newMockAuthService() *mockAuthService {
	return &mockAuthService{users: make(map[int64]*domain.User)}
}

func (m *mockAuthService) Register(_ context.Context, req *domain.CreateUserRequest) (*domain.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m.registered = append(m.registered, req)

	id := int64(len(m.registered))
	user := &domain.User{ID: id, Email: req.Email, Name: req.Name, Phone: req.Phone, Role: domain.RoleCustomer}
	m.users[id] = user
	return m.tokensFor(user)
}

func (m *mockAuthService) Login(_ context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	for _, user := range m.users {
		if user.Email == req.Email {
			return m.tokensFor(user)
		}
	}
	return nil, domain.AuthError{Msg: "invalid credentials"}
}

func (m *mockAuthService) Refresh(_ context.Context, refreshToken string) (*domain.LoginResponse, error) {
	claims, err := auth.Parse(refreshToken, testSecret)
	if err != nil || claims.Scope != "refresh" {
		return nil, domain.AuthError{Msg: "invalid token type"}
	}
	user, exists := m.users[claims.Sub]
	if !exists {
		return nil, domain.AuthError{Msg: "invalid credentials"}
	}
	return m.tokensFor(user)
}

func (m *mockAuthService) GetUser(_ context.Context, id int64) (*domain.User, error) {
	user, exists := m.users[id]
	if !exists {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	return user, nil
}

func (m *mockAuthService) tokensFor(user *domain.User) (*domain.LoginResponse, error) {
	access, err := auth.NewAccessToken(user.ID, user.Email, user.Role, "bookings:read bookings:write", testSecret, 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.NewAccessToken(user.ID, user.Email, "refresh", "refresh", testSecret, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64((15 * time.Minute).Seconds()),
		User:         user.ToUserInfo(),
	}, nil
}

// ---------- Test Setup ----------

// setupTestServer wires the handlers onto the same route tree the API
// binary serves.
func setupTestServer() (*httptest.Server, *mockBookingService, *mockAdminService, *mockAuthService) {
	bookings := newMockBookingService()
	admin := newMockAdminService()
	authSvc := newMockAuthService()

	cfg := &config.Config{}
	cfg.Auth.JWTSecret = testSecret
	cfg.Bookings.AllowTestMode = true

	h := handlers.New(bookings, admin, authSvc, cfg)

	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Get("/estimate", h.Estimate)
		r.Post("/payments/intent", h.CreatePaymentIntent)

		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)
		r.Post("/auth/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(h.OptionalJWT)
			r.Post("/bookings", h.CreateBooking)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.RequireJWT(""))
			r.Get("/auth/me", h.Me)
			r.Get("/bookings", h.ListMyBookings)
			r.Get("/bookings/{id}", h.GetBooking)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireJWT(domain.RoleDispatcher))
			r.Post("/bookings", h.AdminCreateBooking)
			r.Get("/bookings", h.ListBookings)
			r.Get("/bookings/{id}", h.AdminGetBooking)
			r.Patch("/bookings/{id}", h.AdminUpdateBooking)
			r.Delete("/bookings/{id}", h.AdminDeleteBooking)
			r.Get("/bookings/{id}/receipt", h.Receipt)

			r.Post("/services", h.AdminCreateService)
			r.Get("/services", h.ListServices)
			r.Get("/services/{id}", h.AdminGetService)
			r.Patch("/services/{id}", h.AdminUpdateService)
			r.Delete("/services/{id}", h.AdminDeleteService)

			r.Route("/users", func(r chi.Router) {
				r.Use(h.RequireJWT(domain.RoleAdmin))
				r.Post("/", h.AdminCreateUser)
				r.Get("/", h.ListUsers)
				r.Get("/{id}", h.AdminGetUser)
				r.Patch("/{id}", h.AdminUpdateUser)
				r.Delete("/{id}", h.AdminDeleteUser)
			})
		})
	})
	r.Get("/verify/{serviceNumber}", h.VerifyService)

	return httptest.NewServer(r), bookings, admin, authSvc
}

func bearerFor(t *testing.T, sub int64, role string) string {
	t.Helper()
	token, err := auth.NewAccessToken(sub, "user@example.com", role, "bookings:read bookings:write", testSecret, 15*time.Minute)
	if err != nil {
		t.Fatalf("Failed to mint test token: %v", err)
	}
	return "Bearer " + token
}

func validBookingBody() map[string]interface{} {
	return map[string]interface{}{
		"service_type":          "tow",
		"customer_name":         "Dana Price",
		"customer_phone":        "555-123-4567",
		"customer_email":        "dana@example.com",
		"vehicle_brand":         "Honda",
		"vehicle_model":         "Civic",
		"vehicle_color":         "blue",
		"vehicle_plate":         "ABC1234",
		"vehicle_size":          "medium",
		"pickup_address":        "12 Elm St",
		"dropoff_address":       "400 Garage Way",
		"distance_km":           10,
		"pickup_at":             time.Now().Add(2 * time.Hour).Format(time.RFC3339),
		"payment_method":        "card",
		"payment_intent_secret": "pi_3Test_secret_abc",
	}
}

// ---------- Tests ----------

func TestEstimate_QuotesMediumSedan(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	resp := get(t, server.URL+"/v1/estimate?vehicle_size=medium&distance_km=10", http.StatusOK)
	defer resp.Body.Close()

	var quote pricing.Quote
	json.NewDecoder(resp.Body).Decode(&quote)

	if quote.TotalCents != 9000 {
		t.Fatalf("Expected 9000 cents, got %d", quote.TotalCents)
	}
	if quote.Category != domain.TruckStandard {
		t.Fatalf("Expected standard truck, got %s", quote.Category)
	}
}

func TestEstimate_MissingParams_BadRequest(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	tests := []struct {
		name  string
		query string
	}{
		{"missing vehicle_size", "?distance_km=10"},
		{"missing distance", "?vehicle_size=medium"},
		{"distance not a number", "?vehicle_size=medium&distance_km=ten"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, server.URL+"/v1/estimate"+tt.query, http.StatusBadRequest)
			resp.Body.Close()
		})
	}
}

// An unmapped size is an operator fault, not a caller fault, and the rate
// table details stay server-side.
func TestEstimate_UnmappedSize_ServerError(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	resp := get(t, server.URL+"/v1/estimate?vehicle_size=hovercraft&distance_km=10", http.StatusInternalServerError)
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)

	if body["error"] != "Internal server error" {
		t.Fatalf("Expected opaque error message, got %q", body["error"])
	}
}

func TestCreatePaymentIntent_ReturnsClientSecret(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	body := map[string]interface{}{"vehicle_size": "large", "distance_km": 5}
	resp := postJSON(t, server.URL+"/v1/payments/intent", body, http.StatusCreated)
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)

	if result["client_secret"] == "" {
		t.Fatal("Expected client_secret in response")
	}
	// large SUV, 5 km: 7500 + 5*300*2 = 10500
	if int64(result["amount_cents"].(float64)) != 10500 {
		t.Fatalf("Expected 10500 cents, got %v", result["amount_cents"])
	}
}

func TestCreateBooking_TestModeWithoutAccount(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	body := validBookingBody()
	body["test_mode"] = true
	delete(body, "payment_intent_secret")

	resp := postJSON(t, server.URL+"/v1/bookings", body, http.StatusCreated)
	defer resp.Body.Close()

	var result domain.SubmitResult
	json.NewDecoder(resp.Body).Decode(&result)

	if result.Status != domain.BookingTestMode {
		t.Fatalf("Expected test_mode status, got %s", result.Status)
	}
	if len(bookings.submitted) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(bookings.submitted))
	}
	if bookings.submitted[0].UserID != nil {
		t.Fatal("Anonymous test booking must not carry a user ID")
	}
}

func TestCreateBooking_AnonymousPaid_Unauthorized(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	resp := postJSON(t, server.URL+"/v1/bookings", validBookingBody(), http.StatusUnauthorized)
	resp.Body.Close()

	if len(bookings.submitted) != 0 {
		t.Fatal("Anonymous paid booking must not reach the service")
	}
}

func TestCreateBooking_SignedInLinksUser(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	resp := doJSON(t, "POST", server.URL+"/v1/bookings", bearerFor(t, 7, domain.RoleCustomer), validBookingBody(), http.StatusCreated)
	resp.Body.Close()

	if len(bookings.submitted) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(bookings.submitted))
	}
	if bookings.submitted[0].UserID == nil || *bookings.submitted[0].UserID != 7 {
		t.Fatalf("Expected booking linked to user 7, got %v", bookings.submitted[0].UserID)
	}
}

func TestCreateBooking_IdempotencyKeyForwarded(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	req, _ := http.NewRequest("POST", server.URL+"/v1/bookings", bytes.NewBuffer(jsonBytes(validBookingBody())))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, 7, domain.RoleCustomer))
	req.Header.Set("Idempotency-Key", "retry-key-42")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if bookings.lastKey != "retry-key-42" {
		t.Fatalf("Expected idempotency key forwarded, got %q", bookings.lastKey)
	}
}

func TestCreateBooking_PaymentDeclined_PaymentRequired(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	bookings.submitErr = domain.PaymentError{Reason: "card_declined"}

	resp := doJSON(t, "POST", server.URL+"/v1/bookings", bearerFor(t, 7, domain.RoleCustomer), validBookingBody(), http.StatusPaymentRequired)
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)

	if body["error"] != "payment failed: card_declined" {
		t.Fatalf("Expected decline reason in error, got %q", body["error"])
	}
}

func TestCreateBooking_InvalidInput_BadRequest(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	bearer := bearerFor(t, 7, domain.RoleCustomer)

	tests := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing customer_name", func(b map[string]interface{}) { delete(b, "customer_name") }},
		{"short phone", func(b map[string]interface{}) { b["customer_phone"] = "555-1234" }},
		{"zero distance", func(b map[string]interface{}) { b["distance_km"] = 0 }},
		{"past pickup", func(b map[string]interface{}) {
			b["pickup_at"] = time.Now().Add(-time.Hour).Format(time.RFC3339)
		}},
		{"no payment intent", func(b map[string]interface{}) { delete(b, "payment_intent_secret") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBookingBody()
			tt.mutate(body)
			resp := doJSON(t, "POST", server.URL+"/v1/bookings", bearer, body, http.StatusBadRequest)
			resp.Body.Close()
		})
	}
}

func TestGetBooking_OwnerOrStaffOnly(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	owner := int64(7)
	bookings.bookings[1] = &domain.Booking{ID: 1, ServiceNumber: "TOW-AAAA1111", Status: domain.BookingPaid, UserID: &owner}

	url := server.URL + "/v1/bookings/1"

	resp := doJSON(t, "GET", url, bearerFor(t, 7, domain.RoleCustomer), nil, http.StatusOK)
	resp.Body.Close()

	resp = doJSON(t, "GET", url, bearerFor(t, 8, domain.RoleCustomer), nil, http.StatusForbidden)
	resp.Body.Close()

	resp = doJSON(t, "GET", url, bearerFor(t, 99, domain.RoleDispatcher), nil, http.StatusOK)
	resp.Body.Close()
}

func TestGetBooking_BadIDAndMissing(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	bearer := bearerFor(t, 7, domain.RoleCustomer)

	resp := doJSON(t, "GET", server.URL+"/v1/bookings/abc", bearer, nil, http.StatusBadRequest)
	resp.Body.Close()

	resp = doJSON(t, "GET", server.URL+"/v1/bookings/404", bearer, nil, http.StatusNotFound)
	resp.Body.Close()
}

func TestListMyBookings_ReturnsOwnOnly(t *testing.T) {
	server, bookings, _, _ := setupTestServer()
	defer server.Close()

	mine, theirs := int64(7), int64(8)
	bookings.bookings[1] = &domain.Booking{ID: 1, UserID: &mine}
	bookings.bookings[2] = &domain.Booking{ID: 2, UserID: &theirs}
	bookings.bookings[3] = &domain.Booking{ID: 3, UserID: &mine}

	resp := doJSON(t, "GET", server.URL+"/v1/bookings", bearerFor(t, 7, domain.RoleCustomer), nil, http.StatusOK)
	defer resp.Body.Close()

	var result struct {
		Bookings []domain.Booking `json:"bookings"`
		Count    int              `json:"count"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	if result.Count != 2 {
		t.Fatalf("Expected 2 bookings, got %d", result.Count)
	}
	for _, b := range result.Bookings {
		if b.UserID == nil || *b.UserID != 7 {
			t.Fatalf("Booking %d does not belong to caller", b.ID)
		}
	}
}

func TestAdminBookings_RoleEnforcement(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	url := server.URL + "/v1/admin/bookings"

	get(t, url, http.StatusUnauthorized)

	resp := doJSON(t, "GET", url, bearerFor(t, 7, domain.RoleCustomer), nil, http.StatusForbidden)
	resp.Body.Close()

	resp = doJSON(t, "GET", url, bearerFor(t, 2, domain.RoleDispatcher), nil, http.StatusOK)
	resp.Body.Close()

	resp = doJSON(t, "GET", url, bearerFor(t, 1, domain.RoleAdmin), nil, http.StatusOK)
	resp.Body.Close()
}

func TestAdminListBookings_InvalidStatus_BadRequest(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	resp := doJSON(t, "GET", server.URL+"/v1/admin/bookings?status=flying", bearerFor(t, 2, domain.RoleDispatcher), nil, http.StatusBadRequest)
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)

	if body["error"] != "Invalid status parameter" {
		t.Fatalf("Expected invalid status message, got %q", body["error"])
	}
}

func TestAdminListBookings_EmptyPageShape(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	resp := doJSON(t, "GET", server.URL+"/v1/admin/bookings", bearerFor(t, 2, domain.RoleDispatcher), nil, http.StatusOK)
	defer resp.Body.Close()

	var page domain.BookingPage
	json.NewDecoder(resp.Body).Decode(&page)

	if page.Data == nil {
		t.Fatal("Expected data to be an empty array, not null")
	}
	if page.Count != 0 || page.TotalPages != 0 {
		t.Fatalf("Expected zero count and pages, got %d/%d", page.Count, page.TotalPages)
	}
}

func TestAdminUpdateBooking_ConflictMapsTo409(t *testing.T) {
	server, _, admin, _ := setupTestServer()
	defer server.Close()

	admin.bookings[1] = &domain.BookingDetail{Booking: domain.Booking{ID: 1, Status: domain.BookingCanceled}}
	admin.updateErr = domain.ConflictError{Resource: "booking", Msg: "cannot move from canceled to paid"}

	body := map[string]string{"status": "paid"}
	resp := doJSON(t, "PATCH", server.URL+"/v1/admin/bookings/1", bearerFor(t, 2, domain.RoleDispatcher), body, http.StatusConflict)
	resp.Body.Close()
}

func TestAdminBookings_StoreDown_ServiceUnavailable(t *testing.T) {
	server, _, admin, _ := setupTestServer()
	defer server.Close()

	admin.listErr = domain.StoreError{Op: "list bookings", Attempts: 3, Err: errors.New("connection refused")}

	resp := doJSON(t, "GET", server.URL+"/v1/admin/bookings", bearerFor(t, 2, domain.RoleDispatcher), nil, http.StatusServiceUnavailable)
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)

	if body["error"] != "Service temporarily unavailable, try again" {
		t.Fatalf("Expected retry hint, got %q", body["error"])
	}
}

func TestReceipt_DownloadsPDF(t *testing.T) {
	server, _, admin, _ := setupTestServer()
	defer server.Close()

	admin.bookings[5] = &domain.BookingDetail{Booking: domain.Booking{ID: 5, ServiceNumber: "TOW-1234ABCD"}}

	resp := doJSON(t, "GET", server.URL+"/v1/admin/bookings/5/receipt", bearerFor(t, 2, domain.RoleDispatcher), nil, http.StatusOK)
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("Expected application/pdf, got %s", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="TOW-1234ABCD.pdf"` {
		t.Fatalf("Unexpected Content-Disposition: %s", cd)
	}
}

func TestAdminUsers_AdminOnly(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	url := server.URL + "/v1/admin/users"

	resp := doJSON(t, "GET", url, bearerFor(t, 2, domain.RoleDispatcher), nil, http.StatusForbidden)
	resp.Body.Close()

	resp = doJSON(t, "GET", url, bearerFor(t, 1, domain.RoleAdmin), nil, http.StatusOK)
	resp.Body.Close()
}

// A dispatcher entering a phone booking gets a pending row with no
// payment involved.
func TestAdminCreateBooking_PhoneEntryStartsPending(t *testing.T) {
	server, _, admin, _ := setupTestServer()
	defer server.Close()

	body := validBookingBody()
	delete(body, "payment_intent_secret")

	resp := doJSON(t, "POST", server.URL+"/v1/admin/bookings", bearerFor(t, 2, domain.RoleDispatcher), body, http.StatusCreated)
	defer resp.Body.Close()

	var booking domain.Booking
	json.NewDecoder(resp.Body).Decode(&booking)

	if booking.Status != domain.BookingPending {
		t.Fatalf("Expected pending status, got %s", booking.Status)
	}
	if _, exists := admin.bookings[booking.ID]; !exists {
		t.Fatal("Booking not stored")
	}
}

func TestAdminCreateUser_AssignsRole(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	body := map[string]string{
		"email":    "desk@example.com",
		"password": "a-long-password",
		"name":     "Desk Operator",
		"phone":    "555-123-4567",
		"role":     "dispatcher",
	}
	resp := doJSON(t, "POST", server.URL+"/v1/admin/users", bearerFor(t, 1, domain.RoleAdmin), body, http.StatusCreated)
	defer resp.Body.Close()

	var user domain.User
	json.NewDecoder(resp.Body).Decode(&user)

	if user.Role != domain.RoleDispatcher {
		t.Fatalf("Expected dispatcher role, got %s", user.Role)
	}
}

func TestAdminUpdateUser_PromotesRole(t *testing.T) {
	server, _, admin, _ := setupTestServer()
	defer server.Close()

	admin.users[3] = &domain.User{ID: 3, Email: "driver@example.com", Role: domain.RoleCustomer}

	body := map[string]string{"role": "dispatcher"}
	resp := doJSON(t, "PATCH", server.URL+"/v1/admin/users/3", bearerFor(t, 1, domain.RoleAdmin), body, http.StatusOK)
	defer resp.Body.Close()

	var user domain.User
	json.NewDecoder(resp.Body).Decode(&user)

	if user.Role != domain.RoleDispatcher {
		t.Fatalf("Expected dispatcher role, got %s", user.Role)
	}
}

func TestAdminServices_CRUDRoundTrip(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	bearer := bearerFor(t, 2, domain.RoleDispatcher)

	createBody := map[string]string{"service_type": "winch-out"}
	resp := doJSON(t, "POST", server.URL+"/v1/admin/services", bearer, createBody, http.StatusCreated)

	var created domain.Service
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	if created.ServiceNumber == "" {
		t.Fatal("Expected a service number")
	}

	patchBody := map[string]string{"service_type": "flatbed"}
	resp = doJSON(t, "PATCH", fmt.Sprintf("%s/v1/admin/services/%d", server.URL, created.ID), bearer, patchBody, http.StatusOK)

	var updated domain.Service
	json.NewDecoder(resp.Body).Decode(&updated)
	resp.Body.Close()

	if updated.ServiceType != "flatbed" {
		t.Fatalf("Expected flatbed, got %s", updated.ServiceType)
	}

	resp = doJSON(t, "DELETE", fmt.Sprintf("%s/v1/admin/services/%d", server.URL, created.ID), bearer, nil, http.StatusNoContent)
	resp.Body.Close()

	resp = doJSON(t, "GET", fmt.Sprintf("%s/v1/admin/services/%d", server.URL, created.ID), bearer, nil, http.StatusNotFound)
	resp.Body.Close()
}

// The verify URL printed on receipts works without any credentials.
func TestVerifyService_PublicLookup(t *testing.T) {
	server, _, admin, _ := setupTestServer()
	defer server.Close()

	admin.services[1] = &domain.Service{ID: 1, ServiceNumber: "TOW-1234ABCD", ServiceType: "tow"}

	resp := get(t, server.URL+"/verify/TOW-1234ABCD", http.StatusOK)
	defer resp.Body.Close()

	var result struct {
		Valid   bool           `json:"valid"`
		Service domain.Service `json:"service"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	if !result.Valid {
		t.Fatal("Expected valid=true for a known service number")
	}
	if result.Service.ServiceNumber != "TOW-1234ABCD" {
		t.Fatalf("Expected TOW-1234ABCD, got %s", result.Service.ServiceNumber)
	}

	resp = get(t, server.URL+"/verify/TOW-DEADBEEF", http.StatusNotFound)
	resp.Body.Close()
}

func TestAuth_RegisterThenMe(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	registerBody := map[string]string{
		"email":    "new@example.com",
		"password": "a-long-password",
		"name":     "New Customer",
		"phone":    "555-123-4567",
	}
	resp := postJSON(t, server.URL+"/v1/auth/register", registerBody, http.StatusCreated)

	var login domain.LoginResponse
	json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()

	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatal("Expected both tokens in register response")
	}

	resp = doJSON(t, "GET", server.URL+"/v1/auth/me", "Bearer "+login.AccessToken, nil, http.StatusOK)
	defer resp.Body.Close()

	var info domain.UserInfo
	json.NewDecoder(resp.Body).Decode(&info)

	if info.Email != "new@example.com" {
		t.Fatalf("Expected registered email, got %s", info.Email)
	}
}

func TestAuth_RefreshTokenCannotCallAPI(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	refresh, err := auth.NewAccessToken(7, "user@example.com", "refresh", "refresh", testSecret, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	resp := doJSON(t, "GET", server.URL+"/v1/bookings", "Bearer "+refresh, nil, http.StatusUnauthorized)
	resp.Body.Close()
}

func TestAuth_RefreshMissingToken_BadRequest(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	resp := postJSON(t, server.URL+"/v1/auth/refresh", map[string]string{}, http.StatusBadRequest)
	resp.Body.Close()
}

func TestAuth_LoginUnknownEmail_Unauthorized(t *testing.T) {
	server, _, _, _ := setupTestServer()
	defer server.Close()

	body := map[string]string{"email": "ghost@example.com", "password": "whatever"}
	resp := postJSON(t, server.URL+"/v1/auth/login", body, http.StatusUnauthorized)
	resp.Body.Close()
}

// ---------- Helper Functions ----------

func postJSON(t *testing.T, url string, data interface{}, expectedStatus int) *http.Response {
	t.Helper()

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(jsonBytes(data)))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}

	if resp.StatusCode != expectedStatus {
		t.Fatalf("POST %s: expected status %d, got %d", url, expectedStatus, resp.StatusCode)
	}

	return resp
}

func get(t *testing.T, url string, expectedStatus int) *http.Response {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}

	if resp.StatusCode != expectedStatus {
		t.Fatalf("GET %s: expected status %d, got %d", url, expectedStatus, resp.StatusCode)
	}

	return resp
}

func doJSON(t *testing.T, method, url, bearer string, data interface{}, expectedStatus int) *http.Response {
	t.Helper()

	var body *bytes.Buffer
	if data != nil {
		body = bytes.NewBuffer(jsonBytes(data))
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}

	if resp.StatusCode != expectedStatus {
		t.Fatalf("%s %s: expected status %d, got %d", method, url, expectedStatus, resp.StatusCode)
	}

	return resp
}

func jsonBytes(data interface{}) []byte {
	b, _ := json.Marshal(data)
	return b
}
