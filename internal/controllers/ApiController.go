package controllers

import (
	"bakso/internal/models"
	"bakso/internal/providers"
	"bakso/internal/services"
	"bakso/internal/tracker"
	"errors"
	"math"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
)

const maxRequestBodySize = 1 << 20 // 1 MB

type ApiController struct {
	logger  providers.Logger
	service services.TrackerServiceInterface
}

func NewApiController(logger providers.Logger, service services.TrackerServiceInterface) *ApiController {
	return &ApiController{
		logger:  logger,
		service: service,
	}
}

type loginRequest struct {
	ID   string   `json:"id"`
	Name string   `json:"name" validate:"required"`
	Role string   `json:"role" validate:"required|in:seller,buyer"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

type loginResponse struct {
	ID       string          `json:"id"`
	Role     models.Role     `json:"role"`
	Region   string          `json:"region"`
	Location models.Location `json:"location"`
}

type geolocationRequest struct {
	ID    string   `json:"id" validate:"required"`
	Lat   *float64 `json:"lat"`
	Lng   *float64 `json:"lng"`
	Error string   `json:"error"`
}

type sessionRequest struct {
	ID string `json:"id" validate:"required"`
}

type readRequest struct {
	ID             string `json:"id" validate:"required"`
	NotificationID string `json:"notification_id" validate:"required"`
}

type pingRequest struct {
	ID       string `json:"id" validate:"required"`
	SellerID string `json:"seller_id" validate:"required"`
}

type peerLocationRequest struct {
	ID     string   `json:"id" validate:"required"`
	UserID string   `json:"user_id" validate:"required"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

type notificationsResponse struct {
	Items  []models.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

type etaResponse struct {
	DistanceMeters float64 `json:"distance_m"`
	Minutes        int     `json:"minutes"`
}

func location(lat, lng *float64) *models.Location {
	if lat == nil || lng == nil {
		return nil
	}
	return &models.Location{Lat: *lat, Lng: *lng}
}

func (ac *ApiController) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return false
	}
	v := validate.Struct(dst)
	if !v.Validate() {
		http.Error(w, v.Errors.One(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	gson, err := json.Marshal(body)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(gson)
}

// writeError maps domain errors onto HTTP statuses.
func (ac *ApiController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rle *tracker.RateLimitError
	switch {
	case errors.As(err, &rle):
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rle.RetryAfter.Seconds()))))
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
	case errors.Is(err, services.ErrInvalidLogin):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, tracker.ErrSessionClosed):
		http.Error(w, "Session Not Found", http.StatusNotFound)
	case errors.Is(err, tracker.ErrNotBuyer), errors.Is(err, tracker.ErrUnknownSeller):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, tracker.ErrNotSubscribed):
		http.Error(w, "Session Not Ready", http.StatusServiceUnavailable)
	default:
		ac.logger.Errorf(providers.GetLogTypeByRequestType(r.Method), "%s %s: %v", r.Method, r.URL.Path, err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}
}

func (ac *ApiController) session(w http.ResponseWriter, r *http.Request, id string) (tracker.TrackerInterface, bool) {
	t, err := ac.service.Get(id)
	if err != nil {
		ac.writeError(w, r, err)
		return nil, false
	}
	return t, true
}

func (ac *ApiController) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !ac.decode(w, r, &req) {
		return
	}
	t, err := ac.service.Login(services.LoginRequest{
		ID:       req.ID,
		Name:     req.Name,
		Role:     models.Role(req.Role),
		Location: location(req.Lat, req.Lng),
	})
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	self := t.Self()
	writeJSON(w, http.StatusCreated, loginResponse{
		ID:       self.ID,
		Role:     self.Role,
		Region:   t.Region(),
		Location: t.Location(),
	})
}

// Geolocation applies a geolocation sample. A sample without coordinates
// or with an error keeps the last good location.
func (ac *ApiController) Geolocation(w http.ResponseWriter, r *http.Request) {
	var req geolocationRequest
	if !ac.decode(w, r, &req) {
		return
	}
	t, ok := ac.session(w, r, req.ID)
	if !ok {
		return
	}
	loc := location(req.Lat, req.Lng)
	if req.Error != "" {
		ac.logger.Debugf(providers.TypePost, "Geolocation failed for %s: %s", req.ID, req.Error)
		loc = nil
	}
	if err := t.HandleGeolocation(loc); err != nil {
		ac.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) Nearby(w http.ResponseWriter, r *http.Request) {
	t, ok := ac.session(w, r, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, t.NearbyUsers())
}

func (ac *ApiController) Notifications(w http.ResponseWriter, r *http.Request) {
	t, ok := ac.session(w, r, r.URL.Query().Get("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, notificationsResponse{
		Items:  t.Notifications(),
		Unread: t.UnreadCount(),
	})
}

func (ac *ApiController) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	var req readRequest
	if !ac.decode(w, r, &req) {
		return
	}
	t, ok := ac.session(w, r, req.ID)
	if !ok {
		return
	}
	t.MarkAsRead(req.NotificationID)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) Ping(w http.ResponseWriter, r *http.Request) {
	var req pingRequest
	if !ac.decode(w, r, &req) {
		return
	}
	t, ok := ac.session(w, r, req.ID)
	if !ok {
		return
	}
	if err := t.SendPing(r.Context(), req.SellerID); err != nil {
		ac.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (ac *ApiController) CancelPing(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !ac.decode(w, r, &req) {
		return
	}
	t, ok := ac.session(w, r, req.ID)
	if !ok {
		return
	}
	if err := t.CancelPing(r.Context()); err != nil {
		ac.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) PeerLocation(w http.ResponseWriter, r *http.Request) {
	var req peerLocationRequest
	if !ac.decode(w, r, &req) {
		return
	}
	loc := location(req.Lat, req.Lng)
	if !loc.Valid() {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	t, ok := ac.session(w, r, req.ID)
	if !ok {
		return
	}
	t.HandleLocationUpdate(req.UserID, *loc)
	w.WriteHeader(http.StatusNoContent)
}

func (ac *ApiController) Eta(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, ok := ac.session(w, r, q.Get("id"))
	if !ok {
		return
	}
	d, minutes, err := t.EstimateWalk(q.Get("seller"))
	if err != nil {
		ac.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, etaResponse{DistanceMeters: math.Round(d), Minutes: minutes})
}

func (ac *ApiController) Exit(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !ac.decode(w, r, &req) {
		return
	}
	if err := ac.service.Logout(req.ID); err != nil {
		ac.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
