package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/application/booking"
	"github.com/example/visaslot/internal/application/payment"
	"github.com/example/visaslot/internal/domain/user"
	"github.com/example/visaslot/internal/domain/visa"
	"github.com/example/visaslot/internal/infrastructure/razorpay"
)

//go:embed templates/*.html
var fs embed.FS

type Bookings interface {
	NewRequest(country visa.CountryCode, controlID string) visa.BookingRequest
	Submit(ctx context.Context, req visa.BookingRequest, aff booking.Affordance) error
	Status(id string) (booking.Status, bool)
}

// Checkouts is the browser-facing side of the payment widget.
type Checkouts interface {
	Session(ref string) (payment.Checkout, bool)
	Reference(orderID string) (string, bool)
	Succeed(orderID, paymentID, signature string) (string, error)
	Fail(orderID, reason string) (string, error)
	Dismiss(ref, reason string) error
}

type Profiles interface {
	Load(ctx context.Context) (user.Profile, bool)
}

type Server struct {
	Board     *Board
	Toasts    *Toasts
	Controls  *Controls
	Bookings  Bookings
	Checkouts Checkouts
	Profiles  Profiles // optional
	Tokens    *Tokens
	Log       zerolog.Logger

	// Ctx bounds background booking runs; it outlives single requests.
	Ctx context.Context
}

type tmplData struct {
	Title   string
	Board   BoardView
	Profile *profileView
	Toasts  []Toast
}

type profileView struct {
	Name           string               `json:"name"`
	ActiveBookings int                  `json:"activeBookings"`
	Bookings       []user.BookingRecord `json:"bookings"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(requestLog(s.Log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", s.handleDashboard)

	r.Route("/api", func(r chi.Router) {
		r.Get("/slots", s.handleSlots)
		r.Get("/notifications", s.handleNotifications)
		r.Get("/profile", s.handleProfile)

		r.With(bookingRateLimit()).Post("/bookings", s.handleBookingCreate)
		r.Get("/bookings/{id}", s.handleBookingStatus)
		r.Post("/bookings/{id}/dismiss", s.handleBookingDismiss)
	})

	r.Post("/payments/razorpay/success", s.handlePaymentSuccess)
	r.Post("/payments/razorpay/failure", s.handlePaymentFailure)

	return r
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, "templates/dashboard.html", tmplData{
		Title:   "Visa Slots",
		Board:   s.boardView(),
		Profile: s.profile(r.Context()),
		Toasts:  s.Toasts.Active(),
	})
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.boardView())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Toasts.Active())
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	p := s.profile(r.Context())
	if p == nil {
		writeError(w, http.StatusNotFound, "no profile")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type bookingCreateReq struct {
	Country   visa.CountryCode `json:"country"`
	ControlID string           `json:"controlId"`
}

type bookingCreateResp struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

func (s *Server) handleBookingCreate(w http.ResponseWriter, r *http.Request) {
	var in bookingCreateReq
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Country = visa.CountryCode(strings.TrimSpace(string(in.Country)))
	if !s.Board.Has(in.Country) {
		writeError(w, http.StatusBadRequest, "unknown country")
		return
	}

	req := s.Bookings.NewRequest(in.Country, strings.TrimSpace(in.ControlID))
	token, err := s.Tokens.Issue(req.ID)
	if err != nil {
		s.Log.Error().Err(err).Msg("issue booking token")
		writeError(w, http.StatusInternalServerError, "token error")
		return
	}
	if err := s.Bookings.Submit(s.baseCtx(), req, s.Controls.Control(req.Key())); err != nil {
		if errors.Is(err, visa.ErrBookingInProgress) {
			writeError(w, http.StatusConflict, "a booking for this slot is already in progress")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, bookingCreateResp{ID: req.ID, Token: token})
}

type bookingStatusResp struct {
	booking.Status
	Checkout *payment.Checkout `json:"checkout,omitempty"`
}

func (s *Server) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Tokens.fromRequest(r, id); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	st, ok := s.Bookings.Status(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown booking")
		return
	}
	out := bookingStatusResp{Status: st}
	if st.State == visa.StateAwaitingPayment {
		if co, ok := s.Checkouts.Session(id); ok {
			out.Checkout = &co
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type dismissReq struct {
	Reason string `json:"reason"`
}

func (s *Server) handleBookingDismiss(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Tokens.fromRequest(r, id); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in dismissReq
	_ = decodeJSON(r, &in)
	if err := s.Checkouts.Dismiss(id, in.Reason); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// razorpayCallback mirrors the fields Razorpay Checkout hands to its handler.
type razorpayCallback struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	Reason    string `json:"reason"`
}

func (s *Server) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	var in razorpayCallback
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, err := s.Checkouts.Succeed(in.OrderID, in.PaymentID, in.Signature)
	switch {
	case errors.Is(err, visa.ErrLateCapture):
		msg := fmt.Sprintf("Payment %s arrived after the booking was cancelled. Our team will reconcile it.", in.PaymentID)
		s.Toasts.Notify(r.Context(), booking.Notification{
			Kind:      booking.KindPartial,
			RequestID: ref,
			PaymentID: in.PaymentID,
			Message:   msg,
			At:        time.Now().UTC(),
		})
		writeError(w, http.StatusConflict, msg)
		return
	case err != nil:
		s.callbackError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Failure callbacks carry no signature, so they need the booking token.
func (s *Server) handlePaymentFailure(w http.ResponseWriter, r *http.Request) {
	var in razorpayCallback
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, ok := s.Checkouts.Reference(in.OrderID)
	if !ok {
		s.callbackError(w, razorpay.ErrUnknownSession)
		return
	}
	if err := s.Tokens.fromRequest(r, ref); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := s.Checkouts.Fail(in.OrderID, in.Reason); err != nil {
		s.callbackError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) callbackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, razorpay.ErrUnknownSession):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, razorpay.ErrBadSignature):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) boardView() BoardView {
	v := s.Board.View()
	for i := range v.Regions {
		v.Regions[i].Busy = s.Controls.Busy(visa.BookingRequest{Country: v.Regions[i].Country}.Key())
	}
	return v
}

func (s *Server) profile(ctx context.Context) *profileView {
	if s.Profiles == nil {
		return nil
	}
	p, ok := s.Profiles.Load(ctx)
	if !ok {
		return nil
	}
	bookings := p.Bookings
	if bookings == nil {
		bookings = []user.BookingRecord{}
	}
	return &profileView{Name: p.Name, ActiveBookings: p.ActiveBookings(time.Now()), Bookings: bookings}
}

func (s *Server) baseCtx() context.Context {
	if s.Ctx != nil {
		return s.Ctx
	}
	return context.Background()
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.ParseFS(fs,
		"templates/base.html",
		name,
	)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func Start(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info().Str("addr", addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
