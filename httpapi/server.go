// Package httpapi exposes an offering over JSON/HTTP.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/equityledger/libeto-go/docs"
	"github.com/equityledger/libeto-go/offering"
	"github.com/equityledger/libeto-go/rates"
	"github.com/equityledger/libeto-go/ulps"
	"github.com/equityledger/libeto-go/whitelist"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Server serves one offering.
type Server struct {
	c       *offering.Commitment
	archive *docs.Archive
	op      *Operator
	log     *logrus.Entry
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithArchive serves the document archive under /documents. Agreement URLs
// in the archive's scheme must then name an archived document.
func WithArchive(a *docs.Archive) Option {
	return func(s *Server) { s.archive = a }
}

// New builds the router for c.
func New(c *offering.Commitment, log *logrus.Entry, opts ...Option) *Server {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	s := &Server{c: c, log: log.WithField("component", "httpapi")}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/offering", s.handleOffering)
	r.Get("/events", s.handleEvents)
	r.Post("/tick", s.handleTick)
	r.Post("/schedule", s.handleSchedule)
	r.Post("/whitelist", s.handleWhitelist)
	r.Post("/contributions", s.handleContribute)
	r.Route("/agreement", func(r chi.Router) {
		r.Post("/company", s.handleCompanySign)
		r.Post("/nominee", s.handleNomineeConfirm)
	})
	r.Get("/tickets", s.handleTickets)
	r.Get("/tickets/{investor}", s.handleTicket)
	r.Post("/claims", s.handleClaims)
	r.Post("/refunds/{investor}", s.handleRefund)
	r.Post("/payout", s.handlePayout)
	if s.archive != nil {
		r.Get("/documents", s.handleDocuments)
		r.Post("/documents", s.handlePutDocument)
		r.Get("/documents/{url}", s.handleGetDocument)
	}
	if s.op != nil {
		s.operatorRoutes(r)
	}

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

// ---------------------------------------------------------------------------
// Encoding helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorView{Error: err.Error()})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", ErrBadRequest, s)
	}
	return common.HexToAddress(s), nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (s *Server) handleOffering(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newOfferingView(s.c))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.c.Events()
	if err != nil {
		s.writeError(w, err)
		return
	}
	type eventView struct {
		ID       string    `json:"id"`
		Seq      uint64    `json:"seq"`
		At       time.Time `json:"at"`
		Kind     string    `json:"kind"`
		Phase    string    `json:"phase"`
		Investor string    `json:"investor,omitempty"`
		Currency string    `json:"currency,omitempty"`
		Amount   string    `json:"amount,omitempty"`
		Tokens   string    `json:"tokens,omitempty"`
		Detail   string    `json:"detail,omitempty"`
	}
	out := make([]eventView, len(events))
	for i, ev := range events {
		out[i] = eventView{
			ID:       ev.ID.String(),
			Seq:      ev.Seq,
			At:       ev.At,
			Kind:     string(ev.Kind),
			Phase:    ev.Phase.String(),
			Currency: string(ev.Currency),
			Amount:   optional(ev.Amount),
			Tokens:   optional(ev.Tokens),
			Detail:   ev.Detail,
		}
		if ev.Investor != (common.Address{}) {
			out[i].Investor = ev.Investor.Hex()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTickets(w http.ResponseWriter, r *http.Request) {
	tickets := s.c.Tickets()
	out := make([]ticketView, len(tickets))
	for i, t := range tickets {
		out[i] = newTicketView(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTicket(w http.ResponseWriter, r *http.Request) {
	investor, err := parseAddress(chi.URLParam(r, "investor"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	t, err := s.c.TicketFor(investor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTicketView(t))
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	phase, err := s.c.Tick()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"phase": phase.String()})
}

type scheduleRequest struct {
	Caller string    `json:"caller"`
	Start  time.Time `json:"start"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.c.SetStartDate(caller, req.Start); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]time.Time{"start": req.Start})
}

type whitelistRequest struct {
	Caller  string `json:"caller"`
	Entries []struct {
		Investor  string `json:"investor"`
		FixedSlot string `json:"fixed_slot"`
		PriceFrac string `json:"price_frac"`
	} `json:"entries"`
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries := make([]whitelist.Entry, len(req.Entries))
	for i, e := range req.Entries {
		inv, err := parseAddress(e.Investor)
		if err != nil {
			s.writeError(w, err)
			return
		}
		slot, err := ulps.Parse(e.FixedSlot)
		if err != nil {
			s.writeError(w, err)
			return
		}
		frac, err := ulps.Parse(e.PriceFrac)
		if err != nil {
			s.writeError(w, err)
			return
		}
		entries[i] = whitelist.Entry{Investor: inv, FixedSlot: slot, PriceFrac: frac}
	}

	warnings, err := s.c.AddWhitelisted(caller, entries)
	if err != nil {
		s.writeError(w, err)
		return
	}
	msgs := make([]string, len(warnings))
	for i, wn := range warnings {
		msgs[i] = wn.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": len(entries), "warnings": msgs})
}

type contributeRequest struct {
	Investor string `json:"investor"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	investor, err := parseAddress(req.Investor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	amount, err := ulps.Parse(req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cur, err := rates.ParseCurrency(req.Currency)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q, err := s.c.Contribute(investor, amount, cur)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newQuoteView(q))
}

type signatureRequest struct {
	Caller    string `json:"caller"`
	URL       string `json:"url"`
	Signature string `json:"signature"` // 0x-prefixed DER
}

func (s *Server) decodeSignature(r *http.Request) (common.Address, signatureRequest, []byte, error) {
	var req signatureRequest
	if err := decode(r, &req); err != nil {
		return common.Address{}, req, nil, err
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		return common.Address{}, req, nil, err
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		return common.Address{}, req, nil, fmt.Errorf("%w: signature: %w", ErrBadRequest, err)
	}
	if err := s.checkArchived(req.URL); err != nil {
		return common.Address{}, req, nil, err
	}
	return caller, req, sig, nil
}

func (s *Server) handleCompanySign(w http.ResponseWriter, r *http.Request) {
	caller, req, sig, err := s.decodeSignature(r)
	if err == nil {
		err = s.c.SignInvestmentAgreement(caller, req.URL, sig)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOfferingView(s.c))
}

func (s *Server) handleNomineeConfirm(w http.ResponseWriter, r *http.Request) {
	caller, req, sig, err := s.decodeSignature(r)
	if err == nil {
		err = s.c.ConfirmInvestmentAgreement(caller, req.URL, sig)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOfferingView(s.c))
}

type claimsRequest struct {
	Investors []string `json:"investors"`
}

// handleClaims settles every listed investor independently and reports a
// result per investor.
func (s *Server) handleClaims(w http.ResponseWriter, r *http.Request) {
	var req claimsRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	investors := make([]common.Address, len(req.Investors))
	for i, a := range req.Investors {
		inv, err := parseAddress(a)
		if err != nil {
			s.writeError(w, err)
			return
		}
		investors[i] = inv
	}
	results := s.c.ClaimMany(investors)
	out := make([]resultView, len(results))
	for i, res := range results {
		out[i] = newResultView(res)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	investor, err := parseAddress(chi.URLParam(r, "investor"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	eth, eur, err := s.c.Refund(investor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newResultView(offering.Result{Investor: investor, Eth: eth, Eur: eur}))
}

type payoutRequest struct {
	Caller string `json:"caller"`
}

func (s *Server) handlePayout(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	caller, err := parseAddress(req.Caller)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.c.Payout(caller); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOfferingView(s.c))
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// checkArchived rejects an archive-scheme agreement URL whose document is
// unknown. Other URL schemes pass through.
func (s *Server) checkArchived(url string) error {
	if s.archive == nil || !strings.HasPrefix(url, docs.Scheme) {
		return nil
	}
	ok, err := s.archive.Has(url)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDocument, url)
	}
	return nil
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	urls, err := s.archive.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, urls)
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, docs.MaxDocumentSize+1))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	url, err := s.archive.Put(data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.log.WithFields(logrus.Fields{"url": url, "bytes": len(data)}).Info("document archived")
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	data, err := s.archive.Get(chi.URLParam(r, "url"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
