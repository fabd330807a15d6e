package bankhub

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const requestIDHeader = "X-Request-ID"

var (
	statusOK = []byte(`{"status":"OK"}`)
)

type balanceJSONResp struct {
	Balance decimal.Decimal `json:"balance"`
}

type createAccountJSONReq struct {
	Owner          string          `json:"owner"`
	Type           string          `json:"type"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

func NewHTTPHandler(svc Service, log *zerolog.Logger) http.Handler {
	hndlr := &httpHandler{
		Svc: svc,
	}
	mux := chi.NewMux()
	mux.Use(RequestLogger(log))
	mux.NotFound(HTTPNotFound)
	mux.Route("/accounts", func(r chi.Router) {
		r.Post("/", hndlr.CreateAccount)
		r.Get("/", hndlr.Accounts)
		r.Route("/{acctID:[0-9]+}", func(rr chi.Router) {
			rr.Post("/deposit", hndlr.Deposit)
			rr.Post("/withdraw", hndlr.Withdraw)
			rr.Get("/balance", hndlr.Balance)
			rr.Get("/statement", hndlr.Statement)
		})
	})
	mux.Post("/transfers", hndlr.Transfer)
	mux.Get("/owners", hndlr.Owners)
	mux.Get("/transactions", hndlr.Transactions)

	return mux
}

// RequestLogger tags every request with an X-Request-ID, generating one when
// the client sent none, and stores a logger carrying it in the request context.
func RequestLogger(base *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(requestIDHeader)
			if rid == "" {
				rid = uuid.New().String()
			}
			w.Header().Set(requestIDHeader, rid)
			l := base.With().Str("request_id", rid).Logger()
			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}

type httpHandler struct {
	Svc Service
}

func (h *httpHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	lg := zerolog.Ctx(r.Context())
	var body createAccountJSONReq
	if err := decodeJSONBody(r, &body); err != nil {
		lg.Err(err).Str("method", "create_account").Msg("error decoding request body")
		WriteHTTPError(w, err)
		return
	}
	typ, err := ParseAccountType(body.Type)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	acct, err := h.Svc.CreateAccount(CreateAccountReq{
		Owner:          body.Owner,
		Type:           typ,
		InitialBalance: body.InitialBalance,
	})
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, acct)
}

func (h *httpHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	accts := h.Svc.Accounts()
	if mb := r.URL.Query().Get("min_balance"); mb != "" {
		threshold, err := decimal.NewFromString(mb)
		if err != nil {
			WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"min_balance": "invalid decimal"}})
			return
		}
		accts = Filter(accts, BalanceAbove(threshold))
	}
	switch r.URL.Query().Get("sort") {
	case "":
	case "balance":
		accts = SortByBalance(accts)
	default:
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"sort": "unsupported"}})
		return
	}

	writeJSON(w, http.StatusOK, accts)
}

func (h *httpHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	req, err := h.chargeReq(r, "deposit")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	bal, err := h.Svc.Deposit(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceJSONResp{Balance: *bal})
}

func (h *httpHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, err := h.chargeReq(r, "withdraw")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	bal, err := h.Svc.Withdraw(req)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceJSONResp{Balance: *bal})
}

func (h *httpHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferReq
	if err := decodeJSONBody(r, &req); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("method", "transfer").Msg("error decoding request body")
		WriteHTTPError(w, err)
		return
	}
	if err := h.Svc.Transfer(req); err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(statusOK); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("method", "transfer").Msg("error writing response")
	}
}

func (h *httpHandler) Balance(w http.ResponseWriter, r *http.Request) {
	acctID, err := acctIDParam(r, "balance")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	bal, err := h.Svc.Balance(BalanceReq{AcctID: acctID})
	if err != nil {
		WriteHTTPError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceJSONResp{Balance: *bal})
}

func (h *httpHandler) Statement(w http.ResponseWriter, r *http.Request) {
	acctID, err := acctIDParam(r, "statement")
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	buf := new(bytes.Buffer)
	if err = h.Svc.Statement(buf, StatementReq{AcctID: acctID}); err != nil {
		WriteHTTPError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	if _, err = buf.WriteTo(w); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("method", "statement").Msg("error writing statement")
	}
}

func (h *httpHandler) Owners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Owners(h.Svc.Accounts()))
}

func (h *httpHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, GroupByAccount(h.Svc.Transactions()))
}

func (h *httpHandler) chargeReq(r *http.Request, method string) (ChargeReq, error) {
	var req ChargeReq
	if err := decodeJSONBody(r, &req); err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("method", method).Msg("error decoding request body")
		return req, err
	}
	acctID, err := acctIDParam(r, method)
	if err != nil {
		return req, err
	}
	req.AcctID = acctID
	return req, nil
}

func acctIDParam(r *http.Request, method string) (snowflake.ID, error) {
	pid := chi.URLParam(r, "acctID")
	acctID, err := snowflake.ParseString(pid)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("method", method).Msg("error parsing account ID")
		return 0, ErrBadRequest{Fields: map[string]string{"acctID": "invalid format"}}
	}
	return acctID, nil
}

func decodeJSONBody(r *http.Request, v any) error {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		return ErrInternalServer
	}
	if err = json.Unmarshal(buf, v); err != nil {
		return ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().
			Err(err).
			Msg("response encoding failed")
	}
}

func WriteHTTPError(w http.ResponseWriter, err error) {
	var (
		errbr  ErrBadRequest
		errinv ErrInvalidAmount
		errnf  ErrNotFound
		erranf ErrAccountNotFound
		errdup ErrDuplicateAccount
		errins ErrInsufficientFunds
		errtf  ErrTransferFailed
		errovl ErrOverloaded
	)
	switch {
	case errors.As(err, &errbr):
		writeJSON(w, http.StatusBadRequest, errbr)
	case errors.As(err, &errinv):
		writeJSON(w, http.StatusBadRequest, errMessage(err))
	case errors.As(err, &errnf), errors.As(err, &erranf):
		writeJSON(w, http.StatusNotFound, errMessage(err))
	case errors.As(err, &errdup):
		writeJSON(w, http.StatusConflict, errMessage(err))
	case errors.As(err, &errins), errors.As(err, &errtf):
		writeJSON(w, http.StatusUnprocessableEntity, errMessage(err))
	case errors.As(err, &errovl):
		writeJSON(w, http.StatusServiceUnavailable, errMessage(err))
	default:
		log.Error().Err(err).Msg("unhandled service error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
	}
}

func errMessage(err error) map[string]string {
	return map[string]string{"message": err.Error()}
}

func HTTPNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"path": r.URL.Path})
}
