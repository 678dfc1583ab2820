package wallet

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/smartpay/smartpay-api/internal/middleware"
	"github.com/smartpay/smartpay-api/internal/pkg/response"
	"github.com/smartpay/smartpay-api/internal/pkg/validator"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	busyRetryAfter = time.Second
)

type Handler struct {
	svc      *Service
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewHandler(svc *Service, hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		svc: svc,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")

				// non-browser clients send no Origin
				if origin == "" || len(allowedOrigins) == 0 {
					return true
				}
				for _, allowed := range allowedOrigins {
					if origin == allowed {
						return true
					}
				}

				log.Warn().Str("origin", origin).Msg("WebSocket origin rejected")
				return false
			},
		},
	}
}

// Get handles GET /wallet/
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.GetWallet(r.Context(), accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, NewWalletResponse(wallet))
}

// AddMoney handles POST /wallet/add-money
func (h *Handler) AddMoney(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req AddMoneyRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	amount, err := ParseMoney(req.Amount, "amount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.AddMoney(r.Context(), accountID, amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, NewMutationResponse(res))
}

// SetLimit handles POST /wallet/set-limit
func (h *Handler) SetLimit(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req SetLimitRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	limit, err := ParseMoney(req.MonthlyLimit, "monthly_limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	wallet, err := h.svc.SetMonthlyLimit(r.Context(), accountID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, NewWalletResponse(wallet))
}

// Payment handles POST /wallet/payment
func (h *Handler) Payment(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req PaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	amount, err := ParseMoney(req.Amount, "amount")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	res, err := h.svc.MakePayment(r.Context(), accountID, amount, req.PIN, req.Description)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, NewMutationResponse(res))
}

// Transactions handles GET /wallet/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	txs, err := h.svc.ListTransactions(r.Context(), accountID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, NewTransactionList(txs))
}

// WebSocket handles GET /wallet/ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetUserID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	wallet, err := h.svc.GetWallet(r.Context(), accountID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := NewConnection(accountID, conn)
	h.hub.Register(client)

	if snapshot, err := json.Marshal(Event{Type: EventSnapshot, Wallet: NewWalletResponse(wallet)}); err == nil {
		h.hub.SendTo(client, snapshot)
	}

	go h.wsReader(client)
	go h.wsWriter(client)
}

// wsReader only drains control frames; the feed is server to client.
func (h *Handler) wsReader(client *Connection) {
	defer func() {
		h.hub.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("account_id", client.AccountID.String()).Msg("WebSocket read error")
			}
			return
		}
	}
}

func (h *Handler) wsWriter(client *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := Code(err)
	switch {
	case errors.Is(err, ErrInvalidAmount):
		response.Error(w, http.StatusBadRequest, code, err.Error())
	case errors.Is(err, ErrAuthenticationFailed):
		response.Forbidden(w, code, "Invalid PIN")
	case errors.Is(err, ErrAccountNotFound):
		response.NotFound(w, code, "Account not found")
	case errors.Is(err, ErrInsufficientFunds):
		response.Conflict(w, code, "Insufficient wallet balance")
	case errors.Is(err, ErrLimitExceeded):
		response.Conflict(w, code, "Monthly spending limit exceeded")
	case code == "WALLET_BUSY":
		response.ServiceUnavailable(w, code, "Wallet is busy, retry shortly", busyRetryAfter)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Wallet request failed")
		response.InternalError(w)
	}
}

// Routes mounts the wallet API. idempotent wraps the money-moving endpoints.
func (h *Handler) Routes(authMiddleware, idempotent func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.Get)
		r.Post("/set-limit", h.SetLimit)
		r.Get("/transactions", h.Transactions)
		r.With(idempotent).Post("/add-money", h.AddMoney)
		r.With(idempotent).Post("/payment", h.Payment)
	})

	// browsers cannot set headers on a websocket handshake
	r.With(middleware.TokenFromQuery, authMiddleware).Get("/ws", h.WebSocket)

	return r
}
