// Package web serves the GRIDSET console: a JSON API over the demo ledger
// and the order-book aggregator, an SSE stream of balance snapshots and the
// embedded HTML page.
package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gridset/internal/domain"
	"github.com/vadiminshakov/gridset/internal/services/ledger"
	"github.com/vadiminshakov/gridset/internal/services/market"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const snapshotPollInterval = 2 * time.Second

type balanceSnapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error)
}

// Server exposes HTTP endpoints serving the HTML console, the ledger and
// market API, and an SSE stream.
type Server struct {
	Addr       string
	Ledger     *ledger.Ledger
	Aggregator *market.Aggregator
	Store      balanceSnapshotReader
	logger     *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, l *ledger.Ledger, agg *market.Aggregator, store balanceSnapshotReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Addr: addr, Ledger: l, Aggregator: agg, Store: store, logger: logger}
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/transfer", s.handleTransfer)
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/slot", s.handleSlot)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/balance/stream", s.handleBalanceStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via
// ACME, plus an HTTP server on port 80 for HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.mux(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		_ = httpsSrv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("acme challenge server stopped", zap.Error(err))
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

type balanceDTO struct {
	Total     string `json:"total"`
	Available string `json:"available"`
	Locked    string `json:"locked"`
}

type transactionDTO struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	Amount       string `json:"amount"`
	Counterparty string `json:"counterparty,omitempty"`
	Timestamp    string `json:"ts"`
}

type orderDTO struct {
	ID       int64  `json:"id"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	TimeSlot string `json:"time_slot"`
}

type rowDTO struct {
	Price          string `json:"price"`
	Quantity       string `json:"quantity"`
	FilledQuantity string `json:"filled_quantity,omitempty"`
	Total          string `json:"total,omitempty"`
}

type marketDTO struct {
	TimeSlot uint64   `json:"time_slot"`
	Bids     []rowDTO `json:"bids"`
	Asks     []rowDTO `json:"asks"`
	BestBid  rowDTO   `json:"best_bid"`
	BestAsk  rowDTO   `json:"best_ask"`
	Spread   string   `json:"spread"`
	Live     bool     `json:"live"`
	Loading  bool     `json:"loading"`
	Error    string   `json:"error,omitempty"`
}

type stateDTO struct {
	Balance      balanceDTO       `json:"balance"`
	Transactions []transactionDTO `json:"transactions"`
	Orders       []orderDTO       `json:"orders"`
	Market       marketDTO        `json:"market"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	balance := s.Ledger.Balance()
	state := stateDTO{
		Balance: balanceDTO{
			Total:     balance.Total.String(),
			Available: balance.Available.String(),
			Locked:    balance.Locked.String(),
		},
		Transactions: make([]transactionDTO, 0),
		Orders:       make([]orderDTO, 0),
		Market:       viewToDTO(s.Aggregator.View(), s.Aggregator.Slot()),
	}
	for _, tx := range s.Ledger.Transactions() {
		state.Transactions = append(state.Transactions, transactionDTO{
			ID:           tx.ID.String(),
			Kind:         string(tx.Kind),
			Amount:       tx.Amount.String(),
			Counterparty: tx.Counterparty,
			Timestamp:    tx.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	for _, o := range s.Ledger.Orders() {
		state.Orders = append(state.Orders, orderDTO{
			ID:       o.ID,
			Side:     string(o.Side),
			Price:    o.Price.String(),
			Quantity: o.Quantity.String(),
			TimeSlot: o.TimeSlot,
		})
	}
	s.writeJSON(w, http.StatusOK, state)
}

func viewToDTO(view market.View, slot uint64) marketDTO {
	dto := marketDTO{
		TimeSlot: slot,
		Bids:     make([]rowDTO, 0, len(view.Snapshot.Bids)),
		Asks:     make([]rowDTO, 0, len(view.Snapshot.Asks)),
		BestBid:  rowDTO{Price: view.Snapshot.BestBid.Price.String(), Quantity: view.Snapshot.BestBid.Quantity.String()},
		BestAsk:  rowDTO{Price: view.Snapshot.BestAsk.Price.String(), Quantity: view.Snapshot.BestAsk.Quantity.String()},
		Spread:   view.Snapshot.Spread.String(),
		Live:     view.Snapshot.Live,
		Loading:  view.Loading,
	}
	if view.Err != nil {
		dto.Error = view.Err.Error()
	}
	for _, row := range view.Snapshot.Bids {
		dto.Bids = append(dto.Bids, rowToDTO(row))
	}
	for _, row := range view.Snapshot.Asks {
		dto.Asks = append(dto.Asks, rowToDTO(row))
	}
	return dto
}

func rowToDTO(row domain.BookRow) rowDTO {
	return rowDTO{
		Price:          row.Price.String(),
		Quantity:       row.Quantity.String(),
		FilledQuantity: row.FilledQuantity.String(),
		Total:          row.Total.String(),
	}
}

type transferRequest struct {
	Amount    string `json:"amount"`
	Recipient string `json:"recipient"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, ledger.ErrInvalidAmount)
		return
	}

	if err := s.Ledger.Transfer(amount, req.Recipient); err != nil {
		s.writeLedgerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type orderRequest struct {
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
	TimeSlot string `json:"time_slot"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, ledger.ErrInvalidAmount)
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, ledger.ErrInvalidAmount)
		return
	}

	order, err := s.Ledger.PlaceOrder(domain.Side(req.Side), price, quantity, req.TimeSlot)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, orderDTO{
		ID:       order.ID,
		Side:     string(order.Side),
		Price:    order.Price.String(),
		Quantity: order.Quantity.String(),
		TimeSlot: order.TimeSlot,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.Ledger.Reset()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Slot string `json:"slot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	slot, err := strconv.ParseUint(req.Slot, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Errorf("invalid time slot: %s", req.Slot))
		return
	}

	s.Aggregator.SetSlot(slot)
	go s.Aggregator.Refresh(context.Background())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	go s.Aggregator.Refresh(context.Background())
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// send a comment heartbeat every 30s so proxies keep the connection
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(snapshotPollInterval)
	defer pollTicker.Stop()

	lastIndex := uint64(0)
	sendSnapshots := func() error {
		records, err := s.Store.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: balance\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		s.logger.Warn("balance stream initial load failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.logger.Warn("balance stream poll failed", zap.Error(err))
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeLedgerError maps the ledger's rejection kinds onto HTTP statuses:
// both are user-facing rejections, not server faults.
func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnknownSide):
		s.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, ledger.ErrInvalidAmount):
		s.writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		s.writeError(w, http.StatusConflict, err)
	default:
		s.writeError(w, http.StatusInternalServerError, err)
	}
}
