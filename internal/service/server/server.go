package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"txmanager/internal/model"
	"txmanager/internal/service/partyinfo"
	"txmanager/internal/service/transaction"
	"txmanager/internal/utils/log"
)

const (
	maxBodySize     = 64 << 20
	propagateWindow = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

type (
	HttpServer struct {
		tx      *transaction.Service
		parties *partyinfo.Service
		poller  *partyinfo.Poller
		events  *eventHub
		version string
		router  *mux.Router

		unsubscribe func()
	}
)

// NewHttpServer wires the node API. poller may be nil, in which case newly
// learned recipients are not propagated further.
func NewHttpServer(tx *transaction.Service, parties *partyinfo.Service, poller *partyinfo.Poller, version string) *HttpServer {
	s := &HttpServer{
		tx:      tx,
		parties: parties,
		poller:  poller,
		events:  newEventHub(),
		version: version,
	}
	s.unsubscribe = tx.Subscribe(s.events.publish)
	s.router = s.routes()
	return s
}

func (s *HttpServer) routes() *mux.Router {
	r := mux.NewRouter()

	// node api
	r.HandleFunc("/send", s.HandleSend()).Methods(http.MethodPost)
	r.HandleFunc("/receive", s.HandleReceive()).Methods(http.MethodPost)
	r.HandleFunc("/transaction/{key}", s.HandleGetTransaction()).Methods(http.MethodGet)
	r.HandleFunc("/transaction/{key}", s.HandleDeleteTransaction()).Methods(http.MethodDelete)
	r.HandleFunc("/delete", s.HandleDelete()).Methods(http.MethodPost)
	r.HandleFunc("/events", s.events.HandleEvents()).Methods(http.MethodGet)

	// peer api
	r.HandleFunc("/push", s.HandlePush()).Methods(http.MethodPost)
	r.HandleFunc("/resend", s.HandleResend()).Methods(http.MethodPost)
	r.HandleFunc("/partyinfo", s.HandlePostPartyInfo()).Methods(http.MethodPost)
	r.HandleFunc("/partyinfo", s.HandleGetPartyInfo()).Methods(http.MethodGet)

	r.HandleFunc("/upcheck", s.HandleUpcheck()).Methods(http.MethodGet)
	r.HandleFunc("/version", s.HandleVersion()).Methods(http.MethodGet)
	return r
}

func (s *HttpServer) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *HttpServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("node api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// Close detaches the event feed and drops every websocket subscriber.
func (s *HttpServer) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.events.closeAll()
}

func (s *HttpServer) HandleUpcheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("I'm up!"))
	}
}

func (s *HttpServer) HandleVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(s.version))
	}
}

func statusFor(err error) int {
	var perr *model.PublishError
	switch {
	case errors.As(err, &perr):
		return http.StatusInternalServerError
	case errors.Is(err, model.ErrTransactionNotFound), errors.Is(err, model.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrSenderMismatch):
		return http.StatusForbidden
	case errors.Is(err, model.ErrAuthenticationFailure):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrNoRecipients):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", zap.Error(err))
	} else {
		log.Debug(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("marshal response failed", zap.Error(err))
		http.Error(w, "marshal response failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body: "+err.Error())
		return false
	}
	return true
}
