package server

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
	"txmanager/internal/utils/log"
)

func (s *HttpServer) HandleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SendRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		payload, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			writeError(w, http.StatusBadRequest, "payload is not base64")
			return
		}
		from, err := model.ParseOptionalKey(req.From)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from key: "+err.Error())
			return
		}
		to := make([]model.Key, 0, len(req.To))
		for _, raw := range req.To {
			k, err := model.ParseKey(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid recipient key: "+err.Error())
				return
			}
			to = append(to, k)
		}

		hash, err := s.tx.Store(r.Context(), from, to, payload)
		var perr *model.PublishError
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, model.SendResponse{Key: hash.String()})
		case errors.As(err, &perr) && !hash.IsZero():
			writeJSON(w, http.StatusOK, model.SendResponse{Key: hash.String(), Warnings: perr.Warnings()})
		default:
			writeServiceError(w, "send", err)
		}
	}
}

func (s *HttpServer) HandleReceive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ReceiveRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		s.receive(w, r, req.Key, req.To)
	}
}

// HandleGetTransaction is the query form of /receive: GET /transaction/{key}?to=<key>.
func (s *HttpServer) HandleGetTransaction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.receive(w, r, mux.Vars(r)["key"], r.URL.Query().Get("to"))
	}
}

func (s *HttpServer) receive(w http.ResponseWriter, r *http.Request, key, to string) {
	hash, err := model.ParseHash(key)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction key: "+err.Error())
		return
	}
	recipient, err := model.ParseOptionalKey(to)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to key: "+err.Error())
		return
	}

	plain, err := s.tx.Receive(r.Context(), hash, recipient)
	if err != nil {
		writeServiceError(w, "receive", err)
		return
	}
	writeJSON(w, http.StatusOK, model.ReceiveResponse{Payload: base64.StdEncoding.EncodeToString(plain)})
}

func (s *HttpServer) HandleDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.DeleteRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if s.delete(w, r, req.Key) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("Delete successful"))
		}
	}
}

func (s *HttpServer) HandleDeleteTransaction() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.delete(w, r, mux.Vars(r)["key"]) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

func (s *HttpServer) delete(w http.ResponseWriter, r *http.Request, key string) bool {
	hash, err := model.ParseHash(key)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction key: "+err.Error())
		return false
	}
	if err := s.tx.Delete(r.Context(), hash); err != nil {
		writeServiceError(w, "delete", err)
		return false
	}
	return true
}

// HandlePush stores a payload another node published to one of our keys.
func (s *HttpServer) HandlePush() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}

		if _, err := codec.DecodePayload(data); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
			return
		}

		hash, err := s.tx.StorePayload(r.Context(), data)
		if err != nil {
			writeServiceError(w, "push", err)
			return
		}
		log.Debug("payload pushed", zap.String("hash", hash.String()))

		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(hash.String()))
	}
}

func (s *HttpServer) HandleResend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.ResendRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		key, err := model.ParseKey(req.PublicKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid public key: "+err.Error())
			return
		}

		switch req.Type {
		case model.ResendTypeAll:
			if err := s.tx.ResendAll(r.Context(), key); err != nil {
				writeServiceError(w, "resend all", err)
				return
			}
			w.WriteHeader(http.StatusOK)

		case model.ResendTypeIndividual:
			hash, err := model.ParseHash(req.Key)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid transaction key: "+err.Error())
				return
			}
			p, err := s.tx.FetchTransactionForRecipient(r.Context(), hash, key)
			if err != nil {
				writeServiceError(w, "resend individual", err)
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(codec.EncodePayload(p))

		default:
			writeError(w, http.StatusBadRequest, "unknown resend type "+req.Type)
		}
	}
}
