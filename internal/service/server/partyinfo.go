package server

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
	"txmanager/internal/utils/log"
)

// HandlePostPartyInfo merges a peer's registry view and answers with ours.
// Recipients we had not seen before are passed on to the other parties.
func (s *HttpServer) HandlePostPartyInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		incoming, err := codec.DecodePartyInfo(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid party info: "+err.Error())
			return
		}

		unsaved := s.parties.UpdatePartyInfo(incoming)
		if len(unsaved) > 0 {
			log.Info("learned recipients", zap.String("from", incoming.URL), zap.Int("count", len(unsaved)))
			if s.poller != nil {
				go func() {
					ctx, cancel := context.WithTimeout(context.Background(), propagateWindow)
					defer cancel()
					s.poller.Propagate(ctx, unsaved, incoming.URL)
				}()
			}
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(codec.EncodePartyInfo(s.parties.GetPartyInfo()))
	}
}

func (s *HttpServer) HandleGetPartyInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.NewPartyInfoResponse(s.parties.GetPartyInfo()))
	}
}
