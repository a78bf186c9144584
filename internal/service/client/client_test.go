package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txmanager/internal/model"
	"txmanager/internal/protocol/codec"
)

func TestPushPayload(t *testing.T) {
	p := &model.EncodedPayloadWithRecipients{
		SenderKey:       model.Key{1},
		CipherText:      []byte("ct"),
		CipherTextNonce: []byte("nonce"),
		RecipientBoxes:  [][]byte{[]byte("box")},
		RecipientNonce:  []byte("rnonce"),
		RecipientKeys:   []model.Key{{2}},
	}

	var got *model.EncodedPayloadWithRecipients
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/push", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, contentTypeBinary, r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		var err error
		got, err = codec.DecodePayload(data)
		assert.NoError(t, err)
		w.Write([]byte("hash"))
	}))
	defer srv.Close()

	c := New(0)
	require.NoError(t, c.PushPayload(context.Background(), srv.URL+"/", p))
	assert.Equal(t, p, got)
}

func TestPushPayloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.ErrorResponse{Error: "bad payload"})
	}))
	defer srv.Close()

	err := New(0).PushPayload(context.Background(), srv.URL, &model.EncodedPayloadWithRecipients{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, "bad payload", se.Message)
}

func TestPushPayloadUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	assert.Error(t, New(0).PushPayload(context.Background(), url, &model.EncodedPayloadWithRecipients{}))
}

func TestSendPartyInfo(t *testing.T) {
	theirs := model.NewPartyInfo("http://b:8080",
		[]model.Recipient{{Key: model.Key{2}, URL: "http://b:8080"}},
		[]model.Party{{URL: "http://c:8080"}},
	)

	var received model.PartyInfo
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/partyinfo", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		var err error
		received, err = codec.DecodePartyInfo(data)
		assert.NoError(t, err)
		w.Write(codec.EncodePartyInfo(theirs))
	}))
	defer srv.Close()

	ours := model.NewPartyInfo("http://a:8080", []model.Recipient{{Key: model.Key{1}, URL: "http://a:8080"}}, nil)
	reply, err := New(0).SendPartyInfo(context.Background(), srv.URL, ours)
	require.NoError(t, err)
	assert.True(t, ours.Equal(received))
	assert.True(t, theirs.Equal(reply))
}

func TestSendAndReceive(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		var req model.SendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"to"}, req.To)
		json.NewEncoder(w).Encode(model.SendResponse{Key: "abc", Warnings: []string{"w"}})
	})
	mux.HandleFunc("/receive", func(w http.ResponseWriter, r *http.Request) {
		var req model.ReceiveRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "abc", req.Key)
		json.NewEncoder(w).Encode(model.ReceiveResponse{Payload: "cGF5bG9hZA=="})
	})
	mux.HandleFunc("/upcheck", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("I'm up!"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWithHTTPClient(srv.Client())
	ctx := context.Background()

	sent, err := c.Send(ctx, srv.URL, model.SendRequest{Payload: "cGF5bG9hZA==", To: []string{"to"}})
	require.NoError(t, err)
	assert.Equal(t, "abc", sent.Key)
	assert.Equal(t, []string{"w"}, sent.Warnings)

	got, err := c.Receive(ctx, srv.URL, model.ReceiveRequest{Key: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "cGF5bG9hZA==", got.Payload)

	assert.NoError(t, c.Upcheck(ctx, srv.URL))
}

func TestResend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.ResendRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.ResendTypeIndividual, req.Type)
		w.Write([]byte("encoded"))
	}))
	defer srv.Close()

	body, err := New(0).Resend(context.Background(), srv.URL, model.ResendRequest{
		Type:      model.ResendTypeIndividual,
		PublicKey: "pk",
		Key:       "k",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("encoded"), body)
}
