package model

const (
	ResendTypeAll        = "ALL"
	ResendTypeIndividual = "INDIVIDUAL"
)

type (
	// SendRequest stores a new transaction and propagates it to the recipients.
	SendRequest struct {
		// Payload is the base64 encoded transaction payload.
		Payload string `json:"payload"`
		// From is the base64 sender key; empty means the node default key.
		From string   `json:"from,omitempty"`
		To   []string `json:"to"`
	}

	SendResponse struct {
		// Key is the base64 hash used to retrieve the transaction.
		Key      string   `json:"key"`
		Warnings []string `json:"warnings,omitempty"`
	}

	ReceiveRequest struct {
		Key string `json:"key"`
		To  string `json:"to,omitempty"`
	}

	ReceiveResponse struct {
		Payload string `json:"payload"`
	}

	DeleteRequest struct {
		Key string `json:"key"`
	}

	// ResendRequest asks for every transaction of PublicKey (Type ALL) or for
	// the single transaction Key (Type INDIVIDUAL).
	ResendRequest struct {
		Type      string `json:"type"`
		PublicKey string `json:"publicKey"`
		Key       string `json:"key,omitempty"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}

	// StoredEvent is pushed to websocket subscribers when a payload from a
	// peer is stored.
	StoredEvent struct {
		Key        string   `json:"key"`
		Sender     string   `json:"sender"`
		Recipients []string `json:"recipients"`
	}
)

type (
	RecipientView struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}

	PartyView struct {
		URL string `json:"url"`
	}

	// PartyInfoResponse is the JSON view of the registry served on GET /partyinfo.
	PartyInfoResponse struct {
		URL        string          `json:"url"`
		Recipients []RecipientView `json:"keys"`
		Parties    []PartyView     `json:"peers"`
	}
)

func NewPartyInfoResponse(pi PartyInfo) PartyInfoResponse {
	out := PartyInfoResponse{
		URL:        pi.URL,
		Recipients: []RecipientView{},
		Parties:    []PartyView{},
	}
	for _, r := range pi.RecipientList() {
		out.Recipients = append(out.Recipients, RecipientView{Key: r.Key.String(), URL: r.URL})
	}
	for _, p := range pi.PartyList() {
		out.Parties = append(out.Parties, PartyView{URL: p.URL})
	}
	return out
}
