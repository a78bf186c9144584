package app

import (
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
)

// eventsURL turns the node's http(s) base url into the websocket url of its
// event feed, filtered to key.
func eventsURL(nodeURL, key string) (string, error) {
	u, err := url.Parse(nodeURL)
	if err != nil {
		return "", err
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported node url scheme %q", u.Scheme)
	}
	u.Path = "/events"
	u.RawQuery = url.Values{"key": []string{key}}.Encode()
	return u.String(), nil
}

func (c *App) initEvents(key string) (*websocket.Conn, error) {
	u, err := eventsURL(c.nodeURL, key)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
