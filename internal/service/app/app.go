package app

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gorilla/websocket"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"txmanager/internal/model"
	"txmanager/internal/service/client"
	"txmanager/internal/utils/log"
)

const requestTimeout = 15 * time.Second

type (
	// App is a terminal client that sends private payloads through a node
	// and shows the ones pushed to it.
	App struct {
		app     *tview.Application
		chatbox *tview.TextView
		input   *tview.InputField

		node    *client.Client
		nodeURL string

		// from is our key on the node, to the recipient key.
		from string
		to   string

		conn *websocket.Conn
	}
)

func NewApp(node *client.Client, nodeURL string) *App {
	return &App{
		app:     tview.NewApplication(),
		node:    node,
		nodeURL: nodeURL,
	}
}

// Run blocks until the UI exits.
func (c *App) Run(ctx context.Context, from, to string) error {
	if _, err := model.ParseKey(from); err != nil {
		return fmt.Errorf("invalid own key: %w", err)
	}
	if _, err := model.ParseKey(to); err != nil {
		return fmt.Errorf("invalid recipient key: %w", err)
	}
	c.from, c.to = from, to

	if err := c.node.Upcheck(ctx, c.nodeURL); err != nil {
		return fmt.Errorf("node %s is not reachable: %w", c.nodeURL, err)
	}

	conn, err := c.initEvents(c.from)
	if err != nil {
		return fmt.Errorf("subscribe to node events: %w", err)
	}
	c.conn = conn

	go c.listenOnEvents(ctx)
	return c.renderUI()
}

func (c *App) Stop() {
	if c.conn != nil {
		c.conn.Close()
	}
	c.app.Stop()
}

// blocking function
func (c *App) renderUI() error {
	c.chatbox = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	c.chatbox.SetBorder(true).SetTitle(fmt.Sprintf(" Private transactions to %s ", shortKey(c.to)))

	c.input = tview.NewInputField().
		SetLabel("Payload: ").
		SetFieldWidth(0)
	c.input.SetBorder(true).SetTitle(" New Transaction ")

	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := c.input.GetText()
		if text == "" {
			return
		}

		go func(msg string) {
			if err := c.SendMessage(msg); err != nil {
				c.printf("[red]send failed:[-] %s\n", tview.Escape(err.Error()))
				log.Error("send transaction failed", zap.Error(err))
			}
		}(text)
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(c.chatbox, 0, 1, false).
		AddItem(c.input, 3, 0, true)

	return c.app.SetRoot(layout, true).SetFocus(c.input).Run()
}

func (c *App) listenOnEvents(ctx context.Context) {
	for {
		var event model.StoredEvent
		if err := c.conn.ReadJSON(&event); err != nil {
			log.Debug("events socket closed", zap.Error(err))
			c.conn.Close()
			c.printf("[red]disconnected from node[-]\n")
			return
		}

		if err := c.ReceiveMessage(ctx, &event); err != nil {
			log.Error("receive transaction failed", zap.String("key", event.Key), zap.Error(err))
			c.printf("[red]cannot open %s:[-] %s\n", shortKey(event.Key), tview.Escape(err.Error()))
		}
	}
}

// SendMessage stores msg on the node for our recipient.
func (c *App) SendMessage(msg string) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	resp, err := c.node.Send(ctx, c.nodeURL, model.SendRequest{
		Payload: base64.StdEncoding.EncodeToString([]byte(msg)),
		From:    c.from,
		To:      []string{c.to},
	})
	if err != nil {
		return err
	}

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.chatbox, "[yellow]You (%s):[-] %s\n", shortKey(resp.Key), tview.Escape(msg))
		for _, w := range resp.Warnings {
			fmt.Fprintf(c.chatbox, "  [orange]warning:[-] %s\n", tview.Escape(w))
		}
		c.input.SetText("")
		c.chatbox.ScrollToEnd()
	})
	return nil
}

// ReceiveMessage decrypts the transaction named by event for our key.
func (c *App) ReceiveMessage(ctx context.Context, event *model.StoredEvent) error {
	msg, err := c.open(ctx, event.Key)
	if err != nil {
		return err
	}

	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.chatbox, "[green]%s:[-] %s\n", shortKey(event.Sender), tview.Escape(msg))
		c.chatbox.ScrollToEnd()
	})
	return nil
}

func (c *App) open(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := c.node.Receive(ctx, c.nodeURL, model.ReceiveRequest{Key: key, To: c.from})
	if err != nil {
		return "", err
	}
	plain, err := base64.StdEncoding.DecodeString(resp.Payload)
	if err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	return string(plain), nil
}

func (c *App) printf(format string, args ...any) {
	c.app.QueueUpdateDraw(func() {
		fmt.Fprintf(c.chatbox, format, args...)
		c.chatbox.ScrollToEnd()
	})
}

func shortKey(k string) string {
	if len(k) <= 8 {
		return k
	}
	return k[:8]
}
