package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/idanmel/skyarena/internal/handshake"
	"github.com/idanmel/skyarena/internal/protocol"
)

// Client speaks the control channel: it dials, performs the key handshake,
// and exchanges encrypted frames.
type Client struct {
	conn net.Conn
	key  []byte
}

// Dial connects to the server and completes the handshake.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, err
	}

	key, err := handshake.ClientEstablish(conn)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	return &Client{conn: conn, key: key}, nil
}

// Close sends EXTC and closes the connection.
func (c *Client) Close() error {
	_ = c.sendRaw(protocol.TagExitClient + "#")
	return c.conn.Close()
}

// CloseAbruptly drops the connection without the EXTC courtesy, simulating
// a vanished client.
func (c *Client) CloseAbruptly() error {
	return c.conn.Close()
}

// Login authenticates; false means bad credentials.
func (c *Client) Login(username, password string) (bool, error) {
	reply, err := c.request(fmt.Sprintf("%s#%s$%s", protocol.TagLoginRequest, username, password))
	if err != nil {
		return false, err
	}
	return parseResult(reply, protocol.TagLoginAnswer)
}

// Signup creates an account; false means the username is taken.
func (c *Client) Signup(username, password string) (bool, error) {
	reply, err := c.request(fmt.Sprintf("%s#%s$%s", protocol.TagSignupRequest, username, password))
	if err != nil {
		return false, err
	}
	return parseResult(reply, protocol.TagSignupAnswer)
}

// Shop returns the account's balance and inventory.
func (c *Client) Shop() (int64, []string, error) {
	reply, err := c.request(protocol.TagShopRequest + "#")
	if err != nil {
		return 0, nil, err
	}

	tag, args, _ := strings.Cut(reply, "#")
	if tag != protocol.TagShopAnswer {
		return 0, nil, fmt.Errorf("unexpected answer %q", reply)
	}
	balanceStr, invStr, _ := strings.Cut(args, "$")
	balance, err := strconv.ParseInt(balanceStr, 10, 64)
	if err != nil {
		return 0, nil, fmt.Errorf("bad balance in %q", reply)
	}
	var inventory []string
	if invStr != "" {
		inventory = strings.Split(invStr, "|")
	}
	return balance, inventory, nil
}

// Buy purchases an aircraft; false means rejected (insufficient funds,
// already owned, or unknown aircraft).
func (c *Client) Buy(aircraftID string) (bool, error) {
	reply, err := c.request(protocol.TagBuyRequest + "#" + aircraftID)
	if err != nil {
		return false, err
	}
	return parseResult(reply, protocol.TagBuyAnswer)
}

// Select enters the open world with the given aircraft and world token.
func (c *Client) Select(aircraftID, token string) (bool, error) {
	reply, err := c.request(fmt.Sprintf("%s#%s|%s", protocol.TagSelectRequest, aircraftID, token))
	if err != nil {
		return false, err
	}
	return parseResult(reply, protocol.TagSelectAnswer)
}

// ExitToSelect leaves the open world back to the select window. The server
// replies with nothing; this only sends the request.
func (c *Client) ExitToSelect() error {
	return c.sendRaw(protocol.TagExitToSelect + "#")
}

func (c *Client) request(payload string) (string, error) {
	if err := c.sendRaw(payload); err != nil {
		return "", err
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	reply, err := protocol.DecodeFrame(c.conn, c.key)
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

func (c *Client) sendRaw(payload string) error {
	frame, err := protocol.EncodeFrame([]byte(payload), c.key)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_, err = c.conn.Write(frame)
	return err
}

func parseResult(reply, wantTag string) (bool, error) {
	tag, args, ok := strings.Cut(reply, "#")
	if !ok || tag != wantTag {
		return false, fmt.Errorf("unexpected answer %q", reply)
	}
	return args == "1", nil
}
