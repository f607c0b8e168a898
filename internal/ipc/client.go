package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Client communicates with the daemon over a Unix domain socket.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates an IPC client for the given socket path.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		timeout:    5 * time.Second,
	}
}

// Ping tests if the daemon is alive.
func (c *Client) Ping() error {
	_, err := c.send(Request{Command: "ping"})
	return err
}

// Status returns the daemon's status data.
func (c *Client) Status() (*StatusData, error) {
	resp, err := c.send(Request{Command: "status"})
	if err != nil {
		return nil, err
	}

	var status StatusData
	if err := decodeData(resp.Data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// History returns up to limit recent refresh journal entries.
func (c *Client) History(limit int) (*HistoryData, error) {
	req := Request{Command: "history"}
	if limit > 0 {
		req.Args = map[string]string{"limit": strconv.Itoa(limit)}
	}
	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}

	var history HistoryData
	if err := decodeData(resp.Data, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// RequestStop asks the daemon to shut down gracefully.
func (c *Client) RequestStop() error {
	_, err := c.send(Request{Command: "stop"})
	return err
}

// decodeData re-marshals the generic response payload into a typed struct.
func decodeData(data interface{}, out interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal response data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal response data: %w", err)
	}
	return nil
}

// send dials the socket, sends a JSON request, and reads the JSON response.
func (c *Client) send(req Request) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		return nil, fmt.Errorf("empty response from daemon")
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}
