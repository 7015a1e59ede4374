package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Voicebox.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	var resp ShutdownResponse
	if err := c.client.Call("Voicebox.Shutdown", ShutdownRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Import starts an import from a URL or local file path.
func (c *Client) Import(req ImportRequest) (*ImportResponse, error) {
	var resp ImportResponse
	if err := c.client.Call("Voicebox.Import", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ImportWait blocks until the import reaches a terminal status.
func (c *Client) ImportWait(req ImportWaitRequest) (*ImportWaitResponse, error) {
	var resp ImportWaitResponse
	if err := c.client.Call("Voicebox.ImportWait", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CurrentPack retrieves the active voice pack.
func (c *Client) CurrentPack() (*CurrentPackResponse, error) {
	var resp CurrentPackResponse
	if err := c.client.Call("Voicebox.CurrentPack", CurrentPackRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PlayerState retrieves the playback state.
func (c *Client) PlayerState() (*PlayerStateResponse, error) {
	var resp PlayerStateResponse
	if err := c.client.Call("Voicebox.PlayerState", PlayerStateRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PlayerAction applies a playback action.
func (c *Client) PlayerAction(req PlayerActionRequest) (*PlayerActionResponse, error) {
	var resp PlayerActionResponse
	if err := c.client.Call("Voicebox.PlayerAction", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History lists import attempts optionally filtered by statuses.
func (c *Client) History(statuses []string) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Voicebox.History", HistoryRequest{Statuses: statuses}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearHistory removes finished import records.
func (c *Client) ClearHistory() (*ClearHistoryResponse, error) {
	var resp ClearHistoryResponse
	if err := c.client.Call("Voicebox.ClearHistory", ClearHistoryRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DatabaseHealth retrieves detailed state database diagnostics.
func (c *Client) DatabaseHealth() (*DatabaseHealthResponse, error) {
	var resp DatabaseHealthResponse
	if err := c.client.Call("Voicebox.DatabaseHealth", DatabaseHealthRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	var resp TestNotificationResponse
	if err := c.client.Call("Voicebox.TestNotification", TestNotificationRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
