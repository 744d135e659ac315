package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tolelom/arcadechain/core"
	"github.com/tolelom/arcadechain/crypto"
)

// Client is a minimal JSON-RPC 2.0 client for a node's endpoint.
type Client struct {
	url    string
	token  string
	http   *http.Client
	nextID atomic.Int64
}

// NewClient returns a Client posting to url. token, if set, is sent as a
// bearer token.
func NewClient(url, token string) *Client {
	return &Client{url: url, token: token, http: &http.Client{Timeout: 15 * time.Second}}
}

// Call invokes method and decodes its result into out (which may be nil).
// A JSON-RPC error object is returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: raw})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: http status %d", method, res.StatusCode)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func (e *Error) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// Account returns the committed account at addr.
func (c *Client) Account(ctx context.Context, addr crypto.Address) (*core.Account, error) {
	var acc core.Account
	if err := c.Call(ctx, "getAccount", addressParams{Address: addr}, &acc); err != nil {
		return nil, err
	}
	return &acc, nil
}

// Asset returns the committed asset at addr.
func (c *Client) Asset(ctx context.Context, addr crypto.Address) (*core.Asset, error) {
	var a core.Asset
	if err := c.Call(ctx, "getAsset", addressParams{Address: addr}, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// Collection returns the committed collection at addr.
func (c *Client) Collection(ctx context.Context, addr crypto.Address) (*core.Collection, error) {
	var coll core.Collection
	if err := c.Call(ctx, "getCollection", addressParams{Address: addr}, &coll); err != nil {
		return nil, err
	}
	return &coll, nil
}

// Receipt returns the sealed receipt of txID.
func (c *Client) Receipt(ctx context.Context, txID string) (*core.Receipt, error) {
	var rc core.Receipt
	if err := c.Call(ctx, "getReceipt", map[string]string{"tx_id": txID}, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// SendTx submits tx to the node's mempool and returns its id.
func (c *Client) SendTx(ctx context.Context, tx *core.Transaction) (string, error) {
	var out struct {
		TxID string `json:"tx_id"`
	}
	if err := c.Call(ctx, "sendTx", tx, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}
