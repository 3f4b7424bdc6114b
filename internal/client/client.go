// Package client talks to a running muza server over its HTTP API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/lazypower/muza/internal/engine"
)

const (
	DefaultTimeout = 5 * time.Second

	// ChatTimeout covers a provider round trip on the server side.
	ChatTimeout = 90 * time.Second
)

// Client talks to the muza server.
type Client struct {
	http      *http.Client
	chat      *http.Client
	serverURL string
}

// New creates a client for serverURL. MUZA_URL overrides it when set.
func New(serverURL string) *Client {
	if env := os.Getenv("MUZA_URL"); env != "" {
		serverURL = env
	}
	return &Client{
		http:      &http.Client{Timeout: DefaultTimeout},
		chat:      &http.Client{Timeout: ChatTimeout},
		serverURL: serverURL,
	}
}

// URL returns the server base URL.
func (c *Client) URL() string {
	return c.serverURL
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Post sends a POST request with a JSON body. Returns the response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	_, data, err := c.post(c.http, path, body)
	return data, err
}

// Get sends a GET request. Returns the response body.
func (c *Client) Get(path string) ([]byte, error) {
	_, data, err := c.get(path)
	return data, err
}

func (c *Client) post(hc *http.Client, path string, body []byte) (int, []byte, error) {
	resp, err := hc.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("POST %s: %w", path, err)
	}
	return readResponse("POST", path, resp)
}

func (c *Client) get(path string) (int, []byte, error) {
	resp, err := c.http.Get(c.serverURL + path)
	if err != nil {
		return 0, nil, fmt.Errorf("GET %s: %w", path, err)
	}
	return readResponse("GET", path, resp)
}

func readResponse(method, path string, resp *http.Response) (int, []byte, error) {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return resp.StatusCode, data, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return resp.StatusCode, data, nil
}

func (c *Client) getJSON(path string, v any) error {
	data, err := c.Get(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(hc *http.Client, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	_, data, err := c.post(hc, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Stats fetches graph statistics.
func (c *Client) Stats() (engine.Stats, error) {
	var s engine.Stats
	err := c.getJSON("/api/stats", &s)
	return s, err
}

// Learn feeds text into the graph and returns the updated statistics.
func (c *Client) Learn(text string, importance, charge float64) (engine.Stats, error) {
	var s engine.Stats
	err := c.postJSON(c.http, "/api/learn", map[string]any{
		"text":       text,
		"importance": importance,
		"charge":     charge,
	}, &s)
	return s, err
}

// Input processes conversational text from source.
func (c *Client) Input(text string, source engine.Source) (engine.Stats, error) {
	var s engine.Stats
	err := c.postJSON(c.http, "/api/input", map[string]any{
		"text":   text,
		"source": string(source),
	}, &s)
	return s, err
}

// Generate walks the graph from seed.
func (c *Client) Generate(seed string, length int) (string, error) {
	q := url.Values{}
	q.Set("seed", seed)
	q.Set("length", strconv.Itoa(length))

	var out struct {
		Text string `json:"text"`
	}
	err := c.getJSON("/api/generate?"+q.Encode(), &out)
	return out.Text, err
}

// Reflect asks the graph for a thought. It reports false when the graph is
// too small to reflect.
func (c *Client) Reflect() (engine.Reflection, bool, error) {
	status, data, err := c.get("/api/reflect")
	if err != nil {
		return engine.Reflection{}, false, err
	}
	if status == http.StatusNoContent {
		return engine.Reflection{}, false, nil
	}
	var r engine.Reflection
	if err := json.Unmarshal(data, &r); err != nil {
		return r, false, fmt.Errorf("decode /api/reflect: %w", err)
	}
	return r, true, nil
}

// Evolve runs one decay pass on the server.
func (c *Client) Evolve() (engine.EvolveReport, error) {
	var rep engine.EvolveReport
	err := c.postJSON(c.http, "/api/evolve", struct{}{}, &rep)
	return rep, err
}

// Network fetches the capped full network.
func (c *Client) Network() (engine.Network, error) {
	var n engine.Network
	err := c.getJSON("/api/network", &n)
	return n, err
}

// VisualNetwork fetches the top-energy subgraph.
func (c *Client) VisualNetwork(maxNodes int) (engine.VisualNetwork, error) {
	var n engine.VisualNetwork
	err := c.getJSON("/api/network/visual?max="+strconv.Itoa(maxNodes), &n)
	return n, err
}

// Chat sends one chat message.
func (c *Client) Chat(message string) (engine.ChatReply, error) {
	var reply engine.ChatReply
	err := c.postJSON(c.chat, "/api/chat", map[string]string{"message": message}, &reply)
	return reply, err
}
