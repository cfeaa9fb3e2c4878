package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"torrdrop/internal/config"
	"torrdrop/internal/services"
)

const sessionHeader = "X-Transmission-Session-Id"

// Client submits torrent descriptors to a Transmission RPC endpoint.
type Client struct {
	url      string
	username string
	password string
	http     *http.Client

	mu        sync.Mutex
	sessionID string
}

// NewClient builds a Transmission RPC adapter from configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		url:      cfg.RPCURL(),
		username: cfg.Transmission.Username,
		password: cfg.Transmission.Password,
		http:     &http.Client{Timeout: cfg.RequestTimeout()},
	}
}

// Ping verifies the RPC endpoint is reachable and the session handshake
// works. Used as the startup probe; failure before the loop starts is fatal.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, "session-get", nil)
	return err
}

// Submit sends the descriptor bytes to the engine and returns the opaque job
// identifier assigned by it. downloadDir may be empty to use the engine's
// default. Failures are classified: network and availability problems are
// transient, rejection of the descriptor itself is permanent.
func (c *Client) Submit(ctx context.Context, metainfo []byte, downloadDir string) (string, error) {
	args := map[string]any{
		"metainfo": base64.StdEncoding.EncodeToString(metainfo),
		"paused":   false,
	}
	if strings.TrimSpace(downloadDir) != "" {
		args["download-dir"] = downloadDir
	}

	resp, err := c.request(ctx, "torrent-add", args)
	if err != nil {
		return "", err
	}

	var added struct {
		TorrentAdded     *torrentRef `json:"torrent-added"`
		TorrentDuplicate *torrentRef `json:"torrent-duplicate"`
	}
	if err := json.Unmarshal(resp.Arguments, &added); err != nil {
		return "", services.Wrap(services.ErrTransient, "transmission", "submit", "decode torrent-add response", err)
	}

	switch {
	case added.TorrentAdded != nil:
		return added.TorrentAdded.jobID(), nil
	case added.TorrentDuplicate != nil:
		return "", services.Wrap(services.ErrPermanent, "transmission", "submit",
			fmt.Sprintf("engine already manages this torrent (%s)", added.TorrentDuplicate.jobID()),
			services.ErrAlreadyExists)
	default:
		return "", services.Wrap(services.ErrTransient, "transmission", "submit", "engine returned no torrent reference", nil)
	}
}

type torrentRef struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	HashString string `json:"hashString"`
}

func (r *torrentRef) jobID() string {
	if r.HashString != "" {
		return r.HashString
	}
	return strconv.FormatInt(r.ID, 10)
}

type response struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
}

// request performs one RPC call, renegotiating the session id once on a 409
// per the Transmission protocol.
func (c *Client) request(ctx context.Context, method string, arguments map[string]any) (response, error) {
	payload := map[string]any{"method": method}
	if arguments != nil {
		payload["arguments"] = arguments
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return response{}, services.Wrap(services.ErrPermanent, "transmission", method, "encode request", err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
		if err != nil {
			return response{}, services.Wrap(services.ErrConfiguration, "transmission", method, "build request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if sessionID := c.getSessionID(); sessionID != "" {
			req.Header.Set(sessionHeader, sessionID)
		}
		if c.username != "" || c.password != "" {
			req.SetBasicAuth(c.username, c.password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return response{}, classifyTransportError(method, err)
		}

		if resp.StatusCode == http.StatusConflict {
			newID := resp.Header.Get(sessionHeader)
			_ = resp.Body.Close()
			if newID == "" {
				return response{}, services.Wrap(services.ErrTransient, "transmission", method, "session id missing from 409 response", nil)
			}
			c.setSessionID(newID)
			continue
		}

		out, err := decodeResponse(method, resp)
		_ = resp.Body.Close()
		if err != nil {
			return response{}, err
		}
		return out, nil
	}

	return response{}, services.Wrap(services.ErrTransient, "transmission", method, "session negotiation failed", nil)
}

func decodeResponse(method string, resp *http.Response) (response, error) {
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return response{}, services.Wrap(services.ErrPermanent, "transmission", method,
			fmt.Sprintf("authentication rejected (HTTP %d)", resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return response{}, services.Wrap(services.ErrTransient, "transmission", method,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return response{}, services.Wrap(services.ErrTransient, "transmission", method, "decode response", err)
	}
	if out.Result != "success" {
		return response{}, classifyResultError(method, out.Result)
	}
	return out, nil
}

// classifyResultError maps Transmission result strings onto the retry
// taxonomy. Rejections of the descriptor itself will not get better with
// time; everything else might.
func classifyResultError(method, result string) error {
	lowered := strings.ToLower(result)
	if strings.Contains(lowered, "invalid") ||
		strings.Contains(lowered, "corrupt") ||
		strings.Contains(lowered, "unrecognized") ||
		strings.Contains(lowered, "duplicate") {
		return services.Wrap(services.ErrPermanent, "transmission", method, "engine rejected request: "+result, nil)
	}
	return services.Wrap(services.ErrTransient, "transmission", method, "engine error: "+result, nil)
}

func classifyTransportError(method string, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return services.Wrap(services.ErrTimeout, "transmission", method, "rpc call timed out", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "transmission", method, "rpc call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return services.Wrap(services.ErrTransient, "transmission", method, "rpc call failed", err)
}

func (c *Client) getSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) setSessionID(value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = value
}
