package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Docker Engine API client over the unix socket. Only
// the endpoints the watchdog needs are implemented.
type Client struct {
	http *http.Client
}

type ContainerInspect struct {
	ID           string `json:"Id"`
	Name         string `json:"Name"`
	RestartCount int    `json:"RestartCount"`
	State        struct {
		Status     string `json:"Status"`
		StartedAt  string `json:"StartedAt"`
		FinishedAt string `json:"FinishedAt"`
		ExitCode   int    `json:"ExitCode"`
	} `json:"State"`
}

func NewClient(socketPath string) *Client {
	dialer := &net.Dialer{Timeout: 3 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}
	return &Client{http: &http.Client{Transport: transport, Timeout: 30 * time.Second}}
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/_ping")
	return err
}

// InspectContainer accepts a container name or ID.
func (c *Client) InspectContainer(ctx context.Context, nameOrID string) (ContainerInspect, error) {
	b, err := c.do(ctx, http.MethodGet, "/containers/"+url.PathEscape(nameOrID)+"/json")
	if err != nil {
		return ContainerInspect{}, err
	}
	var out ContainerInspect
	if err := json.Unmarshal(b, &out); err != nil {
		return ContainerInspect{}, err
	}
	return out, nil
}

// RestartContainer asks the daemon to restart a container, giving it
// graceSec seconds to stop before it is killed.
func (c *Client) RestartContainer(ctx context.Context, nameOrID string, graceSec int) error {
	if graceSec <= 0 {
		graceSec = 10
	}
	p := fmt.Sprintf("/containers/%s/restart?t=%d", url.PathEscape(nameOrID), graceSec)
	_, err := c.do(ctx, http.MethodPost, p)
	return err
}

func (c *Client) do(ctx context.Context, method, p string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+p, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = res.Status
		}
		return nil, fmt.Errorf("docker api %s %s failed: %s", method, p, msg)
	}
	return b, nil
}
