// Package rest reads the agent topology from the controller's control panel
// API.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/aescanero/hubcycle/pkg/domain"
	"go.uber.org/zap"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

type groupInfo struct {
	Projects []string `json:"projects"`
}

type projectInfo struct {
	Workstates []string `json:"workstates"`
	Hubs       []string `json:"hubs"`
}

// Client wraps HTTP calls to the control panel
type Client struct {
	baseURL    string
	group      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a control panel client. group selects one group; empty
// requires the panel to have exactly one.
func NewClient(baseURL, group string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		group:   group,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
		logger: logger,
	}
}

// Load fetches the group and the hubs and workstates of each of its projects
func (c *Client) Load(ctx context.Context) (*domain.Topology, error) {
	var groups map[string]groupInfo
	if err := c.get(ctx, "/api/groups", &groups); err != nil {
		return nil, fmt.Errorf("failed to get group info: %w", err)
	}

	name, err := c.selectGroup(groups)
	if err != nil {
		return nil, err
	}

	topology := &domain.Topology{Group: name}
	for _, project := range groups[name].Projects {
		var info projectInfo
		if err := c.get(ctx, "/api/projects/"+url.PathEscape(project), &info); err != nil {
			return nil, fmt.Errorf("failed to get project info for %s: %w", project, err)
		}
		topology.Agents = append(topology.Agents, domain.AgentInfo{
			Name:       project,
			Workstates: info.Workstates,
			Hubs:       info.Hubs,
		})
	}

	c.logger.Info("loaded topology from control panel",
		zap.String("group", name),
		zap.Strings("agents", topology.Names()))
	return topology, nil
}

func (c *Client) selectGroup(groups map[string]groupInfo) (string, error) {
	if c.group != "" {
		if _, ok := groups[c.group]; !ok {
			return "", fmt.Errorf("group %s not found on control panel", c.group)
		}
		return c.group, nil
	}
	if len(groups) != 1 {
		names := make([]string, 0, len(groups))
		for name := range groups {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("control panel has groups %v; set TOPOLOGY_GROUP", names)
	}
	for name := range groups {
		return name, nil
	}
	return "", nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
