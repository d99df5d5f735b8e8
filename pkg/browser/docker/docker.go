// Package docker runs a headless Chrome in a container and reports its
// DevTools endpoint.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const (
	// LabelManager is the label used to identify containers managed by this system.
	LabelManager = "manager"
	// LabelManagerValue is the value of the manager label.
	LabelManagerValue = "butler"
	// LabelInstance names the browser instance a container belongs to.
	LabelInstance = "butler-browser"
	// BrowserImage is the default headless Chrome image.
	BrowserImage = "chromedp/headless-shell:latest"
	// DevToolsPort is the DevTools port exposed by the image.
	DevToolsPort = "9222"
	// ReconcileInterval is how often Run checks that the browser is alive.
	ReconcileInterval = 10 * time.Second
)

// Manager keeps one browser container per instance name running. The
// DevTools port is published on a fixed host port so a restarted container
// keeps the endpoint already handed out by Ensure.
type Manager struct {
	client   *client.Client
	image    string
	instance string
	hostPort string
	http     *http.Client
}

// New creates a manager for the named browser instance publishing DevTools on
// hostPort.
func New(instance string, hostPort int) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Manager{
		client:   cli,
		image:    BrowserImage,
		instance: instance,
		hostPort: strconv.Itoa(hostPort),
		http:     &http.Client{Timeout: 2 * time.Second},
	}, nil
}

// Endpoint is the DevTools HTTP endpoint, e.g. http://127.0.0.1:9222.
func (m *Manager) Endpoint() string {
	return m.endpoint(m.hostPort)
}

// Ensure starts the browser container if needed and returns its Endpoint.
func (m *Manager) Ensure(ctx context.Context) (string, error) {
	c, err := m.client.ContainerInspect(ctx, m.containerName())
	if err == nil && c.State.Running {
		port, err := m.getPort(c)
		if err != nil {
			return "", err
		}
		if port == m.hostPort {
			return m.endpoint(port), nil
		}
		slog.Info("Browser container published on another port, recreating", "port", port, "want", m.hostPort)
	}
	if err == nil {
		// Stopped or bound elsewhere; recreate with the configured binding.
		m.stopContainer(ctx)
	}
	port, err := m.createAndStart(ctx)
	if err != nil {
		return "", err
	}
	return m.endpoint(port), nil
}

// Run restarts the browser container whenever it disappears. Orphaned
// containers of other instances are removed. Blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	slog.Info("Browser container reconciliation loop starting", "instance", m.instance)

	ticker := time.NewTicker(ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Browser container reconciliation loop stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := m.reconcile(ctx); err != nil {
				slog.Error("Browser reconciliation failed", "error", err)
			}
		}
	}
}

func (m *Manager) reconcile(ctx context.Context) error {
	containers, err := m.listAllManagedContainers(ctx)
	if err != nil {
		return fmt.Errorf("listing managed containers: %w", err)
	}
	running := false
	for _, c := range containers {
		if c.Labels[LabelInstance] != m.instance {
			slog.Info("Removing orphaned browser container", "id", c.ID)
			m.removeContainer(ctx, c.ID)
			continue
		}
		running = running || c.State == "running"
	}
	if !running {
		slog.Warn("Browser container not running, restarting", "instance", m.instance)
		_, err := m.Ensure(ctx)
		return err
	}
	return nil
}

// Stop stops and removes the browser container.
func (m *Manager) Stop(ctx context.Context) error {
	m.stopContainer(ctx)
	return nil
}

// Close releases the Docker client resources.
func (m *Manager) Close() error {
	return m.client.Close()
}

// --- internal helpers ---

func (m *Manager) createAndStart(ctx context.Context) (string, error) {
	if _, _, err := m.client.ImageInspectWithRaw(ctx, m.image); err != nil {
		return "", fmt.Errorf("browser image %q not found, run 'docker pull %s': %w", m.image, m.image, err)
	}

	cfg := &container.Config{
		Image: m.image,
		Labels: map[string]string{
			LabelManager:  LabelManagerValue,
			LabelInstance: m.instance,
		},
		ExposedPorts: nat.PortSet{
			nat.Port(DevToolsPort + "/tcp"): {},
		},
	}
	resp, err := m.client.ContainerCreate(ctx, cfg, m.hostConfig(), nil, nil, m.containerName())
	if err != nil {
		return "", fmt.Errorf("creating container: %w", err)
	}
	if err := m.client.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("starting container: %w", err)
	}

	c, err := m.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return "", err
	}
	port, err := m.getPort(c)
	if err != nil {
		return "", err
	}
	if err := m.waitForHealth(ctx, port); err != nil {
		return "", err
	}
	slog.Info("Browser container started", "instance", m.instance, "port", port)
	return port, nil
}

func (m *Manager) hostConfig() *container.HostConfig {
	return &container.HostConfig{
		PortBindings: nat.PortMap{
			nat.Port(DevToolsPort + "/tcp"): []nat.PortBinding{
				{HostIP: "127.0.0.1", HostPort: m.hostPort},
			},
		},
		ShmSize: 512 << 20,
	}
}

func (m *Manager) stopContainer(ctx context.Context) {
	containers, err := m.listContainers(ctx)
	if err != nil {
		slog.Warn("Failed to list containers for stop", "instance", m.instance, "error", err)
		return
	}
	for _, c := range containers {
		m.removeContainer(ctx, c.ID)
	}
}

func (m *Manager) removeContainer(ctx context.Context, id string) {
	timeout := 10
	if err := m.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		slog.Warn("Failed to stop container", "id", id, "error", err)
	}
	if err := m.client.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		slog.Warn("Failed to remove container", "id", id, "error", err)
	}
}

func (m *Manager) containerName() string {
	return "butler-browser-" + m.instance
}

func (m *Manager) endpoint(port string) string {
	return "http://127.0.0.1:" + port
}

func (m *Manager) getPort(c types.ContainerJSON) (string, error) {
	ports := c.NetworkSettings.Ports[nat.Port(DevToolsPort+"/tcp")]
	if len(ports) > 0 {
		return ports[0].HostPort, nil
	}
	return "", fmt.Errorf("container running but port not mapped")
}

// waitForHealth polls /json/version until the DevTools endpoint answers.
func (m *Manager) waitForHealth(ctx context.Context, port string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeoutCtx.Done():
			return fmt.Errorf("timeout waiting for browser DevTools port")
		case <-ticker.C:
			if m.devToolsReady(timeoutCtx, port) {
				return nil
			}
		}
	}
}

func (m *Manager) devToolsReady(ctx context.Context, port string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.endpoint(port)+"/json/version", nil)
	if err != nil {
		return false
	}
	resp, err := m.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&version) != nil {
		return false
	}
	return version.WebSocketDebuggerURL != ""
}

func (m *Manager) listContainers(ctx context.Context) ([]types.Container, error) {
	return m.client.ContainerList(ctx, types.ContainerListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManager+"="+LabelManagerValue),
			filters.Arg("label", LabelInstance+"="+m.instance),
		),
	})
}

func (m *Manager) listAllManagedContainers(ctx context.Context) ([]types.Container, error) {
	return m.client.ContainerList(ctx, types.ContainerListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", LabelManager+"="+LabelManagerValue),
		),
	})
}
