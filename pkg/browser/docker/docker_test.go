package docker

import (
	"testing"

	"github.com/docker/go-connections/nat"
)

func TestFixedPortBinding(t *testing.T) {
	m := &Manager{instance: "default", hostPort: "9333"}

	bindings := m.hostConfig().PortBindings[nat.Port(DevToolsPort+"/tcp")]
	if len(bindings) != 1 {
		t.Fatalf("bindings = %v", bindings)
	}
	if bindings[0].HostPort != "9333" || bindings[0].HostIP != "127.0.0.1" {
		t.Errorf("binding = %+v, want 127.0.0.1:9333", bindings[0])
	}
	if got := m.Endpoint(); got != "http://127.0.0.1:9333" {
		t.Errorf("Endpoint() = %q", got)
	}
}
