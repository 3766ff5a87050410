package tbookers_test

import (
	"os"
	"strings"
	"testing"
)

func readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func TestDockerfileMultiStageBuild(t *testing.T) {
	content := readFile(t, "Dockerfile")

	if !strings.Contains(content, "FROM golang:") {
		t.Error("Dockerfile should contain a Go builder stage (FROM golang:)")
	}
	// go-sqlite3はcgoが必要
	if !strings.Contains(content, "CGO_ENABLED=1") {
		t.Error("Dockerfile should build with CGO_ENABLED=1")
	}

	var lastFrom string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FROM ") {
			lastFrom = trimmed
		}
	}
	if !strings.Contains(lastFrom, "gcr.io/distroless") {
		t.Errorf("final stage should use a distroless image, got: %s", lastFrom)
	}
}

func TestDockerfileRunsAgent(t *testing.T) {
	content := readFile(t, "Dockerfile")

	if !strings.Contains(content, "./cmd/tbookers") {
		t.Error("Dockerfile should build ./cmd/tbookers")
	}
	if !strings.Contains(content, `ENTRYPOINT ["/tbookers"]`) {
		t.Error("Dockerfile should use the tbookers binary as ENTRYPOINT")
	}
	if !strings.Contains(content, `CMD ["serve"]`) {
		t.Error("Dockerfile should start the agent by default")
	}
	// コンテナ内ではループバック以外でリッスンする必要がある
	if !strings.Contains(content, "TBOOKERS_AGENT_ADDR=0.0.0.0:8765") {
		t.Error("Dockerfile should bind the agent to 0.0.0.0 inside the container")
	}
}

func TestDockerComposeServices(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	for _, svc := range []string{"agent:", "migrate:", "db:"} {
		if !strings.Contains(content, svc) {
			t.Errorf("docker-compose.yml should contain service %q", svc)
		}
	}
	if !strings.Contains(content, "postgres:") {
		t.Error("docker-compose.yml should use PostgreSQL image")
	}
	if !strings.Contains(content, "TBOOKERS_CREDENTIAL_STORE: postgres") {
		t.Error("docker-compose.yml should use the postgres credential store")
	}
}

func TestDockerComposeAgentPortIsLoopbackOnly(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	if !strings.Contains(content, `"127.0.0.1:8765:8765"`) {
		t.Error("agent port should be published on the loopback interface only")
	}
}

func TestDockerComposeNetworks(t *testing.T) {
	content := readFile(t, "docker-compose.yml")

	if !strings.Contains(content, "networks:") {
		t.Error("docker-compose.yml should define networks for egress control")
	}
	if !strings.Contains(content, "internal: true") {
		t.Error("docker-compose.yml should define an internal network (internal: true) for the database")
	}
	if !strings.Contains(content, "external") {
		t.Error("docker-compose.yml should define an external network for agent egress")
	}
}
