package testutil

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

const (
	containerStartTimeout = 90 * time.Second
	containerStopTimeout  = 10 * time.Second
)

// sharedContainer starts one container per test binary on first use.
type sharedContainer struct {
	request testcontainers.ContainerRequest
	port    nat.Port

	once      sync.Once
	container testcontainers.Container
	addr      string
	err       error
}

var (
	registeredMu sync.Mutex
	registered   []*sharedContainer
)

func newSharedContainer(req testcontainers.ContainerRequest, port nat.Port) *sharedContainer {
	s := &sharedContainer{request: req, port: port}
	registeredMu.Lock()
	registered = append(registered, s)
	registeredMu.Unlock()
	return s
}

// hostPort returns host:port of the mapped service port, starting the
// container when this is the first caller.
func (s *sharedContainer) hostPort(ctx context.Context) (string, error) {
	s.once.Do(func() {
		s.container, s.addr, s.err = s.start(ctx)
	})
	return s.addr, s.err
}

func (s *sharedContainer) start(ctx context.Context) (testcontainers.Container, string, error) {
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: s.request,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("start %s: %w", s.request.Image, err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		return c, "", fmt.Errorf("%s host: %w", s.request.Image, err)
	}
	mapped, err := c.MappedPort(ctx, s.port)
	if err != nil {
		return c, "", fmt.Errorf("%s port %s: %w", s.request.Image, s.port, err)
	}
	return c, net.JoinHostPort(host, mapped.Port()), nil
}

// requireContainer resolves the address of s or ends the test. Short runs
// skip instead of starting docker.
func requireContainer(t *testing.T, s *sharedContainer) string {
	t.Helper()
	if testing.Short() {
		t.Skipf("skipping %s-backed test in short mode", s.request.Image)
	}

	ctx, cancel := context.WithTimeout(context.Background(), containerStartTimeout)
	defer cancel()

	addr, err := s.hostPort(ctx)
	if err != nil {
		t.Fatalf("shared container unavailable: %v", err)
	}
	return addr
}

// TerminateContainers stops every container started by this package. Call it
// from TestMain after m.Run.
func TerminateContainers() {
	registeredMu.Lock()
	defer registeredMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), containerStopTimeout)
	defer cancel()
	for _, s := range registered {
		if s.container != nil {
			_ = s.container.Terminate(ctx)
		}
	}
}
