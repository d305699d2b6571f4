package marzban

import (
	"net/http"
	"sync"
	"time"

	"github.com/relaygate/relaygate/internal/application/provisioning"
	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// ClientFactory hands out one Client per node so panel tokens are reused
// across calls. A node whose endpoint or credentials change gets a new Client.
type ClientFactory struct {
	httpClient *http.Client
	logger     logger.Interface

	mu      sync.Mutex
	clients map[string]*cachedClient
}

type cachedClient struct {
	endpoint string
	username string
	password string
	client   *Client
}

var _ provisioning.ClientFactory = (*ClientFactory)(nil)

// NewClientFactory builds a factory whose HTTP client gives up after timeout.
// Callers still bound each call with their own context.
func NewClientFactory(timeout time.Duration, logger logger.Interface) *ClientFactory {
	return &ClientFactory{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		clients:    make(map[string]*cachedClient),
	}
}

func (f *ClientFactory) ForNode(n *node.Node) provisioning.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.clients[n.NodeID()]; ok &&
		c.endpoint == n.Endpoint() && c.username == n.Username() && c.password == n.Password() {
		return c.client
	}
	client := NewClient(n.Endpoint(), n.Username(), n.Password(), f.httpClient, f.logger)
	f.clients[n.NodeID()] = &cachedClient{
		endpoint: n.Endpoint(),
		username: n.Username(),
		password: n.Password(),
		client:   client,
	}
	return client
}
