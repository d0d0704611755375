package gemini

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// clientCache holds one genai client per API key. Rotated keys are reused
// across requests, so clients are kept rather than rebuilt on every switch.
type clientCache struct {
	mu      sync.RWMutex
	clients map[string]*genai.Client
	opts    []option.ClientOption
}

func newClientCache(opts ...option.ClientOption) *clientCache {
	return &clientCache{clients: make(map[string]*genai.Client), opts: opts}
}

func (c *clientCache) get(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.RLock()
	if client, ok := c.clients[key]; ok {
		c.mu.RUnlock()
		return client, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check
	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	opts := append(append([]option.ClientOption{}, c.opts...), option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	c.clients[key] = client
	return client, nil
}

func (c *clientCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.clients)
}

func (c *clientCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, client := range c.clients {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close genai client", "error", err)
		}
		delete(c.clients, key)
	}
}
