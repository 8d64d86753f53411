package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/vigil-systems/vigil/internal/config"
)

type OpenSearchClient struct {
	client *opensearch.Client
}

func NewOpenSearchClient(cfg config.OpenSearchConfig) (*OpenSearchClient, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.Insecure,
			},
		},
	}

	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	return &OpenSearchClient{client: client}, nil
}

func (c *OpenSearchClient) Client() *opensearch.Client {
	return c.client
}

// Ping checks cluster reachability. Used by the readiness endpoint.
func (c *OpenSearchClient) Ping(ctx context.Context) error {
	info, err := c.client.Info(c.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("opensearch unreachable: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return fmt.Errorf("opensearch returned error: %s", info.Status())
	}
	return nil
}
