package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lantern-ai/lantern-engine/internal/connector"
	"github.com/lantern-ai/lantern-engine/internal/model"
)

// connectorBuilder implements orchestrator.ConnectorBuilder. It only
// builds connector.Connector instances whose API client this module
// carries a real implementation for. This module ships no OAuth-backed
// API clients (Slack/Gmail/GitHub/Drive); they are treated as
// deployment-specific, and only their Connector-facing interfaces (ChatAPI, EmailAPI,
// CodeHostAPI, CloudFilesAPI) are defined in internal/connector. A
// deployment that needs those live would supply its own builder, or
// extend this one with concrete clients behind those interfaces.
type connectorBuilder struct {
	httpClient *http.Client
	retainer   connector.Retainer
}

func newConnectorBuilder(retainer connector.Retainer) *connectorBuilder {
	return &connectorBuilder{
		httpClient: &http.Client{},
		retainer:   retainer,
	}
}

func (b *connectorBuilder) Build(ctx context.Context, c *model.Connector) (connector.Connector, error) {
	switch c.Type {
	case model.ConnectorWebCrawler:
		var settings connector.WebCrawlerSettings
		if err := json.Unmarshal(c.Settings, &settings); err != nil {
			return nil, fmt.Errorf("connectorBuilder.Build: web-crawler settings: %w", err)
		}
		return connector.NewWebCrawlerConnector(b.httpClient, settings, nil), nil

	case model.ConnectorEmailSource, model.ConnectorChatSource, model.ConnectorCodeHost, model.ConnectorCloudFiles:
		return nil, fmt.Errorf("connectorBuilder.Build: %s requires a deployment-supplied OAuth API client, none configured", c.Type)

	default:
		return nil, fmt.Errorf("connectorBuilder.Build: unknown connector type %q", c.Type)
	}
}
