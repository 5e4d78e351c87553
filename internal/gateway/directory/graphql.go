package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const routeQuery = `query ($id: ID!) {
  phApplication(where: { id: $id }) {
    id
    internalAppUrl
    scope
    groupName
    rewrite
    status
  }
}`

const membershipQuery = `query ($id: ID!) {
  user(where: { id: $id }) {
    groups {
      name
    }
  }
}`

// GraphQLService resolves routes and memberships from the platform's
// GraphQL API, authenticating with a shared service secret.
type GraphQLService struct {
	// Endpoint is the full GraphQL URL, e.g. "http://console:3000/graphql".
	Endpoint string
	// Secret is sent as a bearer token on every request.
	Secret string
	// HTTPClient overrides the default client (10 second timeout).
	HTTPClient *http.Client
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// GetApplicationRoute implements Service.
func (s *GraphQLService) GetApplicationRoute(ctx context.Context, appID string) (Route, error) {
	var data struct {
		Application *struct {
			ID             string `json:"id"`
			InternalAppURL string `json:"internalAppUrl"`
			Scope          string `json:"scope"`
			GroupName      string `json:"groupName"`
			Rewrite        bool   `json:"rewrite"`
			Status         string `json:"status"`
		} `json:"phApplication"`
	}

	err := s.query(ctx, routeQuery, map[string]any{"id": appID}, &data)
	if err != nil {
		return Route{}, err
	}
	if data.Application == nil {
		return Route{}, ErrNotFound
	}

	app := data.Application
	return Route{
		ID:      app.ID,
		Scope:   Scope(app.Scope),
		Group:   app.GroupName,
		Target:  app.InternalAppURL,
		Rewrite: app.Rewrite,
		Ready:   app.Status == "Ready",
	}, nil
}

// IsGroupMember implements Service.
func (s *GraphQLService) IsGroupMember(ctx context.Context, userID, group string) (bool, error) {
	var data struct {
		User *struct {
			Groups []struct {
				Name string `json:"name"`
			} `json:"groups"`
		} `json:"user"`
	}

	err := s.query(ctx, membershipQuery, map[string]any{"id": userID}, &data)
	if err != nil {
		return false, err
	}
	if data.User == nil {
		return false, nil
	}

	for _, g := range data.User.Groups {
		if g.Name == group {
			return true, nil
		}
	}
	return false, nil
}

// Ping probes the GraphQL endpoint with a trivial query.
func (s *GraphQLService) Ping(ctx context.Context) error {
	var data struct {
		TypeName string `json:"__typename"`
	}
	return s.query(ctx, `query { __typename }`, nil, &data)
}

// query posts a {query, variables} envelope and decodes the data field
// into out. GraphQL-level errors are returned as Go errors.
func (s *GraphQLService) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Secret)

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graphql request failed with status %d: %s", resp.StatusCode, raw)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}

func (s *GraphQLService) client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return defaultGraphQLClient
}

var defaultGraphQLClient = &http.Client{Timeout: 10 * time.Second}
