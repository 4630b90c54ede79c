package client

import (
	"context"
	"net/http"
)

// AuthTokenHeader carries the service token on flow manager uploads
const AuthTokenHeader = "auth-token"

// FlowManager is the data ingestion API mounted under a prefix such as "source"
type FlowManager struct {
	c      *Client
	prefix string
}

// NewFlowManager creates a flow manager API bound to prefix
func NewFlowManager(c *Client, prefix string) *FlowManager {
	return &FlowManager{c: c, prefix: prefix}
}

// UploadEmpty posts to the upload endpoint without any body
func (f *FlowManager) UploadEmpty(ctx context.Context) (*Response, error) {
	return f.c.Do(ctx, Request{
		Endpoint: "flowmanager.upload",
		Method:   http.MethodPost,
		Path:     []string{f.prefix, "upload"},
	})
}

// Upload posts a dataset spec as JSON. An empty token sends no auth header.
func (f *FlowManager) Upload(ctx context.Context, content any, token string) (*Response, error) {
	req := Request{
		Endpoint: "flowmanager.upload",
		Method:   http.MethodPost,
		Path:     []string{f.prefix, "upload"},
		Body:     content,
	}
	if token != "" {
		req.Header = map[string]string{AuthTokenHeader: token}
	}
	return f.c.Do(ctx, req)
}

// Revision fetches revision info. revision is "latest", "successful" or a number.
func (f *FlowManager) Revision(ctx context.Context, ownerID, datasetID, revision string) (*Response, error) {
	return f.c.Do(ctx, Request{
		Endpoint: "flowmanager.revision",
		Method:   http.MethodGet,
		Path:     []string{f.prefix, ownerID, datasetID, revision},
	})
}
