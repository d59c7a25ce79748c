package shotstack

import (
	"context"
	"net/http"
	"net/url"
)

// SubmitRender queues edit for rendering.
func (c *Client) SubmitRender(ctx context.Context, edit Edit) (RawResponse, error) {
	return c.Call(ctx, http.MethodPost, "/render", edit)
}

// SubmitRaw forwards a client-built edit unchanged.
func (c *Client) SubmitRaw(ctx context.Context, edit any) (RawResponse, error) {
	return c.Call(ctx, http.MethodPost, "/render", edit)
}

// GetRender reads the current status of a render job.
func (c *Client) GetRender(ctx context.Context, id string) (RawResponse, error) {
	return c.Call(ctx, http.MethodGet, "/render/"+url.PathEscape(id), nil)
}
