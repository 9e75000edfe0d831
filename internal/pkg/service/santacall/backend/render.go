package backend

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/santacall/santacall/internal/pkg/log"
)

const RenderCallbackPath = "/v1/callbacks/render"

// RenderClient calls the render backend API.
type RenderClient struct {
	client *resty.Client
	cfg    Config
}

type handleResponse struct {
	Handle string `json:"handle"`
}

func NewRenderClient(logger log.Logger, cfg Config) *RenderClient {
	return &RenderClient{client: newRestyClient(logger.WithComponent("render"), cfg, cfg.Render.URL), cfg: cfg}
}

// Client returns the underlying resty client.
func (c *RenderClient) Client() *resty.Client {
	return c.client
}

func (c *RenderClient) SubmitRender(ctx context.Context, req RenderRequest) (string, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = callbackURL(c.cfg, RenderCallbackPath)
	}

	result := &handleResponse{}
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(result).
		Post("/v1/renders")
	if err := checkResponse("submit render", res, err); err != nil {
		return "", err
	}
	if result.Handle == "" {
		return "", &Error{Operation: "submit render", StatusCode: res.StatusCode(), Message: "response has no handle", permanent: true}
	}
	return result.Handle, nil
}

// CancelRender cancels the render, an unknown handle is not an error.
func (c *RenderClient) CancelRender(ctx context.Context, handle string) error {
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("handle", handle).
		Delete("/v1/renders/{handle}")
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return nil
	}
	return checkResponse("cancel render", res, err)
}
