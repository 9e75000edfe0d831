package backend

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/santacall/santacall/internal/pkg/log"
)

// BillingClient calls the billing service API.
type BillingClient struct {
	client *resty.Client
}

type entitlementResponse struct {
	Entitled bool `json:"entitled"`
}

func NewBillingClient(logger log.Logger, cfg Config) *BillingClient {
	return &BillingClient{client: newRestyClient(logger.WithComponent("billing"), cfg, cfg.Billing.URL)}
}

// Client returns the underlying resty client.
func (c *BillingClient) Client() *resty.Client {
	return c.client
}

// IsEntitled returns false if the account is unknown to the billing service.
func (c *BillingClient) IsEntitled(ctx context.Context, accountID string) (bool, error) {
	result := &entitlementResponse{}
	res, err := c.client.R().
		SetContext(ctx).
		SetPathParam("accountId", accountID).
		SetResult(result).
		Get("/v1/accounts/{accountId}/entitlement")
	if err == nil && res.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if err := checkResponse("check entitlement", res, err); err != nil {
		return false, err
	}
	return result.Entitled, nil
}
