package clients

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/talktera/talktera-scheduling-service/internal/domain"
)

// PaymentAPI wraps the payment processor's charge endpoint.
type PaymentAPI struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewPaymentAPI(baseURL, apiKey string) *PaymentAPI {
	return &PaymentAPI{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type chargeRequest struct {
	PayerAccountId string  `json:"payerAccountId"`
	PayeeAccountId string  `json:"payeeAccountId"`
	Amount         float64 `json:"amount"`
	ApplicationFee float64 `json:"applicationFee"`
}

type chargeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *PaymentAPI) Charge(ctx context.Context, payerAccountId, payeeAccountId string, amount, applicationFee float64) error {
	body, err := json.Marshal(chargeRequest{
		PayerAccountId: payerAccountId,
		PayeeAccountId: payeeAccountId,
		Amount:         amount,
		ApplicationFee: applicationFee,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.DependencyError{Collaborator: "payment", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &domain.DependencyError{
			Collaborator: "payment",
			Err:          fmt.Errorf("charge returned %d", resp.StatusCode),
		}
	}
	var charge chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return &domain.DependencyError{Collaborator: "payment", Err: err}
	}
	if charge.Status != "success" {
		return &domain.DependencyError{
			Collaborator: "payment",
			Err:          fmt.Errorf("charge rejected: %s", charge.Message),
		}
	}
	return nil
}
