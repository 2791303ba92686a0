package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shobande-femi/OrderBook/logging"
)

// HTTPTransferService posts each payment leg to an external payments API
type HTTPTransferService struct {
	endpoint string
	client   *http.Client
}

func NewHTTPTransferService(endpoint string) *HTTPTransferService {
	return &HTTPTransferService{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *HTTPTransferService) Transfer(ctx context.Context, leg PaymentLeg) error {
	body, err := json.Marshal(leg)
	if err != nil {
		return fmt.Errorf("failed to encode payment leg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("transfer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("transfer service returned status %d", resp.StatusCode)
	}

	return nil
}

// LoggingTransferService records each leg in the structured log instead of
// calling out. Used when no transfer endpoint is configured.
type LoggingTransferService struct{}

func NewLoggingTransferService() *LoggingTransferService {
	return &LoggingTransferService{}
}

func (s *LoggingTransferService) Transfer(_ context.Context, leg PaymentLeg) error {
	logging.LogWithFields(logrus.InfoLevel, "Payment leg", logrus.Fields{
		"event":     "payment_leg",
		"sender":    leg.Sender,
		"recipient": leg.Recipient,
		"currency":  leg.Currency,
		"quantity":  leg.Quantity.String(),
	})
	return nil
}
