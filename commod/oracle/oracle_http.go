package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/haven-social/haven/util"
)

// Client for an HTTP content-analysis provider. Requests are rate-limited
// and bounded by a per-call timeout so a slow provider can never stall
// ingestion.
type HTTPOracle struct {
	Host     string
	ApiToken string
	Client   *http.Client
	Limiter  *rate.Limiter
	Timeout  time.Duration
}

var _ Oracle = (*HTTPOracle)(nil)

func NewHTTPOracle(host, token string, reqPerSec int) *HTTPOracle {
	return &HTTPOracle{
		Host:     host,
		ApiToken: token,
		Client:   util.RobustHTTPClient(),
		Limiter:  rate.NewLimiter(rate.Limit(reqPerSec), 1),
		Timeout:  500 * time.Millisecond,
	}
}

type scoreRequest struct {
	Text string `json:"text"`
}

func (o *HTTPOracle) ScoreText(ctx context.Context, text string) (*ContentScore, error) {
	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	if err := o.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("oracle request limiter: %w", err)
	}

	body, err := json.Marshal(scoreRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", o.Host+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.ApiToken != "" {
		req.Header.Set("Authorization", "Bearer "+o.ApiToken)
	}

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("oracle request failed: statusCode=%d", resp.StatusCode)
	}

	var score ContentScore
	if err := json.NewDecoder(resp.Body).Decode(&score); err != nil {
		return nil, fmt.Errorf("failed to parse oracle response: %w", err)
	}
	return &score, nil
}
