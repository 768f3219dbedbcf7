package oracle

import (
	"context"
	"sync/atomic"
)

// Fixed-response oracle for tests and local development.
type MockOracle struct {
	Response ContentScore
	Err      error

	calls atomic.Int64
}

var _ Oracle = (*MockOracle)(nil)

func (o *MockOracle) ScoreText(ctx context.Context, text string) (*ContentScore, error) {
	o.calls.Add(1)
	if o.Err != nil {
		return nil, o.Err
	}
	resp := o.Response
	return &resp, nil
}

func (o *MockOracle) Calls() int64 {
	return o.calls.Load()
}
