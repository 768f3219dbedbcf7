package countstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemCountStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemCountStore()

	neg := -0.5
	pos := 0.9
	require.NoError(t, s.RecordMessage(ctx, "general", "alice", "m1", &neg))
	require.NoError(t, s.RecordMessage(ctx, "general", "bob", "m2", &pos))
	require.NoError(t, s.RecordMessage(ctx, "general", "alice", "m3", nil))
	require.NoError(t, s.SetMemberCount(ctx, "general", 10))
	require.NoError(t, s.SetEngagementRate(ctx, "general", 3.5))
	require.NoError(t, s.SetHealthScore(ctx, "general", 42))

	snap, err := s.Get(ctx, "general")
	require.NoError(t, err)
	assert.Equal(int64(3), snap.MessageCount)
	assert.Equal(int64(2), snap.ActiveMemberCount)
	assert.Equal(int64(10), snap.MemberCount)
	// unsentimented messages do not drag the rolling mean
	assert.InDelta(0.2, snap.SentimentScore, 0.001)
	assert.InDelta(3.5, snap.EngagementRate, 0.001)
	assert.Equal(42, snap.HealthScore)

	// unknown community reads as all zeros, never an error
	empty, err := s.Get(ctx, "nowhere")
	require.NoError(t, err)
	assert.Equal(int64(0), empty.MessageCount)

	communities, err := s.ListCommunities(ctx)
	require.NoError(t, err)
	assert.Contains(communities, "general")
}

func TestMemCountStoreRedeliveryDedupe(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemCountStore()

	val := 0.4
	require.NoError(t, s.RecordMessage(ctx, "general", "alice", "m1", &val))
	// same message ID again: at-least-once redelivery must not double-count
	require.NoError(t, s.RecordMessage(ctx, "general", "alice", "m1", &val))

	snap, err := s.Get(ctx, "general")
	require.NoError(t, err)
	assert.Equal(int64(1), snap.MessageCount)
	assert.InDelta(0.4, snap.SentimentScore, 0.001)
}

func TestMemCountStoreConcurrentIncrements(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemCountStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			val := 0.5
			_ = s.RecordMessage(ctx, "busy", "author", fmt.Sprintf("busy-%d", i), &val)
			_ = s.RecordMessage(ctx, "other", "author", fmt.Sprintf("other-%d", i), nil)
		}(i)
	}
	wg.Wait()

	snap, err := s.Get(ctx, "busy")
	require.NoError(t, err)
	assert.Equal(int64(50), snap.MessageCount)
	assert.InDelta(0.5, snap.SentimentScore, 0.001)

	other, err := s.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(int64(50), other.MessageCount)
}
