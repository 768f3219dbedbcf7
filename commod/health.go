package commod

import (
	"math"

	"github.com/haven-social/haven/commod/countstore"
)

// sub-score weights for the community health formula
const (
	healthWeightActivity   = 0.40
	healthWeightVolume     = 0.30
	healthWeightSentiment  = 0.20
	healthWeightEngagement = 0.10
)

// Computes a community health score in [0,100] from aggregate counters.
// Pure function of the snapshot; sub-scores and the final sum are clamped.
//
// A community with no members and no messages scores zero: there is no
// signal, and the neutral-sentiment term alone should not report a dead
// community as partly healthy.
func HealthScore(snap countstore.CommunitySnapshot) int {
	if snap.MemberCount == 0 && snap.MessageCount == 0 {
		return 0
	}

	members := snap.MemberCount
	if members < 1 {
		members = 1
	}
	activity := math.Min(float64(snap.ActiveMemberCount)/float64(members)*100, 100)
	volume := math.Min(float64(snap.MessageCount)/100*100, 100)
	sentiment := (snap.SentimentScore + 1) * 50
	engagement := math.Min(snap.EngagementRate*10, 100)

	score := int(math.Round(healthWeightActivity*activity +
		healthWeightVolume*volume +
		healthWeightSentiment*sentiment +
		healthWeightEngagement*engagement))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
