package commod

import (
	"log/slog"
	"time"

	"github.com/haven-social/haven/commod/cachestore"
	"github.com/haven-social/haven/commod/contentstore"
	"github.com/haven-social/haven/commod/countstore"
	"github.com/haven-social/haven/commod/oracle"
	"github.com/haven-social/haven/commod/queuestore"
	"github.com/haven-social/haven/commod/rulestore"
)

// Engine backed entirely by in-process stores and a fixed-response oracle.
// Intentionally exported, for use in other packages' tests.
func EngineTestFixture() Engine {
	return Engine{
		Logger:   slog.Default(),
		Rules:    rulestore.NewMemRuleStore(),
		Queue:    queuestore.NewMemQueueStore(),
		Counters: countstore.NewMemCountStore(),
		Oracle: &oracle.MockOracle{
			Response: oracle.ContentScore{
				Sentiment:  0.1,
				Toxicity:   0.1,
				Spam:       0.1,
				Confidence: 0.9,
			},
		},
		Scores:             cachestore.NewMemScoreCache(1000, time.Hour),
		Content:            contentstore.NewMemContentStore(),
		AutomationHandlers: DefaultAutomationHandlers(),
	}
}
