package commod

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/haven-social/haven/commod/oracle"
	"github.com/haven-social/haven/commod/rulestore"
)

// Evaluates one content item against a rule set. Rules are independent: a
// bad rule never aborts evaluation of the others, and order does not affect
// the violation set. Within a single rule, condition checking stops at the
// first satisfied condition.
//
// Returns the violations plus the oracle scores, if any were fetched (used
// by the caller to fold sentiment into community counters).
func (eng *Engine) evaluateContent(ctx context.Context, logger *slog.Logger, item ContentItem, rules []rulestore.ModerationRule) ([]Violation, *oracle.ContentScore) {
	var violations []Violation

	// at most one oracle call per content item, shared across all
	// score-based rules; a failure degrades those rules to "no match"
	var scores *oracle.ContentScore
	oracleTried := false
	getScores := func() *oracle.ContentScore {
		if oracleTried {
			return scores
		}
		oracleTried = true
		scores = eng.fetchScores(ctx, logger, item)
		return scores
	}

	for i := range rules {
		rule := &rules[i]
		v, err := eng.evaluateRule(logger, item, rule, getScores)
		if err != nil {
			// configuration errors are internal: skip the rule, keep going
			logger.Warn("skipping misconfigured rule", "err", err, "ruleID", rule.ID, "ruleType", rule.Type)
			ruleConfigSkipCount.Inc()
			continue
		}
		if v != nil {
			violationCount.WithLabelValues(string(rule.Type)).Inc()
			violations = append(violations, *v)
		}
	}
	return violations, scores
}

func (eng *Engine) evaluateRule(logger *slog.Logger, item ContentItem, rule *rulestore.ModerationRule, getScores func() *oracle.ContentScore) (*Violation, error) {
	switch rule.Type {
	case rulestore.RuleTypeKeyword:
		if rule.Conditions.Keyword == nil {
			return nil, fmt.Errorf("%w: keyword rule missing keyword conditions", rulestore.ErrInvalidRule)
		}
		lowered := strings.ToLower(item.Text)
		for _, kw := range rule.Conditions.Keyword.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(lowered, strings.ToLower(kw)) {
				return matchViolation(rule, fmt.Sprintf("matched keyword %q (rule: %s)", kw, rule.Name), 1.0, false), nil
			}
		}
		return nil, nil

	case rulestore.RuleTypeRegex:
		re, err := rule.CompilePattern()
		if err != nil {
			return nil, fmt.Errorf("%w: bad regex pattern: %v", rulestore.ErrInvalidRule, err)
		}
		if re.MatchString(item.Text) {
			return matchViolation(rule, fmt.Sprintf("matched pattern (rule: %s)", rule.Name), 1.0, false), nil
		}
		return nil, nil

	case rulestore.RuleTypeSentiment, rulestore.RuleTypeToxicity, rulestore.RuleTypeSpam:
		cond := rule.Conditions.Score
		if cond == nil {
			return nil, fmt.Errorf("%w: %s rule missing score conditions", rulestore.ErrInvalidRule, rule.Type)
		}
		s := getScores()
		if s == nil {
			// oracle unavailable: fail open
			return nil, nil
		}
		var score float64
		switch rule.Type {
		case rulestore.RuleTypeSentiment:
			score = s.Sentiment
		case rulestore.RuleTypeToxicity:
			score = s.Toxicity
		case rulestore.RuleTypeSpam:
			score = s.Spam
		}
		matched := false
		switch cond.Comparator {
		case rulestore.ComparatorGTE:
			matched = score >= cond.Threshold
		case rulestore.ComparatorLTE:
			matched = score <= cond.Threshold
		default:
			return nil, fmt.Errorf("%w: unknown comparator: %s", rulestore.ErrInvalidRule, cond.Comparator)
		}
		if matched {
			reason := fmt.Sprintf("%s score %.2f %s threshold %.2f (rule: %s)", rule.Type, score, cond.Comparator, cond.Threshold, rule.Name)
			return matchViolation(rule, reason, score, true), nil
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: unknown rule type: %s", rulestore.ErrInvalidRule, rule.Type)
	}
}

func matchViolation(rule *rulestore.ModerationRule, reason string, confidence float64, scoreBased bool) *Violation {
	return &Violation{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Reason:     reason,
		Confidence: confidence,
		ScoreBased: scoreBased,
		Priority:   rule.Severity,
		AutoAction: rule.Actions.AutoAction,
	}
}

// Fetches oracle scores for a content item, consulting the score cache
// first. Returns nil on any oracle failure (the caller fails open).
func (eng *Engine) fetchScores(ctx context.Context, logger *slog.Logger, item ContentItem) *oracle.ContentScore {
	if eng.Scores != nil {
		cached, err := eng.Scores.Get(ctx, item.ID)
		if err != nil {
			logger.Warn("score cache read failed", "err", err)
		} else if cached != nil {
			return cached
		}
	}
	if eng.Oracle == nil {
		return nil
	}

	scores, err := eng.Oracle.ScoreText(ctx, item.Text)
	if err != nil {
		logger.Warn("oracle unavailable, failing open", "err", fmt.Errorf("%w: %v", ErrOracleUnavailable, err))
		oracleErrorCount.Inc()
		return nil
	}
	if eng.Scores != nil {
		if err := eng.Scores.Set(ctx, item.ID, scores); err != nil {
			logger.Warn("score cache write failed", "err", err)
		}
	}
	return scores
}
