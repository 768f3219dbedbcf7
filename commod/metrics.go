package commod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var contentProcessDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "commod_content_process_duration_sec",
	Help: "Total duration of content ingestion processing",
}, []string{"type"})

var contentProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "commod_content_processed",
	Help: "Number of content items processed",
}, []string{"type"})

var contentErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "commod_content_errors",
	Help: "Number of content items which failed processing",
}, []string{"type"})

var violationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "commod_violations",
	Help: "Number of rule violations detected",
}, []string{"rule_type"})

var dispositionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "commod_dispositions",
	Help: "Number of queue item dispositions",
}, []string{"action"})

var autoActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "commod_auto_actions",
	Help: "Number of auto-action executions",
}, []string{"action"})

var oracleErrorCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "commod_oracle_errors",
	Help: "Number of failed or timed-out oracle calls",
})

var ruleConfigSkipCount = promauto.NewCounter(prometheus.CounterOpts{
	Name: "commod_rule_config_skips",
	Help: "Number of rules skipped during evaluation due to bad configuration",
})

var automationExecCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "commod_automation_executions",
	Help: "Number of automation rule executions",
}, []string{"outcome"})
