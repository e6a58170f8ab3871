package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls on missing remote resources",
		RequiredTags: []string{"tool"},
	}

	StatsQarnotAPIErrors = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_qarnot_api_errors",
		Help:         "stats_qarnot_api_errors provides total failed Qarnot API requests",
		RequiredTags: []string{"method"},
	}
)

// Perf
var (
	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}

	PerfQarnotAPIRequest = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_qarnot_api_request",
		Help:         "perf_qarnot_api_request provides duration of Qarnot API request",
		RequiredTags: []string{"method"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfQarnotAPIRequest,
	&PerfToolCall,
	&StatsQarnotAPIErrors,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
