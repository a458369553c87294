package rpcserver

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

const (
	// we use unknown method label for methods that server does not support because otherwise
	// users can create arbitrary number of metrics
	unknownMethodLabel = "unknown"

	// incremented when user made incorrect request
	incorrectRequestCounter = `tips_rpcserver_incorrect_request_total`

	// incremented when server has a bug (e.g. can't marshal response)
	internalErrorsCounter = `tips_rpcserver_internal_errors_total`

	// incremented when request comes in
	requestCountLabel = `tips_rpcserver_request_count{method="%s"}`
	// incremented when handler method returns JSONRPC error
	errorCountLabel = `tips_rpcserver_error_count{method="%s"}`
	// total duration of the request, in milliseconds
	requestDurationLabel = `tips_rpcserver_request_duration_milliseconds{method="%s"}`
)

func incRequestCount(method string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(requestCountLabel, method)).Inc()
}

func incIncorrectRequest() {
	metrics.GetOrCreateCounter(incorrectRequestCounter).Inc()
}

func incRequestErrorCount(method string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(errorCountLabel, method)).Inc()
}

func incRequestDuration(method string, millis int64) {
	metrics.GetOrCreateSummary(fmt.Sprintf(requestDurationLabel, method)).Update(float64(millis))
}

func incInternalErrors() {
	metrics.GetOrCreateCounter(internalErrorsCounter).Inc()
}
