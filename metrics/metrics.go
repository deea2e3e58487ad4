package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

const (
	MetricsNamespace = "orchestrator"
)

var (
	Debug                bool = true
	validResults              = []types.Status{types.StatusPass, types.StatusSkip, types.StatusKTF, types.StatusFail}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_total",
		Help:      "Count of finished test and scenario rows",
	}, []string{
		"suite",
		"run_id",
		"importance",
		"result",
	})

	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "units_total",
		Help:      "Count of finished unit and step rows",
	}, []string{
		"suite",
		"run_id",
		"result",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of test and scenario rows",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{
		"suite",
	})

	hookErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "hook_errors_total",
		Help:      "Count of lifecycle hook errors",
	}, []string{
		"suite",
		"phase",
	})

	suiteResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_results",
		Help:      "Result of suites",
	}, []string{
		"suite",
		"run_id",
		"result",
	})

	suiteTests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_tests",
		Help:      "Number of test rows of a suite by result",
	}, []string{
		"suite",
		"run_id",
		"result",
	})

	suiteDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_duration_seconds",
		Help:      "Duration of suites",
	}, []string{
		"suite",
		"run_id",
	})

	runningSuites = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "running_suites",
		Help:      "Number of suites currently running",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

func RecordTest(suite string, runID string, importance types.Importance, result types.Status, duration time.Duration) {
	if !isValidResult(result) {
		log.Error("RecordTest - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "tests_total",
			"suite", suite,
			"run_id", runID,
			"importance", importance,
			"result", result)
	}
	testsTotal.WithLabelValues(suite, runID, importance.String(), result.String()).Inc()
	testDuration.WithLabelValues(suite).Observe(duration.Seconds())
}

func RecordUnit(suite string, runID string, result types.Status) {
	if !isValidResult(result) {
		log.Error("RecordUnit - invalid result", "result", result)
		return
	}
	unitsTotal.WithLabelValues(suite, runID, result.String()).Inc()
}

func RecordHookError(suite string, phase types.HookPhase) {
	hookErrorsTotal.WithLabelValues(suite, string(phase)).Inc()
}

func RecordSuiteStarted() {
	runningSuites.Inc()
}

func RecordSuite(result types.SuiteResult) {
	runningSuites.Dec()
	suiteResults.WithLabelValues(result.Name, result.RunID, result.Status.String()).Set(1)
	for _, status := range validResults {
		suiteTests.WithLabelValues(result.Name, result.RunID, status.String()).Set(float64(result.Tests.Count(status)))
	}
	suiteDuration.WithLabelValues(result.Name, result.RunID).Set(result.Duration().Seconds())
}

func isValidResult(result types.Status) bool {
	return slices.Contains(validResults, result)
}
