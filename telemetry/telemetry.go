// Package telemetry exports the spans recorded while navigation scenarios run.
package telemetry

import (
	"time"

	"go.viam.com/utils/perf"
)

// DefaultReportingInterval is how often stats are printed when no interval is given.
const DefaultReportingInterval = time.Second

// SetupTelemetry starts a development exporter that prints spans and stats every interval.
// The caller stops the returned exporter.
func SetupTelemetry(interval time.Duration) (perf.Exporter, error) {
	if interval <= 0 {
		interval = DefaultReportingInterval
	}
	exporter := perf.NewDevelopmentExporterWithOptions(perf.DevelopmentExporterOptions{
		ReportingInterval: interval,
	})
	if err := exporter.Start(); err != nil {
		return nil, err
	}

	return exporter, nil
}
