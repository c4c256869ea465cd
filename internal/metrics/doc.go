// Package metrics exposes session progress counters.
//
// Components take a Recorder and default to NoopRecorder, so nothing needs a
// nil check. When metrics are enabled the CLI injects a PrometheusRecorder and
// serves its registry through Handler.
package metrics
