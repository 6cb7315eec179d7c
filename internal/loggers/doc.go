// Package loggers implements engine.Logger for local files and for a
// tracking service.
//
// CSVLogger writes hparams.yaml and metrics.csv under
// <save_dir>/<name>/version_<n>. TrackingLogger mirrors one tracking run;
// the run is created on first use and closed by Finalize.
package loggers

// Finalize statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusAborted = "aborted"
)
