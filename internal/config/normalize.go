// internal/config/normalize.go
package config

// channelCount is fixed by the device: X, Y, Z.
const channelCount = 3

// bufferCapLimit bounds the upload staging buffer regardless of the
// configured interval (raw values, ~240 MB of float64).
const bufferCapLimit = 10_000_000

// Normalize applies defaults and derives runtime thresholds.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	d := &cfg.DAQ

	// ------------------------------------------------------------
	// DEFAULTS
	// ------------------------------------------------------------

	if d.Device.TimeoutMs == 0 {
		d.Device.TimeoutMs = 1000
	}
	if d.Device.SlaveID == 0 {
		d.Device.SlaveID = 1
	}
	if d.Upload.Host == "" {
		d.Upload.Host = "localhost"
	}
	if d.Upload.Port == 0 {
		d.Upload.Port = 3306
	}
	if d.Upload.Database == "" {
		d.Upload.Database = "prowavedaq"
	}
	if d.Upload.IntervalSeconds == 0 {
		// Upload cadence follows the record cadence unless set.
		d.Upload.IntervalSeconds = d.Record.Seconds
	}
	if d.Display.QueueDepth == 0 {
		d.Display.QueueDepth = 64
	}
	if d.Record.Label == "" {
		d.Record.Label = "capture"
	}

	// ------------------------------------------------------------
	// DERIVED THRESHOLDS (raw-value units)
	// ------------------------------------------------------------

	perSecond := d.Device.SampleRate * channelCount

	d.Record.Target = d.Record.Seconds * perSecond
	d.Upload.Target = d.Upload.IntervalSeconds * perSecond

	d.Upload.BufferCap = 2 * d.Upload.Target
	if d.Upload.BufferCap > bufferCapLimit {
		d.Upload.BufferCap = bufferCapLimit
	}
}
