package activity

// SetExportLimit lowers the export cap for tests and returns a func restoring it.
func SetExportLimit(n int64) func() {
	prev := exportLimit
	exportLimit = n
	return func() { exportLimit = prev }
}
