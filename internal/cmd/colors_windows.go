//go:build windows

package cmd

// getTermWidthIoctl is unavailable on Windows; termWidth falls back to $COLUMNS.
func getTermWidthIoctl() int {
	return 0
}
