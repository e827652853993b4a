package filesystem

// DiskUsage represents disk usage statistics for the download volume
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// DiskUsage returns usage for the volume holding the download directory.
// Platform-specific implementation in diskusage_unix.go and diskusage_windows.go
