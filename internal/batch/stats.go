package batch

// ProcessStats contains statistics from a batch processing operation.
type ProcessStats struct {
	// Processed is the number of entries successfully written to the sink.
	Processed int

	// Skipped is the number of entries skipped (ShouldProcess returned false).
	Skipped int

	// Fallbacks is the number of entries written as stored because they
	// did not decompress.
	Fallbacks int

	// BytesTotal is the sum of CompressedSize for all entries to process.
	BytesTotal uint64

	// BytesDone is the sum of CompressedSize for all processed entries.
	BytesDone uint64
}
