package storagefile

const (
	oneKB = 1024

	// PageSize is the fixed block size shared between the storage manager and
	// the buffer pool, similar to PostgreSQL's 8KB page.
	PageSize = 8 * oneKB

	// SegmentSize bounds how many pages live in a single underlying file
	// before the storage manager rolls over to the next segment.
	// 1 GiB / 8 KiB = 131072 pages per segment.
	SegmentSize = 1 << 30

	FileMode0664 = 0o664
	DirMode0755  = 0o755
)

func pagesPerSegment() uint32 {
	return SegmentSize / PageSize
}
