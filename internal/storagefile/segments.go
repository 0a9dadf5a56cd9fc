package storagefile

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

func osCreateFlags() int {
	return os.O_RDWR | os.O_CREATE
}

// listSegments scans dir for files named base or base.<n> and returns the
// segment numbers found, sorted ascending. Segment 0 is always included if
// base exists.
func listSegments(fs afero.Fs, dir, base string) ([]int32, error) {
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	prefix := base + "."
	segs := make([]int32, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case name == base:
			segs = append(segs, 0)
		case strings.HasPrefix(name, prefix):
			suffix := strings.TrimPrefix(name, prefix)
			n, err := strconv.ParseInt(suffix, 10, 32)
			if err != nil || n <= 0 {
				continue
			}
			segs = append(segs, int32(n))
		}
	}
	sort.Slice(segs, func(i, j int) bool { return segs[i] < segs[j] })
	return segs, nil
}
