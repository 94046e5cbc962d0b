package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mastercactapus/odorrig/rail"
)

// Layout places recordings under a directory named for the experiment date:
//
//	<root>/odor_<n>/locust_<m>/locust_<m>_trial_<t>.mp4
//
// with n, m and t counted from 1.
type Layout struct {
	Root string
}

// DatedLayout returns a Layout rooted at base/MMDDYYYY.
func DatedLayout(base string, now time.Time) Layout {
	return Layout{Root: filepath.Join(base, now.Format("01022006"))}
}

// Path returns the file for one locust's recording. odor and trial are 0-based,
// locust is the 1-based locust number.
func (l Layout) Path(odor, trial, locust int) string {
	name := fmt.Sprintf("locust_%d", locust)
	return filepath.Join(l.Root, fmt.Sprintf("odor_%d", odor+1), name, fmt.Sprintf("%s_trial_%d.mp4", name, trial+1))
}

// PairPaths returns the left and right camera files for a pair and creates
// their directories.
func (l Layout) PairPaths(odor, trial, pair int) (left, right string, err error) {
	left = l.Path(odor, trial, rail.LeftLocust(pair))
	right = l.Path(odor, trial, rail.RightLocust(pair))
	for _, p := range []string{left, right} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return "", "", err
		}
	}
	return left, right, nil
}
