package obs

/*------------------------------------------------------------------
 *
 * Purpose:	Timestamped log file naming for nodes that want their
 *		structured log persisted to disk instead of (or alongside)
 *		the console.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"
)

// DefaultPattern names one log file per day.
const DefaultPattern = "acoustilink-%Y%m%d.log"

// OpenTimestamped opens (creating and appending as needed) a log file
// under dir, named by evaluating pattern at the given time. Passing ""
// for pattern uses DefaultPattern.
func OpenTimestamped(dir string, pattern string, at time.Time) (*os.File, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	f, err := strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("obs: bad log file pattern %q: %w", pattern, err)
	}
	path := filepath.Join(dir, f.FormatString(at))

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("obs: open log file %s: %w", path, err)
	}
	return file, nil
}
