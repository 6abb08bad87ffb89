package utils

import (
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// CanRead reports whether the current process may read path
func CanRead(path string) bool {
	return unix.Access(path, unix.R_OK) == nil
}

// CanWriteFile reports whether a file may be created at path,
// i.e. whether its parent directory is writable
func CanWriteFile(path string) bool {
	return unix.Access(filepath.Dir(path), unix.W_OK|unix.X_OK) == nil
}

// FormatValue renders a cell the way the summary table expects it:
// whole floats keep one decimal, booleans are TRUE/FALSE, nil is empty
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == math.Trunc(val) && !math.IsInf(val, 0) {
			return strconv.FormatFloat(val, 'f', 1, 64)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", val)
	}
}
