package sitemap

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrOutputMismatch is returned by Check when the file on disk differs from
// the freshly computed sitemap.
var ErrOutputMismatch = errors.New("sitemap is out of date")

// MismatchError carries the line diff of a failed check.
type MismatchError struct {
	// Path is the file that was checked.
	Path string

	// Diff lists the lines prefixed with "  ", "- " (only on disk) or
	// "+ " (only in the computed sitemap).
	Diff []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, ErrOutputMismatch)
}

func (e *MismatchError) Unwrap() error {
	return ErrOutputMismatch
}

// Check compares the file at path byte for byte with computed.
func Check(path, computed string) error {
	existing, err := os.ReadFile(path) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path %s does not exist", path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if string(existing) == computed {
		return nil
	}
	return &MismatchError{Path: path, Diff: Diff(string(existing), computed)}
}

// Diff returns a line diff turning a into b, based on the longest common
// subsequence of lines.
func Diff(a, b string) []string {
	x := strings.Split(a, "\n")
	y := strings.Split(b, "\n")

	// lcs[i][j] is the LCS length of x[i:] and y[j:].
	lcs := make([][]int, len(x)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(y)+1)
	}
	for i := len(x) - 1; i >= 0; i-- {
		for j := len(y) - 1; j >= 0; j-- {
			if x[i] == y[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}

	diff := make([]string, 0, len(x)+len(y))
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		switch {
		case x[i] == y[j]:
			diff = append(diff, "  "+x[i])
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			diff = append(diff, "- "+x[i])
			i++
		default:
			diff = append(diff, "+ "+y[j])
			j++
		}
	}
	for ; i < len(x); i++ {
		diff = append(diff, "- "+x[i])
	}
	for ; j < len(y); j++ {
		diff = append(diff, "+ "+y[j])
	}
	return diff
}
