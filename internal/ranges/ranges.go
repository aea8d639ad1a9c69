// Package ranges resolves HTTP Range headers against a resource size.
//
// Only the "bytes" unit is understood. A header with several sub-ranges is
// collapsed into the single tightest interval covering all satisfiable ones,
// so callers never need to produce multipart/byteranges responses. Malformed
// sub-ranges are skipped as long as at least one element is usable.
package ranges

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/jukebox/internal/shared"
)

// ErrUnsatisfiable is returned for malformed headers and for headers
// where no sub-range intersects the resource.
var ErrUnsatisfiable = shared.ErrRangeNotSatisfiable

// Plan is the byte window to serve. Start and End are inclusive.
type Plan struct {
	Partial bool
	Start   int64
	End     int64
	Size    int64
}

// Length is the number of bytes in the window.
func (p Plan) Length() int64 {
	return p.End - p.Start + 1
}

// ContentRange formats the Content-Range header value for a partial plan.
func (p Plan) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", p.Start, p.End, p.Size)
}

// UnsatisfiedRange formats the Content-Range header sent with a 416.
func UnsatisfiedRange(size int64) string {
	return fmt.Sprintf("bytes */%d", size)
}

// Resolve turns a Range header value into a [Plan] for a resource of size bytes.
//
// An empty header selects the whole resource. Each sub-range is clamped to the
// resource; malformed sub-ranges and those starting past the end are dropped.
// When nothing is left, or the unit is not bytes, ErrUnsatisfiable is returned.
func Resolve(size int64, header string) (Plan, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Plan{Start: 0, End: size - 1, Size: size}, nil
	}

	unit, set, ok := strings.Cut(header, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(unit), "bytes") {
		return Plan{}, fmt.Errorf("%w: unsupported range unit", ErrUnsatisfiable)
	}

	plan := Plan{Partial: true, Start: -1, End: -1, Size: size}
	found := false
	var skipped error

	for _, spec := range strings.Split(set, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		start, end, err := parseSpec(spec, size)
		if err != nil {
			skipped = err
			continue
		}
		if start < 0 {
			continue
		}

		if !found || start < plan.Start {
			plan.Start = start
		}
		if !found || end > plan.End {
			plan.End = end
		}
		found = true
	}

	if !found {
		if skipped != nil {
			return Plan{}, skipped
		}
		return Plan{}, fmt.Errorf("%w: no range overlaps %d bytes", ErrUnsatisfiable, size)
	}
	return plan, nil
}

// parseSpec parses one "first-last", "first-" or "-suffix" element.
// A start of -1 with a nil error means the element is valid but does not overlap the resource.
func parseSpec(spec string, size int64) (start, end int64, err error) {
	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: malformed range %q", ErrUnsatisfiable, spec)
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		suffix, err := parseOffset(last)
		if err != nil {
			return 0, 0, err
		}
		if suffix == 0 || size == 0 {
			return -1, -1, nil
		}
		if suffix > size {
			suffix = size
		}
		return size - suffix, size - 1, nil
	}

	start, err = parseOffset(first)
	if err != nil {
		return 0, 0, err
	}

	end = size - 1
	if last != "" {
		if end, err = parseOffset(last); err != nil {
			return 0, 0, err
		}
		if end < start {
			return 0, 0, fmt.Errorf("%w: range end before start in %q", ErrUnsatisfiable, spec)
		}
	}

	if start >= size {
		return -1, -1, nil
	}
	if end >= size {
		end = size - 1
	}
	return start, end, nil
}

func parseOffset(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: empty offset", ErrUnsatisfiable)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: invalid offset %q", ErrUnsatisfiable, s)
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid offset %q", ErrUnsatisfiable, s)
	}
	return n, nil
}
