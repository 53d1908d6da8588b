package modeladapter

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const apiVersionDateLayout = "2006-01-02"

// APIVersion is a parsed provider API version. Azure OpenAI uses date
// versions with an optional suffix ("2024-12-01-preview"); other providers may
// use dotted numeric versions ("1.2", "v1").
type APIVersion struct {
	raw     string
	date    time.Time
	suffix  string
	numbers []int
}

// ParseAPIVersion parses a date or dotted numeric version string.
func ParseAPIVersion(s string) (APIVersion, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return APIVersion{}, fmt.Errorf("api version: empty")
	}

	if len(s) >= len(apiVersionDateLayout) {
		if d, err := time.Parse(apiVersionDateLayout, s[:len(apiVersionDateLayout)]); err == nil {
			rest := s[len(apiVersionDateLayout):]
			if rest != "" && rest[0] != '-' {
				return APIVersion{}, fmt.Errorf("api version: malformed suffix in %q", s)
			}

			return APIVersion{raw: s, date: d, suffix: strings.TrimPrefix(rest, "-")}, nil
		}
	}

	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	nums := make([]int, 0, len(parts))

	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return APIVersion{}, fmt.Errorf("api version: cannot parse %q", s)
		}

		nums = append(nums, n)
	}

	return APIVersion{raw: s, numbers: nums}, nil
}

// String returns the version as it was written.
func (v APIVersion) String() string { return v.raw }

// IsPreview reports whether a date version carries a suffix such as "preview".
func (v APIVersion) IsPreview() bool { return v.suffix != "" }

func (v APIVersion) isDate() bool { return !v.date.IsZero() }

// Compare returns -1, 0 or +1 when v is older than, equal to, or newer than o.
// Date versions compare by date; on the same date a suffixed (preview) version
// is older than the plain one. Numeric versions compare component-wise with
// missing components treated as zero. Mixing the two forms is an error.
func (v APIVersion) Compare(o APIVersion) (int, error) {
	if v.isDate() != o.isDate() {
		return 0, fmt.Errorf("api version: cannot compare %q with %q", v.raw, o.raw)
	}

	if v.isDate() {
		if c := v.date.Compare(o.date); c != 0 {
			return c, nil
		}

		switch {
		case v.suffix == o.suffix:
			return 0, nil
		case v.suffix == "":
			return 1, nil
		case o.suffix == "":
			return -1, nil
		default:
			return strings.Compare(v.suffix, o.suffix), nil
		}
	}

	for i := range max(len(v.numbers), len(o.numbers)) {
		a, b := at(v.numbers, i), at(o.numbers, i)
		if a != b {
			if a < b {
				return -1, nil
			}

			return 1, nil
		}
	}

	return 0, nil
}

func at(nums []int, i int) int {
	if i < len(nums) {
		return nums[i]
	}

	return 0
}

// CompareAPIVersions parses and compares two version strings.
func CompareAPIVersions(a, b string) (int, error) {
	va, err := ParseAPIVersion(a)
	if err != nil {
		return 0, err
	}

	vb, err := ParseAPIVersion(b)
	if err != nil {
		return 0, err
	}

	return va.Compare(vb)
}
