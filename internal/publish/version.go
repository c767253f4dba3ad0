package publish

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidVersion = errors.New("version must be MAJOR.MINOR.PATCH")
	ErrUnknownBump    = errors.New("bump must be one of major, minor, patch")
)

// Version is a parsed semantic version. Any pre-release or build suffix on
// the patch segment is dropped.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseVersion parses `[v]MAJOR.MINOR.PATCH[-suffix|+suffix]`.
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "v")
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
	}
	if i := strings.IndexAny(parts[2], "-+"); i >= 0 {
		parts[2] = parts[2][:i]
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || strings.HasPrefix(p, "+") {
			return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, s)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// Bump returns version incremented by kind ("major", "minor" or "patch").
func Bump(version, kind string) (string, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(kind) {
	case "major":
		v = Version{Major: v.Major + 1}
	case "minor":
		v = Version{Major: v.Major, Minor: v.Minor + 1}
	case "patch":
		v.Patch++
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBump, kind)
	}
	return v.String(), nil
}
