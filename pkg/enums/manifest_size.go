package enums

import "fmt"

// ManifestSize buckets a manifest item for courier capacity planning.
type ManifestSize string

const (
	ManifestSizeSmall  ManifestSize = "small"
	ManifestSizeMedium ManifestSize = "medium"
	ManifestSizeBig    ManifestSize = "big"
)

var validManifestSizes = []ManifestSize{
	ManifestSizeSmall,
	ManifestSizeMedium,
	ManifestSizeBig,
}

// String implements fmt.Stringer.
func (m ManifestSize) String() string {
	return string(m)
}

// IsValid reports whether the value is a known ManifestSize.
func (m ManifestSize) IsValid() bool {
	for _, candidate := range validManifestSizes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseManifestSize converts raw input into a ManifestSize.
func ParseManifestSize(value string) (ManifestSize, error) {
	for _, candidate := range validManifestSizes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid manifest size %q", value)
}
