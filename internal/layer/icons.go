package layer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
)

// PlainIcon is the icon used when clustering is switched off.
const PlainIcon = "marker"

// IconName returns the sprite name for a feature aggregating count points.
// A count of zero or less has no icon.
func IconName(count int) string {
	switch {
	case count <= 0:
		return ""
	case count < 10:
		return "marker-" + strconv.Itoa(count)
	case count < 100:
		return "marker-" + strconv.Itoa(count/10) + "0"
	}
	return "marker-100"
}

// IconSize returns the icon scale factor for count points. It grows from 1
// towards 2 and saturates at 100 points.
func IconSize(count int) float64 {
	return float64(min(max(count, 0), 100))/100 + 1
}

// Icon is one sprite in the icon atlas.
type Icon struct {
	X       int  `json:"x"`
	Y       int  `json:"y"`
	Width   int  `json:"width"`
	Height  int  `json:"height"`
	AnchorY int  `json:"anchorY,omitempty"`
	Mask    bool `json:"mask,omitempty"`
}

// IconMapping maps sprite names to atlas regions.
type IconMapping map[string]Icon

// LoadIconMapping decodes a JSON icon mapping.
func LoadIconMapping(r io.Reader) (IconMapping, error) {
	var m IconMapping
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding icon mapping: %w", err)
	}
	return m, nil
}

// LoadIconMappingFile reads a JSON icon mapping from disk.
func LoadIconMappingFile(path string) (IconMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadIconMapping(f)
}

// ResolveIconMapping loads the mapping at path, or the default layout when
// path is empty, and rejects a mapping that lacks a required icon.
func ResolveIconMapping(path string) (IconMapping, error) {
	if path == "" {
		return DefaultIconMapping(), nil
	}
	m, err := LoadIconMappingFile(path)
	if err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// RequiredIcons lists every name IconName can return plus PlainIcon.
func RequiredIcons() []string {
	names := []string{PlainIcon}
	for i := 1; i < 10; i++ {
		names = append(names, IconName(i))
	}
	for i := 10; i < 100; i += 10 {
		names = append(names, IconName(i))
	}
	return append(names, IconName(100))
}

// Validate checks that every required icon is present.
func (m IconMapping) Validate() error {
	var missing []string
	for _, name := range RequiredIcons() {
		if _, ok := m[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("icon mapping is missing %d icons: %v", len(missing), missing)
	}
	return nil
}

// DefaultIconMapping lays the bucket icons out in one row of 128px cells,
// plain marker first.
func DefaultIconMapping() IconMapping {
	m := make(IconMapping)
	for i, name := range RequiredIcons() {
		m[name] = Icon{X: i * 128, Y: 0, Width: 128, Height: 128, AnchorY: 128}
	}
	return m
}
