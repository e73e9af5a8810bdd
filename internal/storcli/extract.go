package storcli

import (
	"regexp"
	"sort"
	"strings"
)

// kernelPathRe recognizes concrete kernel block-device paths inside
// arbitrary detail strings.
var kernelPathRe = regexp.MustCompile(`/dev/(sd[a-z]+\d*|nvme\d+n\d+(p\d+)?)`)

// serialTokenRe mines serial-looking tokens out of free text. Lowest
// priority by construction: it only runs after every structured field
// strategy came up empty.
var serialTokenRe = regexp.MustCompile(`([Ss][Nn]|Serial)[^A-Za-z0-9]*([A-Za-z0-9]{4,})`)

// osPathKeyFragments are field-name fragments that mark a declared OS path
// in a detail block, across firmware generations.
var osPathKeyFragments = []string{"os drive name", "os path", "drive name"}

// identityExtractor is one strategy over the untyped detail tree. The chain
// below runs in order with first-success semantics.
type identityExtractor func(map[string]any) (serial, model string)

var identityChain = []identityExtractor{
	extractDeclared,
	extractInquiry,
	extractDeviceAttributes,
	extractMinedSerial,
}

// extractIdentity runs the extractor chain over one drive's detail object.
// A later strategy may still fill model when an earlier one recovered only
// the serial.
func extractIdentity(value map[string]any) (string, string) {
	var serial, model string
	for _, extract := range identityChain {
		s, m := extract(value)
		if serial == "" {
			serial = s
		}
		if model == "" {
			model = m
		}
		if serial != "" && model != "" {
			break
		}
	}
	return strings.TrimSpace(serial), strings.TrimSpace(model)
}

// extractDeclared reads the directly declared identity fields.
func extractDeclared(value map[string]any) (string, string) {
	serial := firstString(value, "SN", "S/N", "Serial Number")
	model := firstString(value, "Model", "MODEL", "Model Number")
	return serial, model
}

// extractInquiry reads the Inquiry Data block, which is a sub-object on
// some firmware and a raw text blob on others.
func extractInquiry(value map[string]any) (string, string) {
	inquiry, ok := value["Inquiry Data"]
	if !ok {
		inquiry, ok = value["Inquiry"]
	}
	if !ok {
		return "", ""
	}

	switch iq := inquiry.(type) {
	case map[string]any:
		serial := firstString(iq, "SN", "Serial Number", "SerialNumber")
		model := firstString(iq, "Model", "MODEL", "Model Number")
		return serial, model
	case string:
		if m := serialTokenRe.FindStringSubmatch(iq); m != nil {
			return m[2], ""
		}
	}
	return "", ""
}

// extractDeviceAttributes searches for a nested sub-block whose key carries
// the "Device attributes" fragment (the key prefix varies per firmware).
func extractDeviceAttributes(value map[string]any) (string, string) {
	for _, key := range sortedKeys(value) {
		nested, ok := value[key].(map[string]any)
		if !ok || !strings.Contains(key, "Device attributes") {
			continue
		}
		serial := firstString(nested, "SN", "Serial Number", "S/N")
		model := firstString(nested, "Model", "MODEL", "Model Number")
		if serial != "" || model != "" {
			return serial, model
		}
	}
	return "", ""
}

// extractMinedSerial regex-scans every string in the subtree, two levels
// deep, for a serial-looking token. Deterministic via sorted key order.
func extractMinedSerial(value map[string]any) (string, string) {
	for _, key := range sortedKeys(value) {
		switch nested := value[key].(type) {
		case string:
			if m := serialTokenRe.FindStringSubmatch(nested); m != nil {
				return m[2], ""
			}
		case map[string]any:
			for _, innerKey := range sortedKeys(nested) {
				if s, ok := nested[innerKey].(string); ok {
					if m := serialTokenRe.FindStringSubmatch(s); m != nil {
						return m[2], ""
					}
				}
			}
		}
	}
	return "", ""
}

// findOSPathHint recursively scans a detail subtree for a declared OS path
// field or, failing that, any string shaped like a kernel device path.
func findOSPathHint(value any) string {
	if declared := findDeclaredOSPath(value); declared != "" {
		return declared
	}
	return findKernelShapedString(value)
}

func findDeclaredOSPath(value any) string {
	m, ok := value.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range sortedKeys(m) {
		lower := strings.ToLower(key)
		for _, fragment := range osPathKeyFragments {
			if !strings.Contains(lower, fragment) {
				continue
			}
			if s, ok := m[key].(string); ok && strings.HasPrefix(s, "/dev/") {
				return strings.TrimSpace(s)
			}
		}
	}
	for _, key := range sortedKeys(m) {
		if found := findDeclaredOSPath(m[key]); found != "" {
			return found
		}
	}
	return ""
}

func findKernelShapedString(value any) string {
	switch v := value.(type) {
	case string:
		return kernelPathRe.FindString(v)
	case map[string]any:
		for _, key := range sortedKeys(v) {
			if found := findKernelShapedString(v[key]); found != "" {
				return found
			}
		}
	case []any:
		for _, item := range v {
			if found := findKernelShapedString(item); found != "" {
				return found
			}
		}
	}
	return ""
}

// sortedKeys keeps map traversal deterministic so repeated extraction over
// the same payload yields the same result.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
