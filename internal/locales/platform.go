package locales

import "strings"

// supportedPlatforms is the closed set of platform names accepted in
// scheduler configuration. Variants are allowed on input; they are
// normalized to the tokens locale list files use before filtering.
var supportedPlatforms = map[string]struct{}{
	"linux":    {},
	"linux64":  {},
	"win32":    {},
	"win64":    {},
	"macosx":   {},
	"macosx64": {},
	"osx":      {},
	"osx64":    {},
}

// SupportedPlatform reports whether platform is in the recognized set.
func SupportedPlatform(platform string) bool {
	_, ok := supportedPlatforms[platform]
	return ok
}

// SupportedPlatforms returns the recognized platform names, sorted.
func SupportedPlatforms() []string {
	return NewPlatformSet(
		"linux", "linux64", "win32", "win64",
		"macosx", "macosx64", "osx", "osx64",
	).Sorted()
}

// NormalizePlatform converts a configured platform name to the form locale
// list files use: any "macosx*" variant becomes "osx" and any "linux*"
// variant becomes "linux"; everything else passes through unchanged.
func NormalizePlatform(platform string) string {
	switch {
	case strings.HasPrefix(platform, "macosx"):
		return "osx"
	case strings.HasPrefix(platform, "linux"):
		return "linux"
	default:
		return platform
	}
}
