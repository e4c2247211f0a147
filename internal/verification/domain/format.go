package domain

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Endpoints resolves the verification API URL for a network
type Endpoints struct {
	// Main is used for the "main" network
	Main string
	// Template is used for every other network; {network} is replaced by the name
	Template string
}

// For returns the endpoint for a normalized network name
func (e Endpoints) For(network string) string {
	if network == "main" {
		return e.Main
	}
	return strings.ReplaceAll(e.Template, "{network}", network)
}

// NormalizeNetwork lowercases the network name reported by the host. Some hosts report
// Görli with its umlaut, which the service does not know.
func NormalizeNetwork(name string) string {
	name = strings.ToLower(name)
	if name == "görli" {
		return "goerli"
	}
	return name
}

// CompilerVersion formats a solc version string for the verification service.
//
//	0.8.20+commit.a1b33c52  -> v0.8.20+commit.a1b33c52
//	v0.4.26+commit.4a2a4df8 -> v0.4.26+release
//
// The service only knows 0.4.x and 0.5.0 builds by their release name.
func CompilerVersion(version string) string {
	core, commit, found := strings.Cut(strings.TrimSpace(version), "+commit.")
	core = strings.TrimPrefix(core, "v")

	if releaseOnly(core) {
		return "v" + core + "+release"
	}
	if !found {
		return "v" + core
	}
	return "v" + core + "+commit." + commit
}

func releaseOnly(core string) bool {
	v := "v" + core
	if !semver.IsValid(v) {
		return strings.HasPrefix(core, "0.4.") || core == "0.5.0"
	}
	return semver.MajorMinor(v) == "v0.4" || v == "v0.5.0"
}

// MaskAPIKey hides all but the first 8 and last 4 characters of key. Keys too short
// to keep anything hidden are masked entirely.
func MaskAPIKey(key string) string {
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}
