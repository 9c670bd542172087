// Package urlutil embeds provider credentials into HTTPS clone URLs,
// sanitizes repository names into filesystem-safe directory names, and
// redacts secrets from diagnostic output.
//
// Grounded on the teacher's URL-credential-injection approach (parse URL,
// set userinfo, reserialize) and its masked-URL reconstruction for logging,
// generalized to this engine's own per-provider credential formats.
package urlutil

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Provider kind strings, matching the values stored in ProviderProfile.Kind.
const (
	KindAzureDevOps = "azuredevops"
	KindGitHub      = "github"
	KindBitbucket   = "bitbucket"
	KindGitLab      = "gitlab"
	KindGitea       = "gitea"
)

// EmbedCredential returns cloneURL with credentials embedded in the userinfo
// component, formatted per provider kind. SSH URLs pass through unchanged.
func EmbedCredential(cloneURL, kind, user, secret string) (string, error) {
	if isSSH(cloneURL) {
		return cloneURL, nil
	}

	u, err := url.Parse(cloneURL)
	if err != nil {
		return "", fmt.Errorf("urlutil: parse clone URL: %w", err)
	}

	switch kind {
	case KindAzureDevOps:
		// PAT carried as the user field; password left empty.
		u.User = url.User(secret)
	case KindGitHub:
		u.User = url.User(secret)
	case KindBitbucket:
		u.User = url.UserPassword(user, secret)
	case KindGitLab:
		u.User = url.UserPassword("oauth2", secret)
	case KindGitea:
		u.User = url.User(secret)
	default:
		return "", fmt.Errorf("urlutil: unknown provider kind %q", kind)
	}

	return u.String(), nil
}

func isSSH(raw string) bool {
	return strings.HasPrefix(raw, "ssh://") || sshShorthand.MatchString(raw)
}

var sshShorthand = regexp.MustCompile(`^[\w.-]+@[\w.-]+:`)

// nonFilenameChars matches runs of characters unsafe in a directory name.
var nonFilenameChars = regexp.MustCompile(`[/\\:*?"<>|]+`)

var collapseDashes = regexp.MustCompile(`-{2,}`)

// SanitizeRepoName produces a filesystem-safe directory name from a
// repository name or clone URL. If given a URL, the final path segment is
// extracted first and a trailing ".git" stripped.
func SanitizeRepoName(name string) (string, error) {
	name = extractLastSegment(name)

	name = nonFilenameChars.ReplaceAllString(name, "-")
	name = collapseDashes.ReplaceAllString(name, "-")
	name = strings.Trim(name, ". \t-")

	if name == "" {
		return "", fmt.Errorf("urlutil: sanitized repository name is empty")
	}
	return name, nil
}

// extractLastSegment pulls the final path component out of an http(s), git,
// or scp-style ssh URL, stripping a trailing ".git". Plain names pass
// through unchanged.
func extractLastSegment(name string) string {
	trimmed := name
	if idx := strings.LastIndexAny(trimmed, "/:"); idx >= 0 && (strings.Contains(trimmed, "://") || sshShorthand.MatchString(trimmed)) {
		trimmed = trimmed[idx+1:]
	}
	trimmed = strings.TrimSuffix(trimmed, ".git")
	return trimmed
}

// secretPattern matches long base64-ish runs that look like embedded tokens
// (e.g. after "://user:" or "://token@") so Redact can catch secrets it
// wasn't explicitly told about.
var secretPattern = regexp.MustCompile(`://[^/@\s]{6,}@`)

const mask = "***"

// Redact scans str for any of the known secrets and substitutes a fixed
// mask, then additionally masks anything matching a generic embedded-secret
// URL shape. Used at every log site that may include a clone URL or error
// detail derived from one.
func Redact(str string, secrets ...string) string {
	out := str
	for _, s := range secrets {
		if s == "" {
			continue
		}
		out = strings.ReplaceAll(out, s, mask)
	}
	out = secretPattern.ReplaceAllString(out, "://"+mask+"@")
	return out
}
