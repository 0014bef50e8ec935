package image

import "strings"

// =============================================================================
// Reference Helpers
// =============================================================================

// trimDigest removes a trailing @sha256:... digest from a reference.
func trimDigest(ref string) string {
	if at := strings.Index(ref, "@"); at >= 0 {
		return ref[:at]
	}
	return ref
}

// trimTag removes the tag from a reference, leaving the repository path.
// A colon only counts as a tag separator after the last slash, so registry
// ports (localhost:5000/app) survive.
func trimTag(ref string) string {
	ref = trimDigest(ref)
	slash := strings.LastIndex(ref, "/")
	if colon := strings.LastIndex(ref, ":"); colon > slash {
		return ref[:colon]
	}
	return ref
}

// IsGHCR reports whether a reference or registry server points at the GitHub
// container registry.
func IsGHCR(refOrServer string) bool {
	return strings.Contains(refOrServer, "ghcr.io")
}

// OwnerFromRef extracts the owner segment from a ghcr.io/<owner>/... image
// reference. It returns "" for anything that is not a GHCR reference, so
// callers can fall through to an explicit username.
func OwnerFromRef(ref string) string {
	ref = trimTag(ref)
	parts := strings.Split(ref, "/")
	if len(parts) < 3 || parts[0] != "ghcr.io" {
		return ""
	}
	return parts[1]
}

// RepoPrefix returns the repository path of a reference without its tag,
// e.g. "ghcr.io/acme/web:1.2" -> "ghcr.io/acme/web". References without a
// registry and owner segment yield "" because mirroring under them would
// collide with public images.
func RepoPrefix(ref string) string {
	repo := trimTag(ref)
	if strings.Count(repo, "/") < 2 {
		return ""
	}
	return repo
}

// lastSegment returns the final path element of a reference including its
// tag, e.g. "docker.io/library/caddy:2-alpine" -> "caddy:2-alpine".
func lastSegment(ref string) string {
	if slash := strings.LastIndex(ref, "/"); slash >= 0 {
		return ref[slash+1:]
	}
	return ref
}

// MirrorRef computes the reference a sidecar image is mirrored to inside the
// app image's namespace. The prefix is the app image's repository path when
// it has one, otherwise "<server>/<username>". An empty result means there is
// no namespace to mirror into.
func MirrorRef(appRef, sidecarRef, server, username string) string {
	prefix := RepoPrefix(appRef)
	if prefix == "" && server != "" && username != "" {
		prefix = strings.TrimSuffix(server, "/") + "/" + username
	}
	if prefix == "" {
		return ""
	}
	return prefix + "/" + lastSegment(trimDigest(sidecarRef))
}
