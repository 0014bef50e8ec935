// Package gitinfo reads facts about the local checkout - worktree root, HEAD
// revision, branch, origin URL - for deployment metadata. Discovery walks
// upward from the given directory, so the deploy flow works from any
// subdirectory of a repository.
package gitinfo

import (
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ErrNotRepository is returned when no git repository encloses the path.
var ErrNotRepository = errors.New("not a git repository")

// Info carries the checkout facts a deployment run records.
type Info struct {
	// Root is the absolute path of the worktree root.
	Root string
	// Revision is the full HEAD commit hash, empty in a repository without
	// commits.
	Revision string
	// Branch is the short HEAD branch name, "HEAD" when detached, empty in a
	// repository without commits.
	Branch string
	// Origin is the URL of the origin remote, empty when none is configured.
	Origin string
}

// Describe resolves the repository enclosing dir. A repository without
// commits yields an Info with Root and Origin only.
func Describe(dir string) (Info, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return Info{}, fmt.Errorf("%w: %s", ErrNotRepository, dir)
	}
	if err != nil {
		return Info{}, fmt.Errorf("opening repository at %s: %w", dir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return Info{}, fmt.Errorf("reading worktree: %w", err)
	}
	info := Info{Root: wt.Filesystem.Root(), Origin: originURL(repo)}

	head, err := repo.Head()
	switch {
	case err == nil:
		info.Revision = head.Hash().String()
		info.Branch = head.Name().Short()
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// No commits yet.
	default:
		return Info{}, fmt.Errorf("reading head: %w", err)
	}
	return info, nil
}

func originURL(repo *gogit.Repository) string {
	remote, err := repo.Remote(gogit.DefaultRemoteName)
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return strings.TrimSpace(urls[0])
}
