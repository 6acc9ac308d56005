package manifest

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/index"
)

// CheckTracked returns the scripts that are not in the git index of the
// repository containing root. Such files exist locally but would be missing
// from a checkout. Outside a repository it returns nil.
func CheckTracked(root string, scripts []string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(absRoot); err == nil {
		absRoot = resolved
	}

	repo, err := git.PlainOpenWithOptions(absRoot, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	top := wt.Filesystem.Root()
	if resolved, err := filepath.EvalSymlinks(top); err == nil {
		top = resolved
	}

	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	var untracked []string
	for _, script := range scripts {
		rel, err := filepath.Rel(top, filepath.Join(absRoot, filepath.FromSlash(script)))
		if err != nil {
			return nil, err
		}
		_, err = idx.Entry(filepath.ToSlash(rel))
		if errors.Is(err, index.ErrEntryNotFound) {
			untracked = append(untracked, script)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("looking up %s: %w", script, err)
		}
	}
	return untracked, nil
}
