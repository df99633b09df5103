package git

import (
	"context"
	"path"
	"strings"

	"github.com/grovetools/hop/pkg/sshcmd"
)

// RepoName returns the repository name from the origin URL, falling back
// to the checkout directory's base name.
func (c *Client) RepoName(ctx context.Context, d *sshcmd.Descriptor, repoPath string) string {
	res, err := c.Run(ctx, d, repoPath, "config", "--get", "remote.origin.url")
	if err != nil {
		c.logger.WithError(err).WithField("path", repoPath).Warn("Could not read origin URL, using directory name")
		return path.Base(repoPath)
	}
	if len(res.Lines) == 0 {
		return path.Base(repoPath)
	}
	return ExtractRepoName(res.Lines[0])
}

// ExtractRepoName extracts repository name from git URL
func ExtractRepoName(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), ".git")

	// SSH URLs (git@github.com:user/repo)
	if strings.HasPrefix(url, "git@") {
		parts := strings.Split(url, ":")
		if len(parts) >= 2 {
			url = parts[1]
		}
	}

	parts := strings.Split(strings.TrimSuffix(url, "/"), "/")
	if name := parts[len(parts)-1]; name != "" {
		return name
	}
	return "unknown"
}
