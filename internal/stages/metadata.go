package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/sitebuild/internal/buildctx"
)

// Metadata is the structured record persisted near the end of a run.
// BuildNumber is a pointer so local runs serialize it as an explicit null
// rather than dropping the key.
type Metadata struct {
	Timestamp   time.Time `yaml:"timestamp"`
	BuildNumber *string   `yaml:"build_number"`
	Environment string    `yaml:"environment"`
	Commit      Commit    `yaml:"commit"`
	Author      string    `yaml:"author"`
}

// Commit identifies the source revision the site was built from.
type Commit struct {
	SHA     string `yaml:"sha"`
	Message string `yaml:"message"`
}

// GatherMetadata assembles the build metadata record. Commit facts come from
// the repository containing repoPath; outside a repository they degrade to
// "unknown" rather than failing the run.
func GatherMetadata(bc buildctx.Context, repoPath string) Metadata {
	md := Metadata{
		Timestamp:   time.Now().UTC(),
		Environment: bc.Environment(),
		Commit:      Commit{SHA: "unknown", Message: "unknown"},
		Author:      "unknown",
	}
	if bc.BuildNumber != "" {
		md.BuildNumber = &bc.BuildNumber
	}

	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return md
	}
	head, err := repo.Head()
	if err != nil {
		return md
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return md
	}

	md.Commit.SHA = commit.Hash.String()
	md.Commit.Message = strings.SplitN(commit.Message, "\n", 2)[0]
	md.Author = commit.Author.Name
	return md
}

// WriteMetadata serializes the record as a YAML document at path.
func WriteMetadata(md Metadata, path string) error {
	data, err := yaml.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal build metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil { // #nosec G306
		return fmt.Errorf("write build metadata: %w", err)
	}
	return nil
}
