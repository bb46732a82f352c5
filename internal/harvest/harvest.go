// Package harvest generates the skill-metadata JSON consumed by the
// skill-data load script. It walks a skill index, pulls each skill repo's
// README through the GitHub API, and distills title, description and
// utterance examples out of the markdown.
package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

// SkillEntry identifies one skill in the index
type SkillEntry struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Author string `yaml:"author"`
}

// SkillIndex is the YAML file listing the skills to harvest
type SkillIndex struct {
	Skills []SkillEntry `yaml:"skills"`
}

// SkillSummary is the generated metadata for one skill
type SkillSummary struct {
	Repo           string   `json:"repo"`
	Title          string   `json:"title"`
	Name           string   `json:"name"`
	Author         string   `json:"author"`
	GithubUsername string   `json:"github_username"`
	ShortDesc      string   `json:"short_desc"`
	Description    string   `json:"description"`
	Examples       []string `json:"examples"`
	Requires       []string `json:"requires"`
	Excludes       []string `json:"excludes"`
}

// Harvester generates skill summaries through the GitHub API
type Harvester struct {
	client *github.Client
	logger *slog.Logger
}

// NewHarvester creates a harvester. An empty token gives an unauthenticated
// client, which works but may hit the GitHub rate limit on large indexes.
func NewHarvester(ctx context.Context, token string, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}

	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		logger.Warn("no GitHub token configured, may exceed rate limit")
		client = github.NewClient(nil)
	}

	return &Harvester{client: client, logger: logger}
}

// LoadIndex reads the skill index from a YAML file
func LoadIndex(path string) ([]SkillEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill index: %w", err)
	}

	var index SkillIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse skill index: %w", err)
	}

	return index.Skills, nil
}

// SplitRepoURL extracts owner and repository name from a skill repo URL
func SplitRepoURL(rawURL string) (owner, repo string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid repo URL: %w", err)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repo URL has no owner/name path: %s", rawURL)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// GenerateSummary fetches a skill repo's README and distills its metadata
func (h *Harvester) GenerateSummary(ctx context.Context, entry SkillEntry) (*SkillSummary, error) {
	owner, repoName, err := SplitRepoURL(entry.URL)
	if err != nil {
		return nil, err
	}

	repo, _, err := h.client.Repositories.Get(ctx, owner, repoName)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch repo %s/%s: %w", owner, repoName, err)
	}

	readmeFile, _, err := h.client.Repositories.GetReadme(ctx, owner, repoName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readme for %s/%s: %w", owner, repoName, err)
	}

	readme, err := readmeFile.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode readme for %s/%s: %w", owner, repoName, err)
	}

	return buildSummary(entry, repo.GetHTMLURL(), readme), nil
}

// buildSummary distills a summary from README markdown
func buildSummary(entry SkillEntry, repoURL, readme string) *SkillSummary {
	sections := ExtractSections(readme)
	title, shortDesc := FindTitleInfo(sections, entry.Name)

	author := FindSection("credits", sections, 0.9)
	if author == "" {
		author = FindSection("author", sections, 0.9)
	}
	if author == "" {
		author = Capitalize(entry.Author)
	}

	examples := FindExamples(sections)
	if examples == nil {
		examples = []string{}
	}

	shortDesc = strings.TrimSuffix(FormatSentence(strings.ReplaceAll(shortDesc, "\n", " ")), ".")

	return &SkillSummary{
		Repo:           repoURL,
		Title:          title,
		Name:           entry.Name,
		Author:         author,
		GithubUsername: entry.Author,
		ShortDesc:      shortDesc,
		Description:    FormatSentence(FindSection("description", sections, 0.5)),
		Examples:       examples,
		Requires:       strings.Fields(FindSection("require", sections, 0.9)),
		Excludes:       strings.Fields(FindSection("exclude", sections, 0.9)),
	}
}

// HarvestAll generates summaries for every entry in the index.
// A skill that fails is logged and skipped, not fatal, so one bad README
// cannot sink the whole harvest.
func (h *Harvester) HarvestAll(ctx context.Context, entries []SkillEntry) map[string]*SkillSummary {
	summaries := make(map[string]*SkillSummary)
	for _, entry := range entries {
		if entry.URL == "" {
			continue
		}

		h.logger.Info("generating summary", "skill", entry.Name)
		summary, err := h.GenerateSummary(ctx, entry)
		if err != nil {
			h.logger.Error("failed to generate summary", "skill", entry.Name, "error", err)
			continue
		}
		summaries[entry.Name] = summary
	}
	return summaries
}

// WriteSummaries writes the metadata file the load script reads
func WriteSummaries(path string, summaries map[string]*SkillSummary) error {
	data, err := json.MarshalIndent(summaries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal summaries: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write summaries: %w", err)
	}

	return nil
}

// Upload pushes the metadata file to the skills-data repository through the
// contents API, creating or updating skill-metadata.json on the default
// branch.
func (h *Harvester) Upload(ctx context.Context, ownerRepo, path string, summaries map[string]*SkillSummary) error {
	parts := strings.Split(ownerRepo, "/")
	if len(parts) != 2 {
		return fmt.Errorf("invalid owner/repo format: %s", ownerRepo)
	}
	owner, repo := parts[0], parts[1]

	data, err := json.MarshalIndent(summaries, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal summaries: %w", err)
	}

	message := "Update skill metadata"
	opts := &github.RepositoryContentFileOptions{
		Message: &message,
		Content: data,
	}

	// An existing file needs its blob SHA for the update call
	existing, _, _, err := h.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err == nil && existing != nil {
		opts.SHA = existing.SHA
		_, _, err = h.client.Repositories.UpdateFile(ctx, owner, repo, path, opts)
	} else {
		_, _, err = h.client.Repositories.CreateFile(ctx, owner, repo, path, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", path, ownerRepo, err)
	}

	h.logger.Info("uploaded skill metadata", "repo", ownerRepo, "path", path)
	return nil
}
