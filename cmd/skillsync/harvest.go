package main

import (
	"fmt"
	"log/slog"
	"os"

	"skillsync/internal/harvest"

	"github.com/spf13/cobra"
)

var (
	harvestSkillsFile string
	harvestOutput     string
	harvestUploadRepo string
	harvestUploadPath string
	harvestToken      string
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest skill metadata from skill READMEs",
	Long: `Generate the skill-metadata JSON file the load script consumes.

Every skill listed in the index has its README fetched through the
GitHub API and distilled into a title, description and utterance
examples. The result is written locally and can optionally be pushed
to a metadata repository.`,
	RunE: runHarvest,
}

func init() {
	harvestCmd.Flags().StringVarP(&harvestSkillsFile, "skills-file", "s", getEnvOrDefault("SKILLSYNC_SKILLS_FILE", "skills.yaml"), "Path to the skill index YAML file")
	harvestCmd.Flags().StringVarP(&harvestOutput, "output", "o", "skill-metadata.json", "Path to write the generated metadata")
	harvestCmd.Flags().StringVar(&harvestUploadRepo, "upload", "", "Push the metadata to this owner/repo after generating it")
	harvestCmd.Flags().StringVar(&harvestUploadPath, "upload-path", "skill-metadata.json", "Path of the metadata file inside the upload repository")
	harvestCmd.Flags().StringVar(&harvestToken, "token", getEnvOrDefault("GITHUB_TOKEN", ""), "GitHub API token")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	entries, err := harvest.LoadIndex(harvestSkillsFile)
	if err != nil {
		return err
	}
	logger.Info("loaded skill index", "skills", len(entries))

	harvester := harvest.NewHarvester(cmd.Context(), harvestToken, logger)
	summaries := harvester.HarvestAll(cmd.Context(), entries)
	logger.Info("harvest finished", "generated", len(summaries), "failed", len(entries)-len(summaries))

	if err := harvest.WriteSummaries(harvestOutput, summaries); err != nil {
		return err
	}
	logger.Info("wrote skill metadata", "path", harvestOutput)

	if harvestUploadRepo != "" {
		if harvestToken == "" {
			return fmt.Errorf("--upload requires a GitHub token")
		}
		if err := harvester.Upload(cmd.Context(), harvestUploadRepo, harvestUploadPath, summaries); err != nil {
			return err
		}
	}

	return nil
}
