package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cancer-risk-screening/internal/domain"
	"github.com/cancer-risk-screening/internal/knowledge"
	"github.com/cancer-risk-screening/internal/service"
)

var (
	// noCache disables the risk score cache for this run
	noCache bool
	// compact prints JSON without indentation
	compact bool
	// failOnReview exits non-zero when any assessment requires clinician review
	failOnReview bool
)

func init() {
	rootCmd.AddCommand(assessCmd)

	assessCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the risk score cache")
	assessCmd.Flags().BoolVar(&compact, "compact", false, "print compact JSON")
	assessCmd.Flags().BoolVar(&failOnReview, "fail-on-review", false, "exit with an error when an assessment requires review")
}

// assessCmd runs the screening pipeline over one or more patient files
var assessCmd = &cobra.Command{
	Use:   "assess <patient-file>...",
	Short: "Assess patient profiles",
	Long: `Assess one or more patient profiles (JSON or YAML; "-" reads JSON or YAML from stdin).

A single file prints one assessment object; several files are assessed concurrently and
print an array in argument order. A file may also hold a list of profiles.

Examples:
  # Assess a single patient
  screening-assess assess patient.yaml

  # Assess a cohort with a custom knowledge base
  screening-assess assess --knowledge kb-2025.yaml cohort/*.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssess,
}

// runAssess handles the assess command
func runAssess(cmd *cobra.Command, args []string) error {
	cfg := *configManager.GetConfig()
	if noCache {
		cfg.Cache.Enabled = false
	}

	kb, err := knowledge.Load(cfg.Knowledge.Path)
	if err != nil {
		return err
	}

	var patients []domain.PatientProfile
	for _, path := range args {
		loaded, err := readPatients(path, cmd.InOrStdin())
		if err != nil {
			return err
		}
		patients = append(patients, loaded...)
	}

	pipeline, err := service.NewPipelineFromConfig(kb, &cfg, logger)
	if err != nil {
		return err
	}

	assessments, err := pipeline.AssessBatch(cmd.Context(), patients)
	if err != nil {
		return err
	}

	var out any = assessments
	if len(assessments) == 1 {
		out = assessments[0]
	}
	if err := writeJSON(cmd.OutOrStdout(), out, !compact); err != nil {
		return err
	}

	if failOnReview {
		for _, a := range assessments {
			if a.RequiresReview {
				return fmt.Errorf("assessment %s for patient %q requires review", a.ID, a.PatientID)
			}
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any, indent bool) error {
	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
