package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cancer-risk-screening/internal/knowledge"
)

func init() {
	rootCmd.AddCommand(knowledgeCmd)
	knowledgeCmd.AddCommand(knowledgeValidateCmd)
	knowledgeCmd.AddCommand(knowledgeDumpCmd)
}

// knowledgeCmd is the parent command for knowledge base operations
var knowledgeCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Knowledge base operations",
	Long: `Inspect the screening knowledge base: gene risks, rule tables, screening protocols
and symptom correlations. Without a path the configured knowledge base is used.`,
}

// knowledgeValidateCmd validates a knowledge base file
var knowledgeValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a knowledge base file",
	Long: `Validate a knowledge base file and report every structural problem.

Examples:
  screening-assess knowledge validate kb-2025.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKnowledgeValidate,
}

// knowledgeDumpCmd prints the effective knowledge base as YAML
var knowledgeDumpCmd = &cobra.Command{
	Use:   "dump [path]",
	Short: "Print the knowledge base as YAML",
	Long: `Print the knowledge base as YAML. Dumping the embedded default is the usual starting
point for a customised knowledge base.

Examples:
  screening-assess knowledge dump > kb.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKnowledgeDump,
}

func knowledgeArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return configManager.GetConfig().Knowledge.Path
}

// runKnowledgeValidate handles the knowledge validate command
func runKnowledgeValidate(cmd *cobra.Command, args []string) error {
	kb, err := knowledge.Load(knowledgeArg(args))
	if err != nil {
		return err
	}

	protocols := 0
	for _, ps := range kb.Protocols {
		protocols += len(ps)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "knowledge base %s is valid: %d cancer types, %d genes, %d protocols, %d symptom correlations\n",
		kb.Version, len(kb.Types()), len(kb.GeneRisks), protocols, len(kb.SymptomCorrelations))
	return nil
}

// runKnowledgeDump handles the knowledge dump command
func runKnowledgeDump(cmd *cobra.Command, args []string) error {
	kb, err := knowledge.Load(knowledgeArg(args))
	if err != nil {
		return err
	}

	data, err := kb.Marshal()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
