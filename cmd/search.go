package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sp1nlock/legwork/internal/utils"
	"github.com/sp1nlock/legwork/pkg/analysis"
	"github.com/sp1nlock/legwork/pkg/cluster"
	"github.com/sp1nlock/legwork/pkg/export"
	"github.com/sp1nlock/legwork/pkg/phase"
	"github.com/sp1nlock/legwork/pkg/rank"
	"github.com/sp1nlock/legwork/pkg/results"
	"github.com/sp1nlock/legwork/pkg/session"
	"github.com/sp1nlock/legwork/pkg/stream"
)

var searchCmd = &cobra.Command{
	Use:   "search <username>",
	Short: "Search a username across platforms and correlate the findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		email, _ := cmd.Flags().GetString("email")
		useLLM, _ := cmd.Flags().GetBool("llm")
		clusterMode, _ := cmd.Flags().GetString("cluster-mode")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		outPath, _ := cmd.Flags().GetString("out")
		htmlPath, _ := cmd.Flags().GetString("html")

		scannerHost, _ := cmd.Flags().GetString("scanner")
		if scannerHost == "" {
			scannerHost = viper.GetString("scanner.host")
		}
		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			model = viper.GetString("ollama.model")
		}

		ctrl := session.New(
			stream.NewSSETransport(scannerHost),
			analysis.NewAnalyzer(analysis.Config{
				Endpoint:   viper.GetString("analysis.endpoint"),
				OllamaHost: viper.GetString("ollama.host"),
				Model:      model,
				APIMode:    viper.GetString("ollama.api_mode"),
				PromptFile: viper.GetString("analysis.prompt_file"),
			}),
			session.Options{
				ModelAssist: useLLM,
				ClusterMode: cluster.ParseMode(clusterMode),
			},
		)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := ctrl.StartSearch(ctx, username, email); err != nil {
			return err
		}
		waitForCompletion(ctx, ctrl)

		snap := ctrl.Snapshot()
		found := 0
		for _, r := range snap.Availability {
			if r.Status == results.StatusFound {
				found++
			}
		}
		fmt.Printf("Checked %d platforms, %d profiles found\n", len(snap.Availability), found)

		if ctrl.CanCommitProfiles() {
			if err := ctrl.CommitProfiles(); err != nil {
				return err
			}
			if err := ctrl.RunAnalysis(context.Background()); err != nil {
				utils.Log.Warnf("analysis incomplete: %v", err)
			}
			printLegs(ctrl.Snapshot())
		}

		if outPath != "" {
			if err := writeExport(outPath, ctrl, export.WriteJSON); err != nil {
				return err
			}
			utils.Log.Infof("JSON export written to %s", outPath)
		}
		if htmlPath != "" {
			if err := writeExport(htmlPath, ctrl, export.WriteHTML); err != nil {
				return err
			}
			utils.Log.Infof("HTML report written to %s", htmlPath)
		}
		return nil
	},
}

// waitForCompletion blocks until the scanner stream finishes or the timeout
// fires, in which case the stuck entries are swept.
func waitForCompletion(ctx context.Context, ctrl *session.Controller) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			utils.Log.Warn("search timed out, sweeping unresolved platforms")
			ctrl.StopSearch()
			return
		case <-ticker.C:
			if !ctrl.Searching() && ctrl.Phase(phase.Availability) == phase.Done {
				return
			}
		}
	}
}

func printLegs(snap session.Snapshot) {
	for _, leg := range snap.Legs {
		fmt.Printf("\n%s (%s)\n", leg.Label, leg.Source)
		if leg.Reason != "" {
			fmt.Printf("  %s\n", leg.Reason)
		}
		for i, p := range leg.Profiles {
			fmt.Printf("  #%d [%d pts] %s: %s\n", i+1, rank.Score(p, snap.Subject), p.Platform, p.URL)
		}
	}
	if snap.Heuristic != nil {
		fmt.Printf("\nHeuristic: %s\n", snap.Heuristic.Summary)
		for _, t := range snap.Heuristic.Traits {
			fmt.Printf("  trait: %s\n", t)
		}
		for _, r := range snap.Heuristic.Risks {
			fmt.Printf("  risk:  %s\n", r)
		}
	}
	if snap.Model != nil {
		fmt.Printf("\nModel (%s): %s\n", snap.Model.LLMModel, snap.Model.Summary)
	}
}

func writeExport(path string, ctrl *session.Controller, write func(w io.Writer, doc export.Document) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f, ctrl.Export())
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringP("email", "e", "", "Known email address of the subject, used as an extra correlation pivot")
	searchCmd.Flags().Bool("llm", false, "Run model-assisted analysis after the heuristic pass")
	searchCmd.Flags().String("model", "", "Model name for the analysis backend (default from config)")
	searchCmd.Flags().String("scanner", "", "Scanner base URL (default from config)")
	searchCmd.Flags().String("cluster-mode", "by-signal", "Clustering strategy: by-signal or by-category")
	searchCmd.Flags().Duration("timeout", 5*time.Minute, "Give up on platforms still unresolved after this long")
	searchCmd.Flags().StringP("out", "o", "", "Write the session export as JSON to this path")
	searchCmd.Flags().String("html", "", "Write the HTML report to this path")
}
