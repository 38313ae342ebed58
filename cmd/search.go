package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/kozaktomas/photo-curator/internal/pipeline"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a natural-language photo query",
	Long: `Run a query such as "Alice at the beach" against a project.
With --voice the query is transcribed from an audio file instead.`,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().String("project", "", "Project ID")
	searchCmd.Flags().String("query", "", "Query text")
	searchCmd.Flags().String("voice", "", "Audio file with a spoken query")
	searchCmd.Flags().Bool("json", false, "Print the result as JSON")
	searchCmd.MarkFlagRequired("project")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectID := mustGetString(cmd, "project")
	queryStr := mustGetString(cmd, "query")
	voicePath := mustGetString(cmd, "voice")
	asJSON := mustGetBool(cmd, "json")

	if (queryStr == "") == (voicePath == "") {
		return errors.New("exactly one of --query or --voice is required")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	pipe, model, err := a.newPipeline(ctx)
	if err != nil {
		return err
	}

	var transcription string
	var res *pipeline.Result
	if voicePath != "" {
		audio, err := os.ReadFile(voicePath)
		if err != nil {
			return fmt.Errorf("failed to read audio: %w", err)
		}
		transcription, res, err = pipe.RunVoice(ctx, projectID, audio, filepath.Base(voicePath))
		if err != nil {
			return err
		}
	} else {
		res = pipe.Run(ctx, projectID, queryStr)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printSearchResult(res, transcription)
		usage := model.GetUsage()
		fmt.Printf("\nLLM: %s, %d request(s), %d in / %d out tokens, $%.6f\n",
			model.Name(), usage.Requests, usage.InputTokens, usage.OutputTokens, usage.TotalCost)
	}

	if res.Failed() {
		return fmt.Errorf("search finished with %d error(s)", len(res.Errors))
	}
	return nil
}

func printSearchResult(res *pipeline.Result, transcription string) {
	if transcription != "" {
		fmt.Printf("Transcription: %s\n", transcription)
	}
	ext := res.Extraction
	fmt.Printf("People:   %s\n", joinOrDash(ext.People))
	fmt.Printf("Emotions: %s\n", joinOrDash(ext.Emotions))
	fmt.Printf("Scene:    %s\n\n", orDash(ext.Scene))

	if len(res.Errors) > 0 {
		fmt.Println("Errors:")
		for _, e := range res.Errors {
			fmt.Printf("  - %s\n", e)
		}
		return
	}

	if res.SearchResults.Len() == 0 {
		fmt.Println("No images found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tLINK")
	fmt.Fprintln(w, "-----\t----")
	for _, id := range res.SearchResults.IDs {
		fmt.Fprintf(w, "%s\t%s\n", id, res.SearchResults.URLs[id])
	}
	w.Flush()

	fmt.Printf("\nTotal: %d images\n", res.SearchResults.Len())
}

func joinOrDash(values []string) string {
	return orDash(strings.Join(values, ", "))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
