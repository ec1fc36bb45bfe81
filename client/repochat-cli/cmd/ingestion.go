package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	pkghttp "RepoChat/backend/go/pkg/http"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	submitBranch string
	submitToken  string
	submitWatch  bool
	listLimit    int
)

var submitCmd = &cobra.Command{
	Use:   "submit [repo-url]",
	Short: "Submit a repository for ingestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := submitRun(cmd.Context(), args[0], submitBranch, submitToken)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Ingestion submitted successfully!\nRun ID: %s\n", id)
		if !submitWatch {
			fmt.Fprintf(out, "To watch its progress, run: repochat-cli watch %s\n", id)
			return nil
		}
		return watchRun(id, out)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show the current state of an ingestion run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var run json.RawMessage
		if err := getJSON(cmd.Context(), "/api/v1/ingestions/"+url.PathEscape(args[0]), &run); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), run)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recent ingestion runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var runs json.RawMessage
		if err := getJSON(cmd.Context(), fmt.Sprintf("/api/v1/ingestions?limit=%d", listLimit), &runs); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), runs)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [run-id]",
	Short: "Watch the real-time progress of an ingestion run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun(args[0], cmd.OutOrStdout())
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitBranch, "branch", "", "branch to ingest (default main)")
	submitCmd.Flags().StringVar(&submitToken, "token", "", "GitHub access token for private repositories")
	submitCmd.Flags().BoolVar(&submitWatch, "watch", false, "follow the run's progress after submitting")
	listCmd.Flags().IntVar(&listLimit, "limit", 10, "number of runs to show")

	rootCmd.AddCommand(submitCmd, statusCmd, listCmd, watchCmd)
}


func submitRun(ctx context.Context, repoURL, branch, token string) (string, error) {
	client := pkghttp.NewDefaultClient()
	payload := map[string]string{"repoUrl": repoURL, "branch": branch, "token": token}
	var result map[string]string
	if err := client.PostJSON(ctx, strings.TrimRight(serverAddr, "/")+"/api/v1/ingestions", nil, payload, &result); err != nil {
		return "", fmt.Errorf("error submitting ingestion: %w", err)
	}
	return result["run_id"], nil
}

func getJSON(ctx context.Context, path string, out any) error {
	return pkghttp.NewDefaultClient().GetJSON(ctx, strings.TrimRight(serverAddr, "/")+path, nil, out)
}

func printJSON(w io.Writer, raw []byte) error {
	// Pretty print the JSON output
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, raw, "", "  "); err != nil {
		return fmt.Errorf("error formatting JSON: %w", err)
	}
	_, err := fmt.Fprintln(w, prettyJSON.String())
	return err
}

// wsURL converts the service base URL into the run's WebSocket endpoint.
func wsURL(base, runID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", base, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws/ingestions/" + url.PathEscape(runID)
	return u.String(), nil
}

type progressEvent struct {
	Status   string `json:"status"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
	Error    string `json:"error"`
	Counters struct {
		BatchesUpserted int `json:"batches_upserted"`
		TotalBatches    int `json:"total_batches"`
	} `json:"counters"`
}

func watchRun(runID string, out io.Writer) error {
	u, err := wsURL(serverAddr, runID)
	if err != nil {
		return err
	}
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer c.Close()

	fmt.Fprintln(out, "WebSocket connected. Waiting for progress...")
	var last progressEvent
	for {
		var ev progressEvent
		if err := c.ReadJSON(&ev); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return fmt.Errorf("read: %w", err)
		}
		last = ev
		fmt.Fprintf(out, "[%s] %s %s\n", ev.Status, ev.Stage, ev.Message)
	}

	if last.Status == "failed" {
		return fmt.Errorf("ingestion failed at stage %s: %s", last.Stage, last.Error)
	}
	return nil
}
