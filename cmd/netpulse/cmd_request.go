package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/netpulse/internal/store"
	"github.com/user/netpulse/internal/types"
)

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(requestSubmitCmd, requestListCmd, requestShowCmd)

	requestSubmitCmd.Flags().String("device", "", "device identifier (required)")
	requestSubmitCmd.Flags().String("type", string(types.TypeGeneralQuery), "request type")
	requestSubmitCmd.Flags().String("prompt", "", "prompt text (required)")
	requestSubmitCmd.Flags().Duration("ttl", 0, "expire the request if not processed within this duration")
	_ = requestSubmitCmd.MarkFlagRequired("device")
	_ = requestSubmitCmd.MarkFlagRequired("prompt")

	requestListCmd.Flags().Int("limit", 20, "maximum requests to show")
}

func openStores() (*store.RequestStore, *store.ResponseStore, *store.TelemetryStore, error) {
	cfg := loadConfig()
	db, err := store.Open(filepath.Join(cfg.DataDir, "netpulse.db"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	return store.NewRequestStore(db), store.NewResponseStore(db), store.NewTelemetryStore(db), nil
}

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Submit and inspect analysis requests",
}

var requestSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new analysis request",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		device, _ := cmd.Flags().GetString("device")
		reqType, _ := cmd.Flags().GetString("type")
		promptText, _ := cmd.Flags().GetString("prompt")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		requests, _, _, err := openStores()
		if err != nil {
			return err
		}

		req := &types.AnalysisRequest{
			RequestType: types.RequestType(reqType),
			DeviceID:    device,
			Prompt:      promptText,
		}
		if ttl > 0 {
			req.ExpiresAt = time.Now().Add(ttl)
		}
		if err := requests.Create(context.Background(), req); err != nil {
			return fmt.Errorf("submit request: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Request %s submitted.\n", req.ID)
		return nil
	},
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent requests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		requests, _, _, err := openStores()
		if err != nil {
			return err
		}
		recs, err := requests.List(context.Background(), limit)
		if err != nil {
			return fmt.Errorf("list requests: %w", err)
		}

		if len(recs) == 0 {
			fmt.Println("No requests.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tDEVICE\tSTATUS\tRETRIES\tCREATED")
		for _, r := range recs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				r.ID,
				r.RequestType,
				r.DeviceID,
				r.Status,
				r.RetryCount,
				r.Timestamp.Format(time.RFC3339),
			)
		}
		return w.Flush()
	},
}

var requestShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a request and its response",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		requests, responses, _, err := openStores()
		if err != nil {
			return err
		}

		ctx := context.Background()
		id := types.RequestID(args[0])
		req, err := requests.Get(ctx, id)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Request:    %s\n", req.ID)
		fmt.Fprintf(os.Stdout, "Type:       %s\n", req.RequestType)
		fmt.Fprintf(os.Stdout, "Device:     %s\n", req.DeviceID)
		fmt.Fprintf(os.Stdout, "Status:     %s\n", req.Status)
		fmt.Fprintf(os.Stdout, "Retries:    %d\n", req.RetryCount)
		fmt.Fprintf(os.Stdout, "Created:    %s\n", req.Timestamp.Format(time.RFC3339))
		if req.Error != "" {
			fmt.Fprintf(os.Stdout, "Error:      %s\n", req.Error)
		}
		fmt.Fprintf(os.Stdout, "Prompt:     %s\n", req.Prompt)

		resp, err := responses.GetByRequest(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(os.Stdout, "\nNo response yet.")
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "\nResponse:   %s\n", resp.ID)
		fmt.Fprintf(os.Stdout, "Success:    %v\n", resp.Success)
		if resp.Error != nil {
			fmt.Fprintf(os.Stdout, "Error:      %s\n", *resp.Error)
		}
		if resp.Confidence != nil {
			fmt.Fprintf(os.Stdout, "Confidence: %.2f\n", *resp.Confidence)
		}
		for _, s := range resp.Suggestions {
			fmt.Fprintf(os.Stdout, "Suggestion: %s\n", s)
		}
		for k, v := range resp.Metadata {
			fmt.Fprintf(os.Stdout, "Meta:       %s = %s\n", k, v)
		}
		if resp.Response != "" {
			fmt.Fprintf(os.Stdout, "\n%s\n", resp.Response)
		}
		return nil
	},
}
