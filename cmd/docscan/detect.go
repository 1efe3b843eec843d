package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/docscan/internal/api"
	"github.com/jackzampolin/docscan/internal/config"
	"github.com/jackzampolin/docscan/internal/notify"
	"github.com/jackzampolin/docscan/internal/rowdetect"
	"github.com/jackzampolin/docscan/internal/templateless"
)

// cancelGrace bounds the cancel sent after the user interrupts detect run.
const cancelGrace = 30 * time.Second

var (
	detectFile      string
	detectNoWait    bool
	detectRequestID string
)

// detectInput is the table region read from --file.
type detectInput struct {
	TableID string                     `json:"tableId"`
	Table   templateless.BoundingBox   `json:"table"`
	Rows    []templateless.BoundingBox `json:"rows"`
}

// detectOutput is what every detect subcommand prints.
type detectOutput struct {
	RequestID     string                      `json:"request_id,omitempty"`
	Status        string                      `json:"status"`
	Rows          []rowdetect.DetectionResult `json:"rows,omitempty"`
	ErrorMessage  string                      `json:"error_message,omitempty"`
	Notifications []notify.Notification       `json:"notifications,omitempty"`
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Table row detection",
	Long: `Start, watch and cancel table row detection jobs.

A job detects the rows of one table region on a document page. The region
and any rows already drawn are read from a YAML or JSON file:

  tableId: "77"
  table: {xmin: 0.05, ymin: 0.10, xmax: 0.95, ymax: 0.60}
  rows:
    - {xmin: 0.05, ymin: 0.10, xmax: 0.95, ymax: 0.15}`,
}

var detectRunCmd = &cobra.Command{
	Use:   "run <document-id> <page-id>",
	Short: "Start a row detection job and wait for the rows",
	Long: `Start a row detection job and poll until it finishes.

Interrupting the command (Ctrl+C) cancels the job on the backend.
With --no-wait the request id is printed and the job is left running;
use 'docscan detect watch' to wait for it later.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		documentID, pageID := args[0], args[1]

		var in detectInput
		if err := api.ReadFile(detectFile, &in); err != nil {
			return err
		}

		s, err := newSession()
		if err != nil {
			return err
		}
		coord, rec := s.coordinator()

		res := coord.RequestDetection(ctx, documentID, pageID, in.Table, in.Rows, in.TableID)
		if res.Error != "" {
			api.Output(detectOutput{Status: coord.Status().String(), ErrorMessage: res.Error, Notifications: rec.All()})
			return fmt.Errorf("row detection request failed: %s", res.Error)
		}
		if detectNoWait {
			return api.Output(detectOutput{RequestID: res.RequestID, Status: coord.Status().String()})
		}

		rows, err := pollDetection(ctx, s, coord)
		out := detectOutput{
			RequestID:     res.RequestID,
			Status:        coord.Status().String(),
			Rows:          rows,
			Notifications: rec.All(),
		}

		if errors.Is(err, context.Canceled) {
			cctx, cancel := context.WithTimeout(context.Background(), cancelGrace)
			defer cancel()
			coord.CancelDetection(cctx, documentID, pageID)
			out.Status = coord.Status().String()
			out.Notifications = rec.All()
		}
		if outErr := api.Output(out); outErr != nil {
			return outErr
		}
		return err
	},
}

var detectWatchCmd = &cobra.Command{
	Use:   "watch <document-id> <page-id>",
	Short: "Wait for a running row detection job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := newSession()
		if err != nil {
			return err
		}
		coord, rec := s.coordinator()
		coord.Resume(rowdetect.PollTarget{DocumentID: args[0], DocumentPageID: args[1]}, detectRequestID)

		rows, err := pollDetection(ctx, s, coord)
		if outErr := api.Output(detectOutput{
			RequestID:     detectRequestID,
			Status:        coord.Status().String(),
			Rows:          rows,
			Notifications: rec.All(),
		}); outErr != nil {
			return outErr
		}
		return err
	},
}

var detectStatusCmd = &cobra.Command{
	Use:   "status <document-id> <page-id>",
	Short: "Show the status of the page's row detection job",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		st, err := s.client.GetTableRowDetectionStatus(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return api.Output(detectOutput{
			Status:       rowdetect.ParseStatus(st.Status).String(),
			Rows:         st.DetectionResults,
			ErrorMessage: st.ErrorMessage,
		})
	},
}

var detectCancelCmd = &cobra.Command{
	Use:   "cancel <document-id> <page-id> <request-id>",
	Short: "Cancel a row detection job",
	Long: `Cancel a row detection job. A job that already finished is reported
as cancelled rather than as an error.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		coord, rec := s.coordinator()
		coord.Resume(rowdetect.PollTarget{DocumentID: args[0], DocumentPageID: args[1]}, args[2])
		coord.CancelDetection(cmd.Context(), args[0], args[1])

		status := coord.Status()
		if err := api.Output(detectOutput{RequestID: args[2], Status: status.String(), Notifications: rec.All()}); err != nil {
			return err
		}
		if status == rowdetect.Errored {
			return fmt.Errorf("cancel failed")
		}
		return nil
	},
}

func pollDetection(ctx context.Context, s *session, coord *rowdetect.Coordinator) ([]rowdetect.DetectionResult, error) {
	p := &rowdetect.Poller{
		Source:   coord,
		Interval: s.cfg.Detection.PollInterval,
		Timeout:  s.cfg.Detection.PollTimeout,
		Logger:   s.logger,
	}
	s.watchConfig(func(cfg *config.Config) {
		p.SetInterval(cfg.Detection.PollInterval)
	})
	return p.Run(ctx)
}

func init() {
	detectRunCmd.Flags().StringVarP(&detectFile, "file", "f", "", "YAML or JSON file with tableId, table and rows")
	detectRunCmd.MarkFlagRequired("file")
	detectRunCmd.Flags().BoolVar(&detectNoWait, "no-wait", false, "print the request id and return")

	detectWatchCmd.Flags().StringVar(&detectRequestID, "request-id", "", "request id, kept for a later cancel")

	detectCmd.AddCommand(detectRunCmd, detectWatchCmd, detectStatusCmd, detectCancelCmd)
	rootCmd.AddCommand(detectCmd)
}
