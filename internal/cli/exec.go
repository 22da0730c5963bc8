package cli

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var execHeaders = []string{"ID", "FLOW_ID", "TOPIC", "STATUS", "NODES", "ACTIONS", "STARTED"}

func execRow(ex *ExecutionResponse) []string {
	started := ""
	if ex.StartedAt != nil {
		started = ex.StartedAt.Format(time.RFC3339)
	}
	return []string{
		ex.ID,
		ex.FlowID,
		ex.Topic,
		ex.Status,
		strconv.Itoa(ex.NodesExecuted),
		strconv.Itoa(ex.ActionsCompleted),
		started,
	}
}

// NewExecCmd создаёт группу команд для просмотра executions.
func NewExecCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Inspect flow executions",
	}

	cmd.AddCommand(
		newExecListCmd(clientFn, outputFn),
		newExecShowCmd(clientFn, outputFn),
		newExecLogsCmd(clientFn, outputFn),
	)

	return cmd
}

func newExecListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			executions, err := client.ListExecutions(cmd.Context(), flowID, status, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(executions))
			for i := range executions {
				rows[i] = execRow(&executions[i])
			}

			out.Print(execHeaders, rows, executions)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowID, "flow", "", "Filter by flow ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (running/success/failed)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of executions to return")

	return cmd
}

func newExecShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show execution details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ex, err := client.GetExecution(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Print(execHeaders, [][]string{execRow(ex)}, ex)
			if ex.Error != "" && !out.jsonMode {
				out.Error(ex.Error)
			}
			return nil
		},
	}
}

func newExecLogsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "logs EXECUTION_ID",
		Short: "Show execution logs in insertion order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			logs, err := client.ListExecutionLogs(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "LEVEL", "NODE_ID", "MESSAGE", "DATA"}
			rows := make([][]string, len(logs))
			for i, entry := range logs {
				nodeID := ""
				if entry.NodeID != nil {
					nodeID = *entry.NodeID
				}
				data := ""
				if len(entry.Data) > 0 {
					raw, _ := json.Marshal(entry.Data)
					data = string(raw)
				}
				rows[i] = []string{
					strconv.FormatInt(entry.ID, 10),
					entry.Level,
					nodeID,
					entry.Message,
					data,
				}
			}

			out.Print(headers, rows, logs)
			return nil
		},
	}
}
