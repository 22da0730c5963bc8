package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

var flowHeaders = []string{"ID", "NAME", "SHOP", "ACTIVE", "NODES", "CREATED"}

func flowRow(f *FlowResponse) []string {
	return []string{
		f.ID,
		f.Name,
		f.ShopDomain,
		strconv.FormatBool(f.IsActive),
		strconv.Itoa(len(f.Nodes)),
		f.CreatedAt.Format(time.RFC3339),
	}
}

// NewFlowCmd создаёт группу команд для управления flows.
func NewFlowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Manage flows",
	}

	cmd.AddCommand(
		newFlowListCmd(clientFn, outputFn),
		newFlowCreateCmd(clientFn, outputFn),
		newFlowShowCmd(clientFn, outputFn),
		newFlowUpdateCmd(clientFn, outputFn),
		newFlowDeleteCmd(clientFn, outputFn),
		newFlowActivateCmd(clientFn, outputFn, true),
		newFlowActivateCmd(clientFn, outputFn, false),
		newFlowGraphCmd(clientFn, outputFn),
	)

	return cmd
}

func newFlowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var shopDomain string
	var active string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var isActive *bool
			if active != "" {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				isActive = &b
			}

			flows, err := client.ListFlows(cmd.Context(), shopDomain, isActive, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(flows))
			for i := range flows {
				rows[i] = flowRow(&flows[i])
			}

			out.Print(flowHeaders, rows, flows)
			return nil
		},
	}

	cmd.Flags().StringVar(&shopDomain, "shop", "", "Filter by shop domain")
	cmd.Flags().StringVar(&active, "active", "", "Filter by active status (true/false)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of flows to return")

	return cmd
}

func newFlowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var shopDomain string
	var activate bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.CreateFlow(cmd.Context(), CreateFlowRequest{
				Name:       name,
				ShopDomain: shopDomain,
				IsActive:   activate,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow created: %s", flow.ID))
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Flow name (required)")
	cmd.Flags().StringVar(&shopDomain, "shop", "", "Shop domain (required)")
	cmd.Flags().BoolVar(&activate, "activate", false, "Create the flow in active state")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("shop")

	return cmd
}

func newFlowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show flow details with its graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.GetFlow(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)

			// В табличном режиме дополнительно показываем граф
			if len(flow.Nodes) > 0 {
				nodeHeaders := []string{"NODE_ID", "TYPE", "LABEL", "POSITION"}
				nodeRows := make([][]string, len(flow.Nodes))
				for i, n := range flow.Nodes {
					nodeRows[i] = []string{n.ID, n.Type, n.Label, strconv.Itoa(n.Position)}
				}
				out.Table(nodeHeaders, nodeRows)
			}
			return nil
		},
	}
}

func newFlowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var active string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateFlowRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("active") {
				b, err := strconv.ParseBool(active)
				if err != nil {
					return fmt.Errorf("invalid value for --active: %s", active)
				}
				req.IsActive = &b
			}

			flow, err := client.UpdateFlow(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out.Success("Flow updated")
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New flow name")
	cmd.Flags().StringVar(&active, "active", "", "Set active status (true/false)")

	return cmd
}

func newFlowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteFlow(cmd.Context(), args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Flow deleted: %s", args[0]))
			return nil
		},
	}
}

func newFlowActivateCmd(clientFn func() *Client, outputFn func() *Output, activate bool) *cobra.Command {
	use, short, done := "activate ID", "Activate a flow", "Flow activated"
	if !activate {
		use, short, done = "deactivate ID", "Deactivate a flow", "Flow deactivated"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			flow, err := client.UpdateFlow(cmd.Context(), args[0], UpdateFlowRequest{IsActive: &activate})
			if err != nil {
				return err
			}

			out.Success(done)
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}
}

func newFlowGraphCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var graphFile string

	cmd := &cobra.Command{
		Use:   "graph FLOW_ID",
		Short: "Replace the flow graph from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(graphFile)
			if err != nil {
				return fmt.Errorf("failed to read graph file: %w", err)
			}

			var req GraphRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("graph file is not valid JSON: %w", err)
			}
			if len(req.Nodes) == 0 {
				return fmt.Errorf("graph file contains no nodes")
			}

			flow, err := client.ReplaceGraph(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Graph replaced: %d nodes, %d edges", len(flow.Nodes), len(flow.Edges)))
			out.Print(flowHeaders, [][]string{flowRow(flow)}, flow)
			return nil
		},
	}

	cmd.Flags().StringVar(&graphFile, "file", "", "Path to graph JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}
