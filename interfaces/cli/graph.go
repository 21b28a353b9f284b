package cli

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"mindo/application/services"
	"mindo/domain/layout"
	"mindo/infrastructure/di"
)

var (
	algorithm string
	direction string
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Lay out a learner's canvas and persist the new positions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withContainer(cmd.Context(), func(c *di.Container) error {
			summary, err := c.Layout.Organize(cmd.Context(), userID, services.LayoutRequest{
				Algorithm: layout.Algorithm(algorithm),
				Direction: layout.Direction(direction),
			})
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), summary)
		})
	},
}

// nodeHealth is one row of the health report
type nodeHealth struct {
	ID     string `json:"id" yaml:"id"`
	Label  string `json:"label" yaml:"label"`
	Status string `json:"status" yaml:"status"`
	Health string `json:"health" yaml:"health"`
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the decay status of every node on the canvas",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withContainer(cmd.Context(), func(c *di.Container) error {
			state, err := c.Workspaces.Get(cmd.Context(), userID)
			if err != nil {
				return err
			}
			statuses := state.Health(time.Now())
			nodes, _ := state.Snapshot()

			rows := make([]nodeHealth, 0, len(statuses))
			for _, n := range nodes {
				h, ok := statuses[n.ID]
				if !ok {
					continue
				}
				rows = append(rows, nodeHealth{
					ID:     n.ID.String(),
					Label:  n.Label,
					Status: string(n.Status),
					Health: string(h),
				})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].Label < rows[j].Label })
			return render(cmd.OutOrStdout(), rows)
		})
	},
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "Move decayed nodes to review_due and persist the change",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withContainer(cmd.Context(), func(c *di.Container) error {
			state, err := c.Workspaces.Get(cmd.Context(), userID)
			if err != nil {
				return err
			}
			marked := state.MarkDue(time.Now())
			ids := make([]string, len(marked))
			for i, id := range marked {
				ids[i] = id.String()
			}
			return render(cmd.OutOrStdout(), map[string][]string{"nodeIds": ids})
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the analytics dashboard for a learner",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		return withContainer(cmd.Context(), func(c *di.Container) error {
			dashboard, err := c.Analytics.Dashboard(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), dashboard)
		})
	},
}

func init() {
	organizeCmd.Flags().StringVar(&algorithm, "algorithm", string(layout.AlgorithmHierarchical), "force or hierarchical")
	organizeCmd.Flags().StringVar(&direction, "direction", string(layout.LeftToRight), "LR or TB, hierarchical only")
}
