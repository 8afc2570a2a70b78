package clientcmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// NewTaskCommand builds the `task` command tree: enqueue, claim, nack.
func NewTaskCommand(apiBase func() string) *cobra.Command {
	taskCmd := &cobra.Command{Use: "task", Short: "Task operations"}

	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			payload, _ := cmd.Flags().GetString("payload")
			delayMs, _ := cmd.Flags().GetInt64("delay-ms")
			readyAtMs, _ := cmd.Flags().GetInt64("ready-at-ms")

			body := map[string]any{}
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return fmt.Errorf("--payload must be valid JSON")
				}
				body["payload"] = json.RawMessage(payload)
			}
			if delayMs > 0 {
				body["delay_ms"] = delayMs
			}
			if readyAtMs > 0 {
				body["ready_at_ms"] = readyAtMs
			}
			resp, err := postJSON(fmt.Sprintf("%s/v1/queues/%s/enqueue", apiBase(), queue), body)
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	enqueueCmd.Flags().String("queue", "default", "Queue name")
	enqueueCmd.Flags().String("payload", "", "Task payload (JSON)")
	enqueueCmd.Flags().Int64("delay-ms", 0, "Delay before the task becomes due, in ms")
	enqueueCmd.Flags().Int64("ready-at-ms", 0, "Absolute due time as unix ms (overrides --delay-ms)")
	taskCmd.AddCommand(enqueueCmd)

	claimCmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim every task that is due now",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			resp, err := postJSON(fmt.Sprintf("%s/v1/queues/%s/claim", apiBase(), queue), nil)
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	claimCmd.Flags().String("queue", "default", "Queue name")
	taskCmd.AddCommand(claimCmd)

	nackCmd := &cobra.Command{
		Use:   "nack",
		Short: "Report a failed attempt on a claimed task",
		Long:  "Reads the claimed task JSON from --task or stdin and asks the server to requeue or discard it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			taskJSON, _ := cmd.Flags().GetString("task")
			if taskJSON == "" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				taskJSON = string(b)
			}
			if !json.Valid([]byte(taskJSON)) {
				return fmt.Errorf("task must be valid JSON")
			}
			resp, err := postJSON(fmt.Sprintf("%s/v1/queues/%s/nack", apiBase(), queue),
				map[string]any{"task": json.RawMessage(taskJSON)})
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	nackCmd.Flags().String("queue", "default", "Queue name")
	nackCmd.Flags().String("task", "", "Claimed task JSON (reads stdin when omitted)")
	taskCmd.AddCommand(nackCmd)

	return taskCmd
}
