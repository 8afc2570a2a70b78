package clientcmd

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
)

// NewQueueCommand builds the `queue` command tree: stats, clear, subscribe.
func NewQueueCommand(apiBase func() string) *cobra.Command {
	queueCmd := &cobra.Command{Use: "queue", Short: "Queue operations"}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			resp, err := http.Get(fmt.Sprintf("%s/v1/queues/%s/stats", apiBase(), queue))
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	statsCmd.Flags().String("queue", "default", "Queue name")
	queueCmd.AddCommand(statsCmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every entry in the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			resp, err := postJSON(fmt.Sprintf("%s/v1/queues/%s/clear", apiBase(), queue), nil)
			if err != nil {
				return err
			}
			return printResponse(resp)
		},
	}
	clearCmd.Flags().String("queue", "default", "Queue name")
	queueCmd.AddCommand(clearCmd)

	subscribeCmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Stream tasks as they become due (SSE)",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, _ := cmd.Flags().GetString("queue")
			filter, _ := cmd.Flags().GetString("filter")

			u := fmt.Sprintf("%s/v1/queues/%s/subscribe", apiBase(), queue)
			if filter != "" {
				u += "?filter=" + url.QueryEscape(filter)
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned %s", resp.Status)
			}
			sc := bufio.NewScanner(resp.Body)
			for sc.Scan() {
				line := sc.Text()
				if strings.HasPrefix(line, "data: ") {
					fmt.Println(strings.TrimPrefix(line, "data: "))
				}
			}
			return sc.Err()
		},
	}
	subscribeCmd.Flags().String("queue", "default", "Queue name")
	subscribeCmd.Flags().String("filter", "", "CEL expression selecting which tasks to receive")
	queueCmd.AddCommand(subscribeCmd)

	return queueCmd
}
