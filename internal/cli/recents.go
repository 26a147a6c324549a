package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/campuschat/internal/controller"
	"github.com/capitalize-ai/campuschat/internal/model"
	"github.com/capitalize-ai/campuschat/internal/recents"
)

var (
	recentsPlain bool
	recentsAll   bool
)

func init() {
	recentsCmd.Flags().BoolVar(&recentsPlain, "plain", false, "print the list and exit")
	recentsCmd.Flags().BoolVar(&recentsAll, "all", false, "with --plain, print every page")
}

func runRecents(cmd *cobra.Command, args []string) error {
	if !recentsPlain {
		return runTUI(controller.RouteRecents)
	}

	client, err := newClient(cfg.Client, log)
	if err != nil {
		return err
	}
	p := recents.New(client, cfg.Client.UserID, cfg.Client.PerPage, log)
	return printRecents(cmd.Context(), cmd.OutOrStdout(), p, recentsAll, location(cfg.Client))
}

func printRecents(ctx context.Context, w io.Writer, p *recents.Paginator, all bool, loc *time.Location) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := p.Load(ctx, 1); err != nil {
		return fmt.Errorf("list recent conversations: %w", err)
	}
	for all {
		err := p.LoadMore(ctx)
		if errors.Is(err, recents.ErrExhausted) {
			break
		}
		if err != nil {
			return fmt.Errorf("list recent conversations: %w", err)
		}
	}

	snap := p.Snapshot()
	if len(snap.Items) == 0 {
		fmt.Fprintln(w, "No conversations found.")
		return nil
	}

	fmt.Fprintf(w, "Recent conversations (%d of %d):\n\n", len(snap.Items), snap.Page.Total)
	for _, it := range snap.Items {
		ts := it.UpdatedAt
		if it.LastMessageTimestamp != nil {
			ts = *it.LastMessageTimestamp
		}
		status := ""
		if it.Status != "" && it.Status != model.ConversationActive {
			status = " [" + string(it.Status) + "]"
		}
		fmt.Fprintf(w, "%s  %s  %s%s\n", ts.In(loc).Format("2006-01-02 15:04"), it.ID, it.Title, status)
		if it.LastMessage != "" {
			fmt.Fprintf(w, "    %s\n", it.LastMessage)
		}
	}
	if snap.HasMore() {
		fmt.Fprintln(w, "\nMore conversations available, use --all to list them.")
	}
	return nil
}
