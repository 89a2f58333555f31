package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/ammerola/erp-admin/internal/listquery"
)

func listFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.IntFlag{Name: "page", Value: 1},
		&cli.IntFlag{Name: "limit", Value: 10},
		&cli.StringFlag{Name: "search", Aliases: []string{"q"}},
		&cli.StringFlag{Name: "status"},
		&cli.StringFlag{Name: "sort", Usage: "column to sort by"},
		&cli.BoolFlag{Name: "desc", Usage: "sort descending"},
		&cli.BoolFlag{Name: "all", Usage: "follow every page from --page on"},
	}, extra...)
}

// stateFromFlags builds the initial list state through the same reducer the
// controller uses.
func stateFromFlags(c *cli.Context) listquery.State {
	s := listquery.Reduce(listquery.NewState(), listquery.SetLimit{Limit: c.Int("limit")})
	s = listquery.Reduce(s, listquery.SetFilters{Filters: listquery.Filters{
		Search:     c.String("search"),
		Status:     c.String("status"),
		Priority:   c.String("priority"),
		AssignedTo: c.String("assigned-to"),
	}})
	if col := c.String("sort"); col != "" {
		s = listquery.Reduce(s, listquery.ToggleSort{Column: col})
		if c.Bool("desc") {
			s = listquery.Reduce(s, listquery.ToggleSort{Column: col})
		}
	}
	return listquery.Reduce(s, listquery.SetPage{Page: c.Int("page")})
}

// fetchPages loads the requested page, or every page from it onwards with
// --all, and returns the items with the final state.
func fetchPages[T any](c *cli.Context, fetch listquery.Fetcher[T]) ([]T, listquery.State, error) {
	ctx := c.Context
	ctrl := listquery.NewController(fetch, stateFromFlags(c), slog.Default())
	defer ctrl.Close()

	ctrl.Refresh(ctx)
	if err := ctrl.Wait(ctx); err != nil {
		return nil, listquery.State{}, err
	}
	snap := ctrl.Snapshot()
	if snap.State.Status == listquery.StatusError {
		return nil, snap.State, snap.State.Err
	}

	items := snap.Items
	for c.Bool("all") && snap.State.Page < snap.State.PageCount() {
		ctrl.Dispatch(ctx, listquery.SetPage{Page: snap.State.Page + 1})
		if err := ctrl.Wait(ctx); err != nil {
			return nil, snap.State, err
		}
		snap = ctrl.Snapshot()
		if snap.State.Status == listquery.StatusError {
			return items, snap.State, fmt.Errorf("page %d: %w", snap.State.Page, snap.State.Err)
		}
		items = append(items, snap.Items...)
	}
	return items, snap.State, nil
}

func pageFooter(s listquery.State, shown int) string {
	return fmt.Sprintf("page %d of %d, %d shown, %d total", s.Page, s.PageCount(), shown, s.Total)
}
