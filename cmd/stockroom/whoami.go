package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/diewo77/stockroom/internal/ownership"
	"github.com/diewo77/stockroom/internal/viewer"
)

type whoamiReport struct {
	Subject  *ownership.Subject `json:"subject"`
	IsAdmin  bool               `json:"isAdmin"`
	Products []productDecisions `json:"products,omitempty"`
}

type productDecisions struct {
	ID string `json:"id"`
	ownership.Decisions
}

func cmdWhoami(st *cliState) *cobra.Command {
	var (
		baseURL string
		token   string
		limit   int
	)
	c := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in subject and its permissions on listed products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if baseURL == "" {
				baseURL = "http://localhost:" + st.cfg.Server.Port
			}
			if token == "" {
				token = os.Getenv("STOCKROOM_TOKEN")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			f := viewer.NewHTTPFetcher(baseURL, token)
			v := viewer.New(f)
			v.Start(ctx)
			if err := v.Wait(ctx); err != nil {
				return fmt.Errorf("load subject: %w", err)
			}

			rep := whoamiReport{Subject: v.CurrentUser(), IsAdmin: v.IsAdmin()}
			if rep.Subject.Authenticated() {
				recs, err := f.FetchProducts(ctx, limit)
				if err != nil {
					return fmt.Errorf("list products: %w", err)
				}
				for i := range recs {
					rep.Products = append(rep.Products, productDecisions{ID: recs[i].ID, Decisions: v.Decisions(&recs[i])})
				}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	c.Flags().StringVar(&baseURL, "url", "", "server base URL (default http://localhost:$PORT)")
	c.Flags().StringVar(&token, "token", "", "bearer token (default $STOCKROOM_TOKEN)")
	c.Flags().IntVar(&limit, "limit", 20, "number of products to evaluate")
	return c
}
