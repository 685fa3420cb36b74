package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/reconcile"
)

var reconcileTeam string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair mirrored team, group and document lists",
	Long: "reconcile recomputes Team.members/groups/documents, Group.members and document share lists " +
		"from each record's own teamId and groupId, and drops references to records that no longer exist.",
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileTeam, "team", "", "reconcile only this team id")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()
	be, err := openBackend(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer be.Close()

	r := reconcile.New(be.store)
	var reports []*reconcile.Report
	if reconcileTeam != "" {
		teamID, err := id.Parse(reconcileTeam)
		if err != nil {
			return err
		}
		rep, err := r.Team(ctx, teamID)
		if err != nil {
			return err
		}
		reports = append(reports, rep)
	} else if reports, err = r.All(ctx); err != nil {
		return err
	}

	changed := 0
	for _, rep := range reports {
		if rep.Changed() {
			changed++
		}
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "%d of %d teams repaired\n", changed, len(reports))
	return nil
}
