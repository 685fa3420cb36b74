package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/document"
	"github.com/alecgard/mergeflow/internal/domain"
	"github.com/alecgard/mergeflow/internal/id"
	"github.com/alecgard/mergeflow/internal/invite"
	"github.com/alecgard/mergeflow/internal/member"
	"github.com/alecgard/mergeflow/internal/team"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the Acme demo team",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

const demoCompany = "Acme"

// errAlreadySeeded is returned when the demo team exists.
var errAlreadySeeded = errors.New("demo data already exists")

type seeded struct {
	Team   *domain.Team
	Member *domain.Member
	Group  *domain.Group
	File   id.ID
	Folder *domain.Document
}

// seedAcme builds the demo team: owner a@acme.com, member b@acme.com in
// group Eng, and a folder Specs holding a hidden spec.pdf, shared with Eng.
func seedAcme(ctx context.Context, svc *services) (*seeded, error) {
	teams, err := svc.teams.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking existing teams: %w", err)
	}
	for _, t := range teams {
		if t.CompanyName == demoCompany {
			return nil, errAlreadySeeded
		}
	}

	created, err := svc.teams.Create(ctx, team.CreateInput{
		CompanyName: demoCompany,
		OwnerID:     "uid-a",
		OwnerEmail:  "a@acme.com",
		OwnerRole:   "ceo",
	})
	if err != nil {
		return nil, fmt.Errorf("creating team: %w", err)
	}
	s := &seeded{Team: created.Team}

	mres, err := svc.members.Create(ctx, member.CreateInput{
		TeamID:  s.Team.ID,
		Name:    "Bea",
		Email:   "b@acme.com",
		UID:     "uid-b",
		Company: demoCompany,
		Role:    "engineer",
		Type:    "employee",
	})
	if err != nil {
		return nil, fmt.Errorf("creating member: %w", err)
	}
	s.Member = mres.Member

	if s.Group, err = svc.groups.Create(ctx, s.Team.ID, "Eng", []id.ID{s.Member.ID}); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	batch, err := svc.documents.UploadFiles(ctx, s.Team.ID, []document.FileInput{
		{Name: "spec.pdf", Size: 2048, URL: "https://files.example.com/acme/spec.pdf", Type: "application/pdf"},
	}, false)
	if err != nil {
		return nil, fmt.Errorf("uploading file: %w", err)
	}
	s.File = batch.DocumentIDs[0]

	if s.Folder, err = svc.documents.CreateFolder(ctx, s.Team.ID, "Specs", "", *batch); err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}
	if _, err := svc.documents.Share(ctx, s.Folder.ID, s.Team.ID, document.ShareInput{GroupID: s.Group.ID}); err != nil {
		return nil, fmt.Errorf("sharing folder: %w", err)
	}
	return s, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
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

	// Demo data never sends real mail.
	invites := invite.NewService(invite.LogMailer{}, nil)
	svc := newServices(be.store, invites, nil, nil, audit.Discard, cfg.Documents.MaxTags)

	s, err := seedAcme(ctx, svc)
	if errors.Is(err, errAlreadySeeded) {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("seeded demo team", "team_id", s.Team.ID)
	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Team:    %s (%s), owner a@acme.com\n", s.Team.CompanyName, s.Team.ID)
	fmt.Printf("Member:  %s (%s)\n", s.Member.Email, s.Member.ID)
	fmt.Printf("Group:   %s (%s)\n", s.Group.Name, s.Group.ID)
	fmt.Printf("Folder:  %s (%s), shared with %s\n", s.Folder.Name, s.Folder.ID, s.Group.Name)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  curl 'http://%s/api/documents?teamId=%s&userEmail=b@acme.com'\n", cfg.Addr(), s.Team.ID)
	return nil
}
