package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dimitrije/assessor-collab/internal/config"
	"github.com/dimitrije/assessor-collab/internal/database"
	"github.com/dimitrije/assessor-collab/internal/logging"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/dimitrije/assessor-collab/internal/services"
)

type memberFlag []string

func (m *memberFlag) String() string     { return strings.Join(*m, ",") }
func (m *memberFlag) Set(v string) error { *m = append(*m, v); return nil }

// parseMember splits "Name <email>" or "Name:email".
func parseMember(v string) (name, email string, err error) {
	if i := strings.Index(v, "<"); i > 0 && strings.HasSuffix(v, ">") {
		return strings.TrimSpace(v[:i]), strings.TrimSpace(v[i+1 : len(v)-1]), nil
	}
	if i := strings.Index(v, ":"); i > 0 {
		return strings.TrimSpace(v[:i]), strings.TrimSpace(v[i+1:]), nil
	}
	return "", "", fmt.Errorf("invalid member %q, expected \"Name:email\"", v)
}

func main() {
	var (
		name    = flag.String("name", "", "workspace name")
		desc    = flag.String("description", "", "workspace description")
		owner   = flag.String("owner", "", "owner as Name:email")
		modelID = flag.String("models", "", "comma separated model ids")
		members memberFlag
	)
	flag.Var(&members, "member", "editor as Name:email (repeatable)")
	flag.Parse()

	if *name == "" || *owner == "" {
		fmt.Println("Usage: seed-workspace -name <name> -owner Name:email [-member Name:email ...] [-models m1,m2]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logging.Setup(cfg)
	log := logging.Component("seed")

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	memberService := services.NewMemberService(db)
	workspaceService := services.NewWorkspaceService(db)
	jwtService := services.NewJWTService(cfg.JWTSecret, cfg.JWTAccessExpiry)

	ownerName, ownerEmail, err := parseMember(*owner)
	if err != nil {
		log.Fatal(err)
	}
	ownerMember, err := memberService.Create(ctx, ownerName, ownerEmail, "assessor")
	if err != nil {
		log.Fatalf("Failed to create owner: %v", err)
	}

	var modelIDs []string
	for _, id := range strings.Split(*modelID, ",") {
		if id = strings.TrimSpace(id); id != "" {
			modelIDs = append(modelIDs, id)
		}
	}

	workspace, err := workspaceService.Create(ctx, *name, *desc, modelIDs, ownerMember.ID)
	if err != nil {
		log.Fatalf("Failed to create workspace: %v", err)
	}

	fmt.Printf("Created workspace %d (%s)\n", workspace.ID, workspace.Name)
	printToken(jwtService, ownerMember, models.RoleOwner)

	for _, v := range members {
		memberName, memberEmail, err := parseMember(v)
		if err != nil {
			log.Fatal(err)
		}
		m, err := memberService.Create(ctx, memberName, memberEmail, "assessor")
		if err != nil {
			log.Fatalf("Failed to create member %s: %v", memberEmail, err)
		}
		if err := workspaceService.AddMember(ctx, workspace.ID, m.ID, models.RoleEditor); err != nil {
			log.Fatalf("Failed to add member %s: %v", memberEmail, err)
		}
		printToken(jwtService, m, models.RoleEditor)
	}
}

func printToken(jwtService *services.JWTService, m *models.TeamMember, role string) {
	token, err := jwtService.GenerateAccessToken(m.ID, m.Name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign token for %s: %v\n", m.Email, err)
		os.Exit(1)
	}
	fmt.Printf("  %-6s %d %s\n         token: %s\n", role, m.ID, m.Name, token)
}
