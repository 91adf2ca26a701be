// verso-admin exposes the operator/debug surface over MCP: composite
// profile reads, the unpaginated signal dump, goal queries, and the user
// lifecycle operations (create, delete, migration claim).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/verso-app/verso/internal/config"
	"github.com/verso-app/verso/internal/goals"
	"github.com/verso-app/verso/internal/profile"
	"github.com/verso-app/verso/internal/signals"
	"github.com/verso-app/verso/internal/store"
	"github.com/verso-app/verso/internal/types"
	"github.com/verso-app/verso/internal/users"
)

type app struct {
	db      *store.DB
	users   *users.Manager
	goals   *goals.Tracker
	profile *profile.Aggregator
}

func main() {
	// Log to stderr so stdout is clean for JSON-RPC
	log.SetOutput(os.Stderr)
	log.SetPrefix("[verso-admin] ")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	cfg, err := config.Load(os.Getenv("VERSO_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := store.OpenFile(cfg.DatabasePath())
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	sig := signals.New(db)
	tracker := goals.New(db)
	a := &app{
		db:      db,
		users:   users.New(db),
		goals:   tracker,
		profile: profile.New(db, sig, tracker),
	}

	s := server.NewMCPServer(
		"verso-admin",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(profileTool(), a.handleProfile)
	s.AddTool(signalsDumpTool(), a.handleSignalsDump)
	s.AddTool(goalsTool(), a.handleGoals)
	s.AddTool(usersListTool(), a.handleUsersList)
	s.AddTool(userCreateTool(), a.handleUserCreate)
	s.AddTool(userDeleteTool(), a.handleUserDelete)
	s.AddTool(migrationStatusTool(), a.handleMigrationStatus)
	s.AddTool(migrationClaimTool(), a.handleMigrationClaim)

	log.Println("Starting verso-admin MCP server...")
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func profileTool() mcp.Tool {
	return mcp.NewTool("profile_get",
		mcp.WithDescription("Return the full composite profile for a user: life situation, Big Five, moral foundations, singletons, values, challenges, activities and active goals. Missing data comes back empty, never as an error."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User id to read")),
	)
}

func (a *app) handleProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	userID, _ := args["user_id"].(string)
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	p, err := a.profile.Complete(&types.Session{UserID: userID})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("profile: %v", err)), nil
	}
	return jsonResult(p)
}

func signalsDumpTool() mcp.Tool {
	return mcp.NewTool("signals_dump",
		mcp.WithDescription("Dump every signal row across all users, newest first. Debug capability: unfiltered and unpaginated."),
	)
}

func (a *app) handleSignalsDump(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := a.profile.AllSignals()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("signals: %v", err)), nil
	}
	return jsonResult(all)
}

func goalsTool() mcp.Tool {
	return mcp.NewTool("goals_active",
		mcp.WithDescription("List a user's active goals (stated or in_progress), most recently mentioned first."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User id to read")),
		mcp.WithNumber("limit", mcp.Description("Max rows to return (default 10)")),
	)
}

func (a *app) handleGoals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	userID, _ := args["user_id"].(string)
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	limit := 10
	if f, ok := args["limit"].(float64); ok && f > 0 {
		limit = int(f)
	}

	active, err := a.goals.Active(&types.Session{UserID: userID}, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("goals: %v", err)), nil
	}
	return jsonResult(active)
}

func usersListTool() mcp.Tool {
	return mcp.NewTool("users_list",
		mcp.WithDescription("List all users, most recently active first."),
	)
}

func (a *app) handleUsersList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := a.users.List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("users: %v", err)), nil
	}
	return jsonResult(list)
}

func userCreateTool() mcp.Tool {
	return mcp.NewTool("user_create",
		mcp.WithDescription("Create a user. Without avatar_color the next palette color is assigned round-robin."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithString("avatar_color", mcp.Description("Hex color, e.g. #81b29a")),
	)
}

func (a *app) handleUserCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	color, _ := args["avatar_color"].(string)

	u, err := a.users.Create(name, color)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("create: %v", err)), nil
	}
	return jsonResult(u)
}

func userDeleteTool() mcp.Tool {
	return mcp.NewTool("user_delete",
		mcp.WithDescription("Delete a user and every row they own in one transaction. Vector-index cleanup is queued durably; run verso-vecsync (or drain the outbox) afterwards. Returns success=false if the user does not exist."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("User id to delete")),
	)
}

func (a *app) handleUserDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	userID, _ := args["user_id"].(string)
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	res, err := a.users.Delete(userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("delete: %v", err)), nil
	}
	return jsonResult(res)
}

func migrationStatusTool() mcp.Tool {
	return mcp.NewTool("migration_status",
		mcp.WithDescription("Report whether ownerless legacy rows are waiting for a claim, with per-category counts."),
	)
}

func (a *app) handleMigrationStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending, err := a.users.HasPendingData()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status: %v", err)), nil
	}
	counts, err := a.users.PendingCounts()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("counts: %v", err)), nil
	}
	return jsonResult(map[string]any{"pending": pending, "counts": counts})
}

func migrationClaimTool() mcp.Tool {
	return mcp.NewTool("migration_claim",
		mcp.WithDescription("Reassign all ownerless legacy rows to the given user in one transaction. Returns the message ids whose vector-index entries will be retagged by the outbox drain."),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Claiming user id")),
	)
}

func (a *app) handleMigrationClaim(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	userID, _ := args["user_id"].(string)
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	res, err := a.users.Claim(userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("claim: %v", err)), nil
	}
	return jsonResult(res)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
