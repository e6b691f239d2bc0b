// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	"github.com/osa030/guildbox/internal/api/httpapi"
)

var (
	app     = kingpin.New("guildbox-admin", "guildbox admin client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("10s").Duration()

	// guilds command
	guildsCmd = app.Command("guilds", "List guilds with music state").Alias("list")

	// status command
	statusCmd   = app.Command("status", "Show a guild's playback and queue")
	statusGuild = statusCmd.Arg("guild", "Guild ID").Required().String()

	// skip command
	skipCmd   = app.Command("skip", "Skip tracks in a guild")
	skipGuild = skipCmd.Arg("guild", "Guild ID").Required().String()
	skipN     = skipCmd.Arg("n", "Number of tracks to skip").Default("1").Int()

	// pause command
	pauseCmd   = app.Command("pause", "Pause a guild's track")
	pauseGuild = pauseCmd.Arg("guild", "Guild ID").Required().String()

	// resume command
	resumeCmd   = app.Command("resume", "Resume a guild's track")
	resumeGuild = resumeCmd.Arg("guild", "Guild ID").Required().String()

	// stop command
	stopCmd   = app.Command("stop", "Disconnect a guild from voice")
	stopGuild = stopCmd.Arg("guild", "Guild ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	client := httpapi.NewClient(*server, *token, &http.Client{Timeout: *timeout})
	ctx := context.Background()

	switch cmd {
	case guildsCmd.FullCommand():
		listGuilds(ctx, client)
	case statusCmd.FullCommand():
		status(ctx, client, *statusGuild)
	case skipCmd.FullCommand():
		printAction(client.Skip(ctx, *skipGuild, *skipN))
	case pauseCmd.FullCommand():
		printAction(client.Pause(ctx, *pauseGuild))
	case resumeCmd.FullCommand():
		printAction(client.Resume(ctx, *resumeGuild))
	case stopCmd.FullCommand():
		printAction(client.Stop(ctx, *stopGuild))
	}
}

func listGuilds(ctx context.Context, client *httpapi.Client) {
	guilds, err := client.ListGuilds(ctx)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if len(guilds) == 0 {
		fmt.Println("No guilds")
		return
	}

	fmt.Printf("%-20s %-8s %-9s %-5s %s\n", "GUILD", "STATE", "CONNECTED", "QUEUE", "NOW PLAYING")
	for _, g := range guilds {
		fmt.Printf("%-20s %-8s %-9t %-5d %s\n", g.GuildID, g.State, g.Connected, g.QueueSize, g.NowPlaying)
	}
}

func status(ctx context.Context, client *httpapi.Client, guildID string) {
	g, err := client.GetGuild(ctx, guildID)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n=== GUILD STATUS ===")
	fmt.Printf("Guild: %s\n", g.GuildID)
	fmt.Printf("State: %s\n", g.State)
	fmt.Printf("Connected: %t\n", g.Connected)
	if g.Advancing {
		fmt.Println("Starting next track...")
	}
	if g.NowPlaying != "" {
		fmt.Printf("Now Playing: %s\n", g.NowPlaying)
	}

	fmt.Printf("\nQueue (%d):\n", g.QueueSize)
	for i, s := range g.Queue {
		added := s.AddedAt
		if t, err := time.Parse(time.RFC3339, s.AddedAt); err == nil {
			added = t.Local().Format(time.DateTime)
		}
		fmt.Printf("  %2d. %s [%s] requested by %s at %s\n", i+1, s.Name, s.Kind, s.Requester, added)
	}
	fmt.Println()
}

func printAction(resp *httpapi.ActionResponse, err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if !resp.Success {
		fmt.Printf("Failed: %s\n", resp.Message)
		os.Exit(1)
	}

	fmt.Println(resp.Message)
	if resp.Dropped > 0 || resp.Remaining > 0 {
		fmt.Printf("Dropped: %d, Remaining: %d\n", resp.Dropped, resp.Remaining)
	}
}
