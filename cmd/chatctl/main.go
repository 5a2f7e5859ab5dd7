// chatctl is the operator sidekick: mint tokens for local testing and
// inspect the room and message records of a relay's badger store without
// stopping the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"styx-chat/auth"
	"styx-chat/domain/chat"
	"styx-chat/observability"
	"styx-chat/repositories"
)

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "token":
		err = mintToken(os.Args[2:])
	case "rooms":
		err = listRooms(os.Args[2:])
	case "messages":
		err = listMessages(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: chatctl <token|rooms|messages> [flags]")
}

func mintToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", os.Getenv("AUTH_SECRET"), "Signing secret (defaults to AUTH_SECRET)")
	userID := fs.String("user", "", "User id (subject)")
	username := fs.String("name", "", "Display name")
	role := fs.String("role", "user", "Role: user or admin")
	restricted := fs.Bool("restricted", false, "Mark the account as restricted")
	ttl := fs.Duration("ttl", 8*time.Hour, "Token lifetime")
	_ = fs.Parse(args)

	if *secret == "" || *userID == "" || *username == "" {
		return fmt.Errorf("token requires -secret (or AUTH_SECRET), -user and -name")
	}

	token, err := auth.NewVerifier(*secret).Mint(chat.Identity{
		UserID:     *userID,
		Username:   *username,
		Role:       chat.Role(*role),
		Restricted: *restricted,
	}, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func listRooms(args []string) error {
	fs := flag.NewFlagSet("rooms", flag.ExitOnError)
	dbPath := fs.String("db", "./data/badger", "Path to badger DB")
	_ = fs.Parse(args)

	db, err := openDB(*dbPath)
	if err != nil {
		return fmt.Errorf("opening badger: %w", err)
	}
	defer db.Close()

	store := repositories.NewBadgerRoomStore(db, observability.NewLogger("ERROR"))
	rooms, err := store.List(context.Background())
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Println("====== Rooms ======")
	table := newTable([]string{"ID", "Name", "Created", "By", "AI", "Private", "Assigned"})
	for _, room := range rooms {
		table.Append([]string{
			room.ID,
			room.Name,
			room.CreatedAt.Format("2006-01-02 15:04"),
			room.CreatedBy,
			fmt.Sprintf("%t", room.AIEnabled),
			fmt.Sprintf("%t", room.Private),
			fmt.Sprintf("%d", len(room.AssignedUsers)),
		})
	}
	table.Render()
	return nil
}

func listMessages(args []string) error {
	fs := flag.NewFlagSet("messages", flag.ExitOnError)
	dbPath := fs.String("db", "./data/badger", "Path to badger DB")
	roomID := fs.String("room", "general", "Room to inspect")
	limit := fs.Int("limit", 20, "Number of recent messages")
	_ = fs.Parse(args)

	db, err := openDB(*dbPath)
	if err != nil {
		return fmt.Errorf("opening badger: %w", err)
	}
	defer db.Close()

	store := repositories.NewBadgerMessageStore(db, observability.NewLogger("ERROR"), 0)
	messages, err := store.Recent(context.Background(), *roomID, *limit)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("====== %s ======\n", *roomID)
	table := newTable([]string{"Time", "Seq", "Sender", "Type", "Content"})
	for _, m := range messages {
		content := m.Content
		if len(content) > 80 {
			content = content[:77] + "..."
		}
		table.Append([]string{
			m.CreatedAt.Format("15:04:05"),
			fmt.Sprintf("%d", m.Seq),
			m.SenderName,
			string(m.Type),
			content,
		})
	}
	table.Render()
	return nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

// openDB opens the store read-only so a running relay keeps its lock.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
