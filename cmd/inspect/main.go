// Command inspect prints the accounts and recent messages of a chat database.
// Password hashes are never shown.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"secure-chat/domain"
	"secure-chat/repositories"

	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/chat", "Path to badger DB")
	kind := flag.String("kind", "messages", "What to list: users or messages")
	limit := flag.Int("limit", 50, "Number of most recent messages to list")
	flag.Parse()

	logger := logs.GetLoggerFromString("ERROR")
	db, err := repositories.OpenReadOnlyDB(*dbPath, logger)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	switch *kind {
	case "users":
		err = printUsers(os.Stdout, repositories.NewUserRepository(db))
	case "messages":
		err = printMessages(os.Stdout, repositories.NewMessageReader(db, logger), *limit)
	default:
		err = fmt.Errorf("unknown kind %q", *kind)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
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

func printUsers(w io.Writer, users repositories.IUserRepository) error {
	list, err := users.ListUsers()
	if err != nil {
		return err
	}
	table := newTable(w, []string{"Username", "Created"})
	for _, u := range list {
		table.Append([]string{u.Username, u.CreatedAt.UTC().Format("2006-01-02 15:04:05")})
	}
	table.Render()
	return nil
}

type messageLister interface {
	GetLastMessages(limit int) ([]domain.ChatMessage, error)
}

func printMessages(w io.Writer, messages messageLister, limit int) error {
	list, err := messages.GetLastMessages(limit)
	if err != nil {
		return err
	}
	table := newTable(w, []string{"ID", "Time", "Author", "Text"})
	for _, m := range list {
		table.Append([]string{
			fmt.Sprintf("%d", m.ID),
			m.At.UTC().Format("2006-01-02 15:04:05"),
			m.Username,
			m.Text,
		})
	}
	table.Render()
	return nil
}
