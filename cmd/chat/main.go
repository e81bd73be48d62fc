// Command chat is a line-oriented terminal client.
//
//	/users        list partners
//	/open <id>    open a conversation
//	/quit         exit
//
// Any other line is sent to the open conversation.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mmuslimabdulj/goat-dm/client"
	"github.com/mmuslimabdulj/goat-dm/internal/auth"
	"github.com/mmuslimabdulj/goat-dm/internal/chatview"
	"github.com/mmuslimabdulj/goat-dm/internal/domain"
	"github.com/mmuslimabdulj/goat-dm/internal/logging"
)

// printer echoes live events for the open conversation.
type printer struct {
	*chatview.Store
	self string
}

func (p printer) HandleMessage(msg domain.Message) {
	p.Store.HandleMessage(msg)
	if msg.Peer(p.self) == p.Partner() {
		fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), msg.SenderID, msg.Text)
	} else {
		fmt.Printf("* new message from %s\n", msg.SenderID)
	}
}

func (p printer) HandleAck(domain.Message) {}

func (p printer) HandleError(message string) {
	fmt.Printf("! %s\n", message)
}

func main() {
	server := flag.String("server", "http://localhost:8080", "server base url")
	token := flag.String("token", os.Getenv("GOAT_DM_TOKEN"), "session token")
	flag.Parse()

	logger := logging.New(os.Getenv("LOG_LEVEL"), true)

	self, err := auth.UnverifiedUserID(*token)
	if err != nil {
		logger.Fatal().Err(err).Msg("a session token is required, see cmd/token")
	}

	c, err := client.New(*server, *token)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid server url")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := chatview.New(self, c)
	users, err := c.Users(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list users")
	}
	store.SetPartners(users)

	conn, err := c.Dial(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect")
	}
	defer conn.Close()

	go func() {
		if err := conn.Listen(ctx, printer{Store: store, self: self}); err != nil {
			logger.Error().Err(err).Msg("connection lost")
		}
		stop()
	}()

	fmt.Printf("signed in as %s, /users to list partners\n", self)
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !handleLine(ctx, store, strings.TrimSpace(line)) {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, store *chatview.Store, line string) bool {
	switch {
	case line == "":
	case line == "/quit":
		return false
	case line == "/users":
		for _, conv := range store.Conversations() {
			status := " "
			if conv.Online {
				status = "*"
			}
			fmt.Printf("%s %-20s %-20s unread=%d\n", status, conv.Partner.ID, conv.Partner.Name, conv.Unread)
		}
	case strings.HasPrefix(line, "/open "):
		partner := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
		if err := store.Select(ctx, partner); err != nil {
			fmt.Printf("! %v\n", err)
			return true
		}
		for _, msg := range store.Messages() {
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), msg.SenderID, msg.Text)
		}
	default:
		if _, err := store.Send(ctx, line); err != nil {
			fmt.Printf("! %v\n", err)
		}
	}
	return true
}
