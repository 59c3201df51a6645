package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/api"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/chatview"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/config"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/crypto"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/session"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/internal/transport"
	"github.com/2025-GNU-PBL/FRONTEND-sub001/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := flag.NewFlagSet("chatkit", flag.ContinueOnError)
	debug := flags.Bool("debug", cfg.Debug, "enable verbose logging")
	category := flags.String("category", "", "filter rooms by product category")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	args := flags.Args()

	if *debug {
		logger.SetLevel(logger.LevelDebug)
	}

	if len(args) == 0 {
		printUsage()
		return nil
	}

	switch args[0] {
	case "rooms":
		return roomsCommand(cfg, *category)
	case "chat":
		if len(args) < 2 {
			return fmt.Errorf("usage: chatkit chat <roomID>")
		}
		roomID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || roomID <= 0 {
			return fmt.Errorf("invalid room id %q", args[1])
		}
		return chatCommand(cfg, roomID)
	case "version", "--version", "-v":
		fmt.Println("chatkit v1.0.0")
		return nil
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func roomsCommand(cfg *config.Config, category string) error {
	token, err := cfg.Token()
	if err != nil {
		return err
	}
	client := api.New(cfg.ServerURL, token)
	rooms, err := client.ListRooms(context.Background(), category)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Println("No chat rooms.")
		return nil
	}
	for _, room := range rooms {
		unread := ""
		if room.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", room.UnreadCount)
		}
		fmt.Printf("%6d  %-20s %-20s %s%s\n",
			room.ChatRoomID, room.PartnerName, room.ProductName, room.LastMessage, unread)
	}
	return nil
}

func chatCommand(cfg *config.Config, roomID int64) error {
	token, err := cfg.Token()
	if err != nil {
		return err
	}
	identity, err := crypto.ParseIdentity(token)
	if err != nil {
		return fmt.Errorf("failed to resolve identity: %w", err)
	}

	manager := session.NewManager(transport.NewHandle(cfg.BrokerURL), nil)
	manager.SetIdentity(identity.UserID, identity.Role)

	var mu sync.Mutex
	var messages []session.ChatMessage

	manager.OnMessage(func(msg session.ChatMessage, room int64) {
		if room != roomID {
			return
		}
		mu.Lock()
		messages = session.ApplyIncoming(messages, msg)
		snapshot := make([]session.ChatMessage, len(messages))
		copy(snapshot, messages)
		mu.Unlock()
		render(snapshot, msg)
	})
	manager.OnError(func(err error) {
		logger.Warnf("chat error: %v", err)
	})
	manager.OnClose(func(cause error) {
		fmt.Println("! connection lost, reconnecting...")
	})
	manager.OnConnect(func() {
		// Subscriptions do not survive a drop; re-join on every connect.
		manager.Subscribe(roomID)
	})

	if err := manager.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer manager.Disconnect()

	fmt.Printf("Joined room %d as %s (%s). Type a message, Ctrl-C to quit.\n",
		roomID, identity.UserID, identity.Role)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

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
		case <-sigs:
			fmt.Println("\nBye.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			local, sent := manager.Send(roomID, identity.Role, identity.UserID, text)
			if !sent {
				fmt.Println("! not connected, message not sent")
				continue
			}
			mu.Lock()
			messages = session.ApplyIncoming(messages, local)
			mu.Unlock()
		}
	}
}

// render prints the newest message with its grouping flags applied.
func render(messages []session.ChatMessage, latest session.ChatMessage) {
	fmt.Println(renderLine(messages, latest))
}

func renderLine(messages []session.ChatMessage, latest session.ChatMessage) string {
	// A confirmed message may have replaced an entry before the tail, so
	// locate it by id rather than assuming the last position.
	i := len(messages) - 1
	for j := range messages {
		if messages[j].ID == latest.ID {
			i = j
			break
		}
	}
	flags := chatview.GroupFlags(messages)
	prefix := "  "
	if latest.AuthorRole == session.AuthorPartner && flags[i].ShowPartnerAvatar {
		prefix = "@ "
	}
	suffix := ""
	if flags[i].ShowTimeLabel {
		suffix = "  [" + latest.SentAtLabel + "]"
	}
	marker := ""
	if id, ok := chatview.ReadReceiptID(messages); ok && id == latest.ID {
		marker = " ✓"
	}
	return fmt.Sprintf("%s%s: %s%s%s", prefix, latest.AuthorRole, latest.Text, suffix, marker)
}

func printUsage() {
	fmt.Println(`chatkit - marketplace chat client

Usage:
  chatkit rooms [-category <name>]   list chat rooms
  chatkit chat <roomID>              join a room and chat
  chatkit version                    print version
  chatkit help                       show this help

Environment:
  CHATKIT_SERVER_URL   REST API base URL
  CHATKIT_BROKER_URL   chat broker websocket URL
  CHATKIT_TOKEN        access token (overrides the token file)
  CHATKIT_HOME_DIR     local state directory (default ~/.chatkit)
  CHATKIT_DEBUG        enable verbose logging`)
}
