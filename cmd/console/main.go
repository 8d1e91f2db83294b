// Command console is an interactive terminal client for the clinic chat
// service. It signs in with a bearer token from the environment, keeps a
// websocket to the message server and drives the chat client from stdin.
//
// Commands:
//
//	/chats            refresh the inbox list from the directory
//	/inbox            print the current inbox list
//	/open <user-id>   open (or create) the 1:1 chat with a user
//	/select <chat-id> select a chat from the inbox
//	/history          print the active conversation
//	/quit             disconnect and exit
//
// Any other input line is sent to the active conversation.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"github.com/clinwire/clinic-console/internal/chat"
	appconfig "github.com/clinwire/clinic-console/internal/config"
	"github.com/clinwire/clinic-console/internal/directory"
	"github.com/clinwire/clinic-console/internal/session"
	"github.com/clinwire/clinic-console/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	sess := session.New()
	if cfg.AuthToken == "" {
		fmt.Fprintln(os.Stderr, "CLINIC_TOKEN is not set; sign in first and export the token")
		os.Exit(1)
	}
	if err := sess.SetCredentials(cfg.AuthToken); err != nil {
		fmt.Fprintln(os.Stderr, "invalid CLINIC_TOKEN:", err)
		os.Exit(1)
	}

	dir, err := directory.New(directory.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
		Tokens:  sess,
	})
	if err != nil {
		logger.Error("failed to build directory client", "error", err)
		os.Exit(1)
	}

	client := chat.New(dir, sess, chat.Options{
		WSURL:          cfg.ChatWSURL,
		ReconnectDelay: cfg.ChatReconnectDelay,
		Logger:         logger,
		OnMessage: func(msg chat.Message) {
			fmt.Printf("[%s] %s: %s\n", msg.ChatID, msg.SenderID, msg.Text)
		},
	})
	defer client.Close()

	if err := client.Connect(); err != nil {
		logger.Error("connect failed", "error", err)
		os.Exit(1)
	}
	if err := client.FetchChatList(); err != nil {
		fmt.Println("inbox refresh failed:", err)
	}

	fmt.Printf("signed in as %s — type /help for commands\n", sess.UserID())

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if err := client.SendMessage(line); err != nil {
				fmt.Println("send failed:", err)
			}
			continue
		}

		cmd, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/help":
			fmt.Println("/chats /inbox /open <user-id> /select <chat-id> /history /quit")
		case "/chats":
			if err := client.FetchChatList(); err != nil {
				fmt.Println("inbox refresh failed:", err)
				continue
			}
			fmt.Println("refreshing inbox...")
		case "/inbox":
			printInbox(client.Snapshot())
		case "/open":
			if arg == "" {
				fmt.Println("usage: /open <user-id>")
				continue
			}
			if err := client.OpenChatWithUser(arg); err != nil {
				fmt.Println("open failed:", err)
			}
		case "/select":
			if arg == "" {
				fmt.Println("usage: /select <chat-id>")
				continue
			}
			selectChat(client, arg)
		case "/history":
			for _, msg := range client.ActiveMessages() {
				fmt.Printf("  %s: %s\n", msg.SenderID, msg.Text)
			}
		case "/quit":
			client.Disconnect()
			return
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

func printInbox(snap chat.Snapshot) {
	if len(snap.ChatList) == 0 {
		fmt.Println("inbox is empty (try /chats to refresh)")
		return
	}
	for _, conv := range snap.ChatList {
		marker := " "
		if conv.ChatID == snap.ActiveChatID {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, conv.ChatID, strings.Join(conv.Participants, ", "))
	}
}

func selectChat(client *chat.Client, chatID string) {
	snap := client.Snapshot()
	conv, found := lo.Find(snap.ChatList, func(c chat.Conversation) bool {
		return c.ChatID == chatID
	})
	if !found {
		// Selectable anyway; participants are unknown until the list is
		// fetched, so replies cannot be addressed yet.
		fmt.Println("chat not in inbox, selecting without participants")
		conv = chat.Conversation{ChatID: chatID}
	}
	if err := client.SelectChat(conv); err != nil {
		fmt.Println("select failed:", err)
	}
}
