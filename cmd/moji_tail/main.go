// moji_tail is a line-mode client for poking at a chat server: it connects
// with the saved session, prints every event and accepts simple commands.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/xonecas/moji/internal/api"
	"github.com/xonecas/moji/internal/chat"
	"github.com/xonecas/moji/internal/config"
	"github.com/xonecas/moji/internal/store"
	"github.com/xonecas/moji/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to config file")
	socket := flag.String("socket", "", "Websocket URL (overrides config)")
	verbose := flag.Bool("v", false, "Log engine debug output to stderr")
	flag.Parse()

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *socket != "" {
		cfg.Server.SocketURL = *socket
	}

	s, err := store.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	sess, err := s.LoadSession()
	if err != nil {
		fmt.Fprintf(os.Stderr, "No usable session (%v). Sign in with moji -login first.\n", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.Server.APIURL, api.Options{
		Timeout:   cfg.HTTP.Timeout.Duration,
		RateLimit: cfg.HTTP.RateLimit,
		RateBurst: cfg.HTTP.RateBurst,
	})
	client.SetToken(sess.AccessToken)

	session := chat.NewSession(chat.SessionDeps{
		API: client,
		Dialer: &transport.WSDialer{
			URL:          cfg.Server.SocketURL,
			Token:        client.Token,
			PingInterval: cfg.Realtime.PingInterval.Duration,
			WriteTimeout: cfg.Realtime.WriteTimeout.Duration,
		},
		Store:  s,
		Config: cfg,
	}, chat.User{ID: sess.UserID, Username: sess.Username, FullName: sess.FullName})
	defer session.Close()

	events := session.Bus.Subscribe()
	go printEvents(session, events)

	ctx := context.Background()
	fmt.Printf("Connecting to %s as %s...\n", cfg.Server.SocketURL, sess.UserID)
	if err := session.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Start: %v\n", err)
	}

	fmt.Println("Commands:")
	fmt.Println("  friends                 list partners, most recent first")
	fmt.Println("  open <partner-id>       load a conversation")
	fmt.Println("  older                   load the previous page")
	fmt.Println("  send <text>             send to the open conversation")
	fmt.Println("  image <url>             send an image to the open conversation")
	fmt.Println("  state | reconnect | quit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)

		switch cmd {
		case "quit", "exit":
			return

		case "friends":
			for i, u := range session.Index.Entries() {
				fmt.Printf("  %2d. %s (%s)\n", i+1, u.DisplayName(), u.ID)
			}

		case "open":
			partner, ok := findPartner(session, arg)
			if !ok {
				fmt.Fprintf(os.Stderr, "Unknown partner %q\n", arg)
				continue
			}
			if err := session.Open(ctx, partner); err != nil {
				fmt.Fprintf(os.Stderr, "Open: %v\n", err)
				continue
			}
			printView(session, session.Messages.Snapshot().Messages)

		case "older":
			n, err := session.Messages.LoadOlder(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Older: %v\n", err)
				continue
			}
			msgs := session.Messages.Snapshot().Messages
			if n > len(msgs) {
				n = len(msgs)
			}
			printView(session, msgs[:n])

		case "send":
			if err := session.Send(ctx, arg, ""); err != nil {
				fmt.Fprintf(os.Stderr, "Send: %v\n", err)
			}

		case "image":
			if err := session.Send(ctx, "", arg); err != nil {
				fmt.Fprintf(os.Stderr, "Send: %v\n", err)
			}

		case "state":
			view := session.Messages.Snapshot()
			fmt.Printf("  connection: %s\n", session.Conn.State())
			fmt.Printf("  open: %s (%d messages, more=%v)\n", view.Partner.ID, len(view.Messages), view.HasMore)

		case "reconnect":
			if err := session.Connect(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Reconnect: %v\n", err)
			}

		default:
			fmt.Fprintf(os.Stderr, "Unknown command %q\n", cmd)
		}
	}
}

func findPartner(session *chat.Session, id string) (chat.User, bool) {
	for _, u := range session.Index.Entries() {
		if u.ID == id || u.Username == id {
			return u, true
		}
	}
	return chat.User{}, false
}

func printView(session *chat.Session, msgs []chat.Message) {
	for _, m := range msgs {
		printMessage(session, m)
	}
}

func printMessage(session *chat.Session, m chat.Message) {
	who := m.SenderID
	if who == session.Profile.ID {
		who = "you"
	}
	body := m.Content
	if m.IsImage() {
		body = strings.TrimSpace(body + " [image] " + m.ImageURL)
	}
	fmt.Printf("  %s %s: %s\n", m.CreatedAt.Local().Format("15:04:05"), who, body)
}

func printEvents(session *chat.Session, events <-chan chat.Event) {
	for ev := range events {
		switch data := ev.Data.(type) {
		case chat.StateChangeData:
			fmt.Printf("\n* connection %s -> %s\n", data.OldState, data.NewState)
		case chat.MessageData:
			fmt.Println()
			printMessage(session, data.Message)
		case chat.ErrorData:
			fmt.Printf("\n* %s: %s\n", ev.Type, data.Error)
		case chat.NoticeData:
			fmt.Printf("\n* %s\n", data.Text)
		case chat.HistoryData:
			fmt.Printf("\n* %s: %d messages, more=%v\n", ev.Type, data.Count, data.HasMore)
		default:
			if ev.Type == chat.EventIndexChanged {
				fmt.Printf("\n* partner list changed\n")
			}
		}
	}
}
