package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/valsssa/tutorhub-chat/internal/api"
	"github.com/valsssa/tutorhub-chat/internal/config"
	"github.com/valsssa/tutorhub-chat/internal/logger"
	"github.com/valsssa/tutorhub-chat/internal/session"
	"github.com/valsssa/tutorhub-chat/internal/transport"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	fs := flag.NewFlagSet("tutorchat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	conversation := fs.Int64("conversation", 0, "Conversation ID to open")
	partner := fs.Int64("partner", 0, "Partner user ID for presence/typing")
	debug := fs.Bool("debug", false, "Enable debug logging")
	showHelp := fs.Bool("help", false, "Show help")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *showHelp {
		printUsage()
		return nil
	}
	if *conversation == 0 {
		printUsage()
		return fmt.Errorf("--conversation is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *debug || cfg.Debug {
		logger.SetLevel(logger.LevelDebug)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+cfg.Token)

	sess := session.New(session.Options{
		ConversationID:     *conversation,
		PartnerID:          *partner,
		URL:                cfg.SocketURL(*conversation),
		Header:             header,
		Token:              cfg.Token,
		API:                api.NewHTTPClient(cfg.ServerURL, cfg.Token),
		OnEvent:            printEvent,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		ReconnectBaseDelay: cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.ReconnectMaxDelay,
	})
	defer sess.Close()

	log.Printf("Opening conversation %d on %s. Press Ctrl+C to exit.", *conversation, cfg.ServerURL)

	go readCommands(sess)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down.")
	return nil
}

// printEvent renders one session event as a log line.
func printEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventState:
		if ev.Err != nil {
			log.Printf("[conn] %s (%v)", ev.State, ev.Err)
		} else {
			log.Printf("[conn] %s", ev.State)
		}
	case session.EventMessage:
		log.Printf("[%s] user %d: %s", ev.Message.CreatedAt.Local().Format("15:04"), ev.UserID, ev.Message.Content)
	case session.EventRead:
		log.Printf("[read] message %d", ev.Message.ID)
	case session.EventEdited:
		log.Printf("[edit] message %d: %s", ev.Message.ID, ev.Message.Content)
	case session.EventDeleted:
		log.Printf("[del] message %d", ev.Message.ID)
	case session.EventTyping:
		log.Printf("[typing] user %d", ev.UserID)
	case session.EventPresence:
		log.Printf("[presence] updated")
	case session.EventError:
		log.Printf("[server] %s", ev.Text)
	}
}

// readCommands drives the session from stdin lines.
func readCommands(sess *session.Session) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "older":
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := sess.LoadOlder(ctx); err != nil {
				log.Printf("load older: %v", err)
			} else {
				for _, m := range sess.Messages() {
					log.Printf("[%s] user %d: %s", m.CreatedAt.Local().Format("15:04"), m.SenderID, m.Content)
				}
			}
			cancel()
		case line == "read-all":
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			if err := sess.MarkThreadRead(ctx); err != nil {
				log.Printf("mark thread read: %v", err)
			}
			cancel()
		case strings.HasPrefix(line, "read "):
			id, err := strconv.ParseInt(strings.TrimPrefix(line, "read "), 10, 64)
			if err != nil {
				log.Printf("read: bad message id")
				continue
			}
			sess.MarkAsRead(id)
		case line == "typing":
			sess.InputTyping()
		case line == "reconnect":
			sess.Reconnect()
		case line == "status":
			log.Printf("state=%s err=%v messages=%d more=%v",
				sess.State(), sess.Err(), len(sess.Messages()), sess.HasMore())
		default:
			log.Printf("unknown command %q", line)
		}
		if sess.State() == transport.StateDisconnected && sess.Err() != nil {
			log.Printf("connection is down: %v (type 'reconnect' to retry)", sess.Err())
		}
	}
}

func printUsage() {
	fmt.Println(`tutorchat - terminal client for TutorHub conversations

Usage:
  tutorchat --conversation <id> [--partner <user-id>] [--debug]

Commands (stdin while running):
  older       Load the next page of older messages
  read <id>   Send a read receipt for one message
  read-all    Mark the whole conversation read
  typing      Signal typing to the partner
  reconnect   Reconnect after a terminal error
  status      Print connection and timeline status

Environment Variables:
  TUTORHUB_SERVER_URL           Backend origin, e.g. https://tutorhub.example
  TUTORHUB_TOKEN                Bearer access token
  TUTORHUB_TOKEN_FILE           File holding the token (used when TUTORHUB_TOKEN is empty)
  TUTORHUB_DEBUG                Enable debug logging (true/1)
  TUTORHUB_HEARTBEAT_INTERVAL   Override ping cadence (e.g. 45s)
  TUTORHUB_RECONNECT_BASE_DELAY Override backoff seed (e.g. 500ms)
  TUTORHUB_RECONNECT_MAX_DELAY  Override backoff cap (e.g. 1m)

Example:
  TUTORHUB_SERVER_URL=http://localhost:8000 TUTORHUB_TOKEN=... tutorchat --conversation 3 --partner 9`)
}
