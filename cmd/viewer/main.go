package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"chat-relay/auth"
	"chat-relay/domain"

	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Config for the interactive terminal client. The viewer signs its own
// token, so it needs the same secret as the relay it connects to.
type Config struct {
	ServerAddr string `envconfig:"SERVER_ADDR" default:"localhost:8080"`
	UserID     string `envconfig:"USER_ID" required:"true"`
	JWTSecret  string `envconfig:"JWT_SECRET" required:"true"`
}

type frame struct {
	ChatID    string `json:"chat_id"`
	Content   string `json:"content,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Replay    bool   `json:"replay,omitempty"`
}

var (
	incoming = color.New(color.BgBlack, color.FgGreen)
	replayed = color.New(color.BgBlack, color.FgGray)
	failure  = color.New(color.BgBlack, color.FgRed)
)

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	userID, err := uuid.Parse(config.UserID)
	if err != nil {
		log.Fatalf("USER_ID must be a UUID: %v", err)
	}

	token, err := auth.NewTokenVerifier(config.JWTSecret).GenerateToken(userID, time.Hour)
	if err != nil {
		log.Fatalf("Token generation failed: %v", err)
	}

	url := fmt.Sprintf("ws://%s/ws/%s?token=%s", config.ServerAddr, userID, token)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		log.Fatalf("Connection failed: %v", err)
	}
	defer conn.Close()

	fmt.Printf("Connected to %s as %s\n", config.ServerAddr, userID)
	fmt.Println("Commands: /chats, /use <chat_id>, /replay, /delete <message_id>, /quit")

	go receive(conn)
	prompt(conn, config, userID)
}

func receive(conn *websocket.Conn) {
	for {
		var env domain.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			fmt.Println(failure.Render("Connection lost: " + err.Error()))
			os.Exit(1)
		}
		printEnvelope(env)
	}
}

func printEnvelope(env domain.Envelope) {
	stamp := env.Timestamp.Local().Format("15:04:05")
	switch env.Kind {
	case domain.EventNewMessage:
		fmt.Println(incoming.Render(fmt.Sprintf("[%s] %s: %s", stamp, short(env.SenderID), env.Content)))
	case domain.EventHistoryReplay:
		fmt.Println(replayed.Render(fmt.Sprintf("[%s] (replay) %s: %s", stamp, short(env.SenderID), env.Content)))
	case domain.EventMessageDeleted:
		fmt.Println(replayed.Render(fmt.Sprintf("[%s] message %s was deleted", stamp, env.MessageID)))
	case domain.EventError:
		fmt.Println(failure.Render("Error: " + env.Content))
	}
}

func prompt(conn *websocket.Conn, config Config, userID uuid.UUID) {
	var currentChat string
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit":
			return
		case line == "/chats":
			listChats(config, userID)
		case strings.HasPrefix(line, "/use "):
			currentChat = strings.TrimSpace(strings.TrimPrefix(line, "/use "))
			fmt.Printf("Active chat: %s\n", currentChat)
		case line == "/replay":
			send(conn, frame{ChatID: currentChat, Replay: true})
		case strings.HasPrefix(line, "/delete "):
			messageID := strings.TrimSpace(strings.TrimPrefix(line, "/delete "))
			send(conn, frame{ChatID: currentChat, MessageID: messageID})
		default:
			if currentChat == "" {
				fmt.Println(failure.Render("No active chat, run /chats then /use <chat_id>"))
				continue
			}
			send(conn, frame{ChatID: currentChat, Content: line})
		}
	}
}

func send(conn *websocket.Conn, f frame) {
	if err := conn.WriteJSON(f); err != nil {
		fmt.Println(failure.Render("Send failed: " + err.Error()))
	}
}

func listChats(config Config, userID uuid.UUID) {
	resp, err := http.Get(fmt.Sprintf("http://%s/chats/%s", config.ServerAddr, userID))
	if err != nil {
		fmt.Println(failure.Render("Listing failed: " + err.Error()))
		return
	}
	defer resp.Body.Close()

	var chats []domain.Chat
	if err := json.NewDecoder(resp.Body).Decode(&chats); err != nil {
		fmt.Println(failure.Render("Decoding failed: " + err.Error()))
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Chat", "User 1", "User 2", "Created"})
	for _, chat := range chats {
		table.Append([]string{
			chat.ID.String(),
			short(chat.User1),
			short(chat.User2),
			chat.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	table.Render()
}

func short(id uuid.UUID) string {
	return id.String()[:8]
}
