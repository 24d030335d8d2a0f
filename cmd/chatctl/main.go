package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	chatmodels "pratham-chat/backend/conversation/models"
	chatservice "pratham-chat/backend/conversation/service"
	"pratham-chat/backend/conversation/ws"
	"pratham-chat/backend/pkg/config"
	"pratham-chat/backend/pkg/jwt"
	"pratham-chat/backend/pkg/logger"
	"pratham-chat/backend/pkg/persist"
	"pratham-chat/backend/pkg/secrets"

	"github.com/gorilla/websocket"
)

func main() {
	tokenPtr := flag.Bool("token", false, "Print a signed access token for -user")
	userPtr := flag.String("user", "", "User ID the token is issued to")
	emailPtr := flag.String("email", "", "Optional email claim")
	dumpPtr := flag.Bool("dump", false, "Print the persisted chat snapshot")
	listenPtr := flag.Bool("listen", false, "Stream the frames of -room over WebSocket")
	roomPtr := flag.String("room", "", "Room to listen to")
	helpPtr := flag.Bool("help", false, "Show usage information")
	flag.Parse()

	if *helpPtr || (!*tokenPtr && !*dumpPtr && !*listenPtr) {
		fmt.Println("Chat Tools Usage:")
		fmt.Println("  -token -user ID   Print an access token for a user")
		fmt.Println("  -dump             Print the persisted chat snapshot")
		fmt.Println("  -listen -room ID  Stream the frames of a room")
		fmt.Println("  -help             Show this help message")
		os.Exit(0)
	}

	cfg := config.New()
	ctx := context.Background()

	switch {
	case *tokenPtr:
		token, err := issueToken(ctx, cfg, *userPtr, *emailPtr)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
	case *dumpPtr:
		if err := dump(ctx, cfg); err != nil {
			log.Fatalf("Error reading snapshot: %v", err)
		}
	case *listenPtr:
		if *roomPtr == "" {
			log.Fatal("-listen needs -room")
		}
		token, err := issueToken(ctx, cfg, *userPtr, *emailPtr)
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		listen(cfg, *roomPtr, token)
	}
}

func issueToken(ctx context.Context, cfg *config.Config, userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("a user ID is required")
	}
	manager, err := secrets.NewVaultManager(cfg, logger.Nop())
	if err != nil {
		return "", err
	}
	defer manager.Close()

	secret := manager.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, cfg.JWT.Secret)
	return jwt.NewService(secret, cfg.JWT.ExpiryHours).GenerateToken(userID, email)
}

func dump(ctx context.Context, cfg *config.Config) error {
	backend, err := persist.Open(ctx, cfg, logger.Nop())
	if err != nil {
		return err
	}
	defer backend.Close()

	var opts []persist.PersistorOption
	if cfg.Persist.Seal {
		manager, err := secrets.NewVaultManager(cfg, logger.Nop())
		if err != nil {
			return err
		}
		defer manager.Close()
		sealer, err := persist.NewSealer(manager.GetSecretWithDefault(ctx, secrets.KeyPersistSealKey, ""))
		if err != nil {
			return err
		}
		opts = append(opts, persist.WithSealer(sealer))
	}

	var snap chatmodels.Snapshot
	found, err := persist.NewPersistor(backend, cfg.Persist.Key, cfg.Persist.Whitelist, opts...).
		Load(ctx, chatservice.Slice, &snap)
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Nothing persisted under %s in the %s backend\n", cfg.Persist.Key, backend.Name())
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func listen(cfg *config.Config, roomID, token string) {
	u, err := url.Parse(cfg.Server.BaseURL)
	if err != nil {
		log.Fatalf("Invalid BASE_URL: %v", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws/rooms/" + roomID
	u.RawQuery = url.Values{"token": {token}}.Encode()

	log.Println("Connecting to WebSocket...")
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("Error connecting to WebSocket: %v", err)
	}
	defer conn.Close()
	log.Println("Connected to WebSocket")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var frame ws.Frame
			if err := conn.ReadJSON(&frame); err != nil {
				log.Printf("WebSocket read error: %v", err)
				return
			}
			log.Printf("%s %s", frame.Type, frame.Data)
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Println("Listening. Press Ctrl+C to exit...")
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(ws.Frame{Type: ws.ActionPing}); err != nil {
				log.Printf("Error writing ping: %v", err)
				return
			}
		case <-interrupt:
			log.Println("Interrupt received, shutting down...")
			err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Printf("Error during closing websocket: %v", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
