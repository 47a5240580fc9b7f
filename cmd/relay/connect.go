package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/oz-collabo-04/Back/auth"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/spf13/cobra"
)

type connectConfig struct {
	ServerAddress string `env:"RELAY_ADDR,default=localhost:8000"`
	JWTSecret     string `env:"JWT_SECRET,required=true"`
}

// connectCmd is a terminal client: it prints every frame it receives and,
// in a room, sends each stdin line as a chat message.
func connectCmd() *cobra.Command {
	var (
		roomID int64
		userID int64
		name   string
	)
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Open a room (--room) or the notification stream of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			var config connectConfig
			if _, err := env.UnmarshalFromEnviron(&config); err != nil {
				return configError{fmt.Errorf("config error: %w", err)}
			}

			path := "/ws/notifications/"
			if roomID > 0 {
				path = fmt.Sprintf("/ws/chat/%d/", roomID)
			}
			dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
			if userID > 0 {
				token, err := auth.NewSigner(config.JWTSecret).GenerateToken(domain.UserID(userID), name, time.Hour)
				if err != nil {
					return err
				}
				dialer.Subprotocols = []string{token}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, _, err := dialer.DialContext(ctx, "ws://"+config.ServerAddress+path, nil)
			if err != nil {
				return fmt.Errorf("could not connect to relay at %s: %w", config.ServerAddress, err)
			}
			defer func() { _ = conn.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, color.Green.Sprintf(">>> Connected to %s%s (Ctrl+C to quit)", config.ServerAddress, path))

			if roomID > 0 {
				go sendLines(cmd.InOrStdin(), conn)
			}
			go func() {
				<-ctx.Done()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			}()
			return printFrames(out, conn)
		},
	}
	cmd.Flags().Int64Var(&roomID, "room", 0, "Room id; without it the notification stream is opened")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Connect as this user; 0 connects anonymously")
	cmd.Flags().StringVar(&name, "name", "", "Display name carried by the token")
	return cmd
}

func sendLines(in io.Reader, conn *websocket.Conn) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := conn.WriteJSON(map[string]string{"content": scanner.Text()}); err != nil {
			return
		}
	}
}

func printFrames(out io.Writer, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				fmt.Fprintln(out, color.Yellow.Sprintf("<<< closed %d %s", closeErr.Code, closeErr.Text))
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			fmt.Fprintln(out, string(data))
			continue
		}
		typ, _ := frame["type"].(string)
		fmt.Fprintf(out, "[%s] %s %s\n", time.Now().Format(time.TimeOnly), color.Cyan.Sprint(typ), data)
	}
}
