package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fushaoqin-devops/go-chatroom/internal/client"
	"github.com/fushaoqin-devops/go-chatroom/internal/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:8080", "Server address")
	username := flag.String("user", "User"+fmt.Sprint(os.Getpid()), "Username")
	room := flag.String("room", "lobby", "Room to join")
	flag.Parse()

	log.Printf("Connecting to server at %s as %s", *addr, *username)

	c, err := client.Dial(*addr, *username, *room)
	if err != nil {
		log.Fatalf("Failed to connect to server: %v", err)
	}
	defer c.Close()

	fmt.Printf("Joined room %s. Type '/help' for commands\n", *room)

	go printResponses(c)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := handleCommand(c, line); err != nil {
			log.Printf("Error: %v", err)
		}
	}
}

func printResponses(c *client.Client) {
	for {
		resp, err := c.ReadResponse()
		if err != nil {
			log.Printf("Connection closed: %v", err)
			os.Exit(0)
		}

		switch resp.Type {
		case protocol.RespMessage:
			fmt.Println(resp.Text)
		case protocol.RespUsers:
			fmt.Printf("* %s is %s\n", resp.Username, resp.Status)
		case protocol.RespFiles:
			fmt.Printf("Files: %s\n", resp.Files)
		case protocol.RespUpload:
			fmt.Printf("New file available: %s\n", resp.Filename)
		case protocol.RespDownload:
			dest := resp.Path
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err == nil {
				err = os.WriteFile(dest, resp.Data, 0o644)
			}
			if err != nil {
				log.Printf("Error saving download to %s: %v", dest, err)
				continue
			}
			fmt.Printf("Saved %d bytes to %s\n", resp.Length, dest)
		}
	}
}

func handleCommand(c *client.Client, line string) error {
	parts := strings.Fields(line)
	switch parts[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /upload <path>             - Upload a local file to the room")
		fmt.Println("  /download <file> <dir>     - Download a room file into a local directory")
		fmt.Println("  /files                     - List the room's files")
		fmt.Println("  /users                     - List the room's users and their status")
		fmt.Println("  /quit                      - Log out and exit")
		fmt.Println("  <message>                  - Send a message to the room")

	case "/upload":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /upload <path>")
		}
		return c.UploadFile(parts[1])

	case "/download":
		if len(parts) < 3 {
			return fmt.Errorf("usage: /download <file> <dir>")
		}
		return c.Download(parts[1], parts[2])

	case "/files":
		return c.ListFiles()

	case "/users":
		return c.ListUsers()

	case "/quit":
		if err := c.Logout(); err != nil {
			return err
		}
		os.Exit(0)

	default:
		return c.SendMessage(line)
	}
	return nil
}
