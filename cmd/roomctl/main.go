package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	transporthttp "github.com/vmarchenko/parley/internal/transport/http"
)

var BuildVersion = "dev"

var (
	serverURL string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "roomctl",
	Short: "Parley room administration CLI",
	Long:  "CLI for managing Parley rooms and access grants over the REST API.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Parley server base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "auth-token", os.Getenv("PARLEY_AUTH_TOKEN"), "Bearer token. Can also be set via PARLEY_AUTH_TOKEN.")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the roomctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s\n", BuildVersion)
		},
	})
	rootCmd.AddCommand(newRoomsCommand())
	rootCmd.AddCommand(newTokenCommand())
}

func newRoomsCommand() *cobra.Command {
	roomsCmd := &cobra.Command{
		Use:   "rooms",
		Short: "Manage rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var (
		idleTimeout     time.Duration
		maxParticipants int
	)
	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a room; fails if the name is taken",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var room transporthttp.RoomResponse
			err := callAPI(http.MethodPost, "/api/livekit/rooms", transporthttp.CreateRoomRequest{
				Name:               args[0],
				IdleTimeoutSeconds: int(idleTimeout / time.Second),
				MaxParticipants:    maxParticipants,
			}, &room)
			if err != nil {
				return err
			}
			cmd.Printf("created room %s (max %d participants, idle timeout %ds)\n",
				room.Name, room.MaxParticipants, room.IdleTimeoutSeconds)
			return nil
		},
	}
	createCmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 0, "close the room after this long without participants (server default if zero)")
	createCmd.Flags().IntVar(&maxParticipants, "max-participants", 0, "participant ceiling (server default if zero)")
	roomsCmd.AddCommand(createCmd)

	roomsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List active rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rooms []transporthttp.RoomResponse
			if err := callAPI(http.MethodGet, "/api/livekit/rooms", nil, &rooms); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPARTICIPANTS\tMAX\tCREATED")
			for _, room := range rooms {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", room.Name, room.NumParticipants, room.MaxParticipants, room.CreatedAt)
			}
			return w.Flush()
		},
	})

	roomsCmd.AddCommand(&cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a room, disconnecting its participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := callAPI(http.MethodDelete, "/api/livekit/rooms/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			cmd.Printf("deleted room %s\n", args[0])
			return nil
		},
	})

	return roomsCmd
}

func newTokenCommand() *cobra.Command {
	var capabilities []string

	tokenCmd := &cobra.Command{
		Use:   "token <room>",
		Short: "Issue an access grant for a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp transporthttp.TokenResponse
			err := callAPI(http.MethodPost, "/api/livekit/token", transporthttp.TokenRequest{
				RoomName:     args[0],
				Capabilities: capabilities,
			}, &resp)
			if err != nil {
				return err
			}
			cmd.Printf("identity:     %s\n", resp.Identity)
			cmd.Printf("room:         %s\n", resp.RoomName)
			cmd.Printf("capabilities: %s\n", strings.Join(resp.Capabilities, ", "))
			cmd.Printf("expires:      %s\n", resp.ExpiresAt.Format(time.RFC3339))
			cmd.Printf("url:          %s\n", resp.URL)
			cmd.Printf("token:        %s\n", resp.Token)
			return nil
		},
	}
	tokenCmd.Flags().StringSliceVar(&capabilities, "capabilities", nil, "requested capabilities (join, publish, subscribe, publish-data); all allowed if omitted")

	return tokenCmd
}

// callAPI performs one authenticated request against the server, decoding
// the JSON body into out when it is non-nil.
func callAPI(method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr transporthttp.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
