package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	plog "github.com/vmarchenko/parley/internal/log"
	"github.com/vmarchenko/parley/internal/rtc"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Parley server base URL")
	authToken := flag.String("auth-token", "", "bearer token for the token endpoint")
	room := flag.String("room", "smoke", "room name to join")
	identity := flag.String("identity", "smoke-tester", "identity to join as")
	url := flag.String("url", "ws://localhost:7880", "media endpoint")
	audio := flag.Bool("audio", false, "publish an audio track after connecting")
	timeout := flag.Duration("timeout", 30*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := plog.New("debug")

	session, err := rtc.Join(rtc.Options{
		URL:      *url,
		Room:     *room,
		Identity: *identity,
		Grants: &rtc.HTTPGrantSource{
			BaseURL:   *server,
			AuthToken: *authToken,
		},
		Transport: rtc.NewLiveKitTransport(logger),
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("join: %v", err)
	}
	defer session.Disconnect()

	states := session.StateChanges()
	for {
		select {
		case change := <-states:
			fmt.Printf("state: %s -> %s\n", change.From, change.To)
			if change.To == rtc.StateConnected {
				if *audio {
					if err := session.EnableAudio(true); err != nil {
						log.Fatalf("enable audio: %v", err)
					}
					fmt.Println("audio published")
				}
				for _, p := range session.Participants() {
					fmt.Printf("participant: %s (local=%t, tracks=%d)\n", p.Identity, p.IsLocal, len(p.Tracks))
				}
				return
			}
			if change.To.Terminal() {
				log.Fatalf("session ended: %v", change.Err)
			}
		case <-ctx.Done():
			log.Fatalf("timed out in state %s", session.State())
		}
	}
}
