package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zkb-tools/zkbinfo/pkg/client"
	"github.com/zkb-tools/zkbinfo/pkg/killmail"
)

// Saver is the slice of the API client the subscriber needs.
type Saver interface {
	Save(ctx context.Context, km *killmail.Killmail) error
}

// Subscriber maintains a killstream websocket connection and forwards
// decoded killmails to the daemon. It reconnects with exponential
// backoff on any connection failure.
type Subscriber struct {
	streamURL string
	channel   string
	saver     Saver
	backoff   client.BackoffStrategy
}

func NewSubscriber(streamURL, channel string, saver Saver) *Subscriber {
	return &Subscriber{
		streamURL: streamURL,
		channel:   channel,
		saver:     saver,
		backoff:   client.DefaultBackoff(),
	}
}

// Run connects and reads until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context) {
	attempt := 0
	for ctx.Err() == nil {
		if err := s.runOnce(ctx); err != nil {
			log.Printf("killstream connection lost: %v", err)
		}
		if ctx.Err() != nil {
			return
		}
		attempt++
		wait := s.backoff.Next(attempt)
		log.Printf("reconnecting in %s (attempt %d)", wait, attempt)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub := map[string]string{"action": "sub", "channel": s.channel}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	log.Printf("subscribed to %s on %s", s.channel, s.streamURL)

	// close the connection when ctx ends so ReadMessage unblocks
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handleMessage(ctx, data)
	}
}

// handleMessage decodes one killstream frame and forwards it. Frames
// that are not killmails (pings, service notices) are skipped quietly.
func (s *Subscriber) handleMessage(ctx context.Context, data []byte) {
	if !json.Valid(data) {
		return
	}
	km, err := killmail.Decode(data)
	if err != nil {
		log.Printf("skipping frame: %v", err)
		return
	}
	if err := s.saver.Save(ctx, km); err != nil {
		log.Printf("failed to save killmail %d: %v", km.KillmailID, err)
		return
	}
	log.Printf("saved killmail %d from %s", km.KillmailID, km.KillmailTime)
}
