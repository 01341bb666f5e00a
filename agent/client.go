// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

// Package agent implements the voice agent websocket bridge. Room audio at
// 48kHz is downsampled to the agent input rate and pushed as base64 JSON
// messages, agent replies at the output rate are upsampled back to 48kHz and
// queued for publishing into the room.
package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/minhdq/roomlink/audio"
)

const (
	// Default agent rates from the bridge protocol. Uplink speech is 16kHz,
	// synthesized replies come back at 24kHz.
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 24000

	// RoomSampleRate is what the room side of the bridge speaks.
	RoomSampleRate = 48000

	defaultQueueSize = 64
)

// Message is the bridge wire format. Audio payload is base64 of raw 16 bit
// LPCM, mono.
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

const (
	MessageReady = "ready"
	MessageAudio = "audio"
	MessageText  = "text"
)

type Config struct {
	// URL of agent websocket endpoint, ws:// or wss://
	URL string

	// InputSampleRate is rate agent expects on uplink. Default 16000.
	InputSampleRate int
	// OutputSampleRate is rate agent produces on downlink. Default 24000.
	OutputSampleRate int

	// QueueSize bounds downlink audio queue in frames. When consumer falls
	// behind, frames are dropped. Default 64.
	QueueSize int

	// OnText receives agent text messages. Optional.
	OnText func(text string)

	Log *slog.Logger
}

// Client is a single websocket session towards the voice agent.
type Client struct {
	conf Config
	log  *slog.Logger

	conn *websocket.Conn

	// write path must be serialized, gorilla allows one concurrent writer
	writeMu sync.Mutex

	out     chan []int16
	dropped atomic.Uint64

	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
}

func NewClient(conf Config) *Client {
	if conf.InputSampleRate == 0 {
		conf.InputSampleRate = DefaultInputSampleRate
	}
	if conf.OutputSampleRate == 0 {
		conf.OutputSampleRate = DefaultOutputSampleRate
	}
	if conf.QueueSize == 0 {
		conf.QueueSize = defaultQueueSize
	}
	log := conf.Log
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		conf: conf,
		log:  log.With("component", "agent"),
		out:  make(chan []int16, conf.QueueSize),
		done: make(chan struct{}),
	}
}

// Connect dials the agent and waits for the ready handshake. On success the
// read loop is started in background.
func (c *Client) Connect(ctx context.Context) error {
	c.log.Info("Connecting to voice agent", "url", c.conf.URL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.conf.URL, nil)
	if err != nil {
		return fmt.Errorf("agent dial failed: %w", err)
	}

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		return fmt.Errorf("agent handshake read failed: %w", err)
	}
	if msg.Type != MessageReady {
		conn.Close()
		return fmt.Errorf("agent handshake: expected %q message, got %q", MessageReady, msg.Type)
	}

	c.conn = conn
	c.connected.Store(true)
	c.log.Info("Voice agent connected and ready")

	go c.readLoop()
	return nil
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// SendPCM pushes one frame of 48kHz mono LPCM to the agent. Frame is
// resampled to the agent input rate before sending.
func (c *Client) SendPCM(frame []int16) error {
	if !c.connected.Load() {
		return fmt.Errorf("agent not connected")
	}

	resampled := audio.Resample(frame, RoomSampleRate, c.conf.InputSampleRate)
	payload := base64.StdEncoding.EncodeToString(audio.SamplesToBytes(resampled))

	return c.writeJSON(Message{Type: MessageAudio, Data: payload})
}

// SendText forwards a chat message to the agent.
func (c *Client) SendText(text string) error {
	if !c.connected.Load() {
		return fmt.Errorf("agent not connected")
	}
	return c.writeJSON(Message{Type: MessageText, Data: text})
}

func (c *Client) writeJSON(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Output returns downlink queue of 48kHz mono frames ready for the room.
// Channel is closed when the agent connection ends.
func (c *Client) Output() <-chan []int16 {
	return c.out
}

// Dropped reports frames lost to a full downlink queue.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

func (c *Client) readLoop() {
	defer func() {
		c.connected.Store(false)
		// read loop is the only sender on out, safe to close here
		close(c.out)
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.log.Info("Voice agent connection closed", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Error("Bad agent message", "error", err)
			continue
		}

		switch msg.Type {
		case MessageAudio:
			c.handleAudio(msg.Data)
		case MessageText:
			if c.conf.OnText != nil {
				c.conf.OnText(msg.Data)
			}
		default:
			c.log.Debug("Ignoring agent message", "type", msg.Type)
		}
	}
}

func (c *Client) handleAudio(data string) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		c.log.Error("Bad agent audio payload", "error", err)
		return
	}
	if len(raw)%2 != 0 {
		c.log.Error("Agent audio payload not 16 bit aligned", "size", len(raw))
		return
	}

	frame := audio.Resample(audio.BytesToSamples(raw), c.conf.OutputSampleRate, RoomSampleRate)

	select {
	case c.out <- frame:
	default:
		// consumer is behind, drop rather than stall the socket
		if c.dropped.Add(1)%100 == 1 {
			c.log.Warn("Agent output queue full, dropping audio", "dropped", c.dropped.Load())
		}
	}
}

// Close tears the session down. Safe to call multiple times.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.connected.Store(false)
	if c.conn == nil {
		return nil
	}

	c.writeMu.Lock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}
