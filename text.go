// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Minh Dang Quang

package roomlink

import (
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
)

// TopicChat is the default text stream topic of the room chat.
const TopicChat = "chat"

// TextEvent is one incoming text stream message.
type TextEvent struct {
	// Identity of the sending participant
	Identity string
	Topic    string
	Text     string
}

// OnText registers a handler for incoming text streams on topic. Must be set
// before Dial, one handler per topic.
func (s *Session) OnText(topic string, fn func(ev TextEvent)) {
	s.textHandlers[topic] = fn
}

// SendText publishes text to the room on the given topic.
func (s *Session) SendText(text string, topic string) error {
	s.mu.Lock()
	room := s.room
	connected := s.connected
	s.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	_, err := room.LocalParticipant.SendText(text, lksdk.StreamTextOptions{
		Topic: topic,
	})
	return err
}

func (s *Session) textStreamHandler(topic string, fn func(ev TextEvent)) lksdk.TextStreamHandler {
	return func(reader *lksdk.TextStreamReader, identity livekit.ParticipantIdentity) {
		// reader blocks until the sender finishes the stream
		go func() {
			text := reader.ReadAll()
			s.log.Debug("Text stream received", "topic", topic, "participant", string(identity))
			fn(TextEvent{Identity: string(identity), Topic: topic, Text: text})
		}()
	}
}
