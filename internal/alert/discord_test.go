package alert

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// mockSession records ChannelMessageSendEmbed calls.
type mockSession struct {
	mu      sync.Mutex
	embeds  []sentEmbed
	sendErr error
}

type sentEmbed struct {
	channelID string
	embed     *discordgo.MessageEmbed
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.embeds = append(m.embeds, sentEmbed{channelID: channelID, embed: embed})
	return &discordgo.Message{ID: "msg-1"}, nil
}

func TestNewDiscord_Validation(t *testing.T) {
	if _, err := NewDiscord(DiscordOpts{BotToken: "tok"}); err == nil {
		t.Error("expected error for missing channel ID")
	}
	if _, err := NewDiscord(DiscordOpts{ChannelID: "123"}); err == nil {
		t.Error("expected error for missing bot token")
	}
	if _, err := NewDiscord(DiscordOpts{ChannelID: "123", Session: &mockSession{}}); err != nil {
		t.Errorf("unexpected error with injected session: %v", err)
	}
}

func TestDiscord_Notify(t *testing.T) {
	sess := &mockSession{}
	d, err := NewDiscord(DiscordOpts{ChannelID: "555", Session: sess})
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}

	ev := Event{
		Title:    "Milestone approved",
		Body:     "Design mockups released for $250.00",
		Severity: SeverityInfo,
		Fields:   []Field{{Name: "Job", Value: "j-1"}, {Name: "Amount", Value: "$250.00"}},
	}
	if err := d.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(sess.embeds) != 1 {
		t.Fatalf("sent %d embeds, want 1", len(sess.embeds))
	}
	sent := sess.embeds[0]
	if sent.channelID != "555" {
		t.Errorf("channelID = %q, want 555", sent.channelID)
	}
	if sent.embed.Title != "Milestone approved" {
		t.Errorf("embed title = %q", sent.embed.Title)
	}
	if len(sent.embed.Fields) != 2 {
		t.Errorf("embed fields = %d, want 2", len(sent.embed.Fields))
	}
	if sent.embed.Color != 0x36a64f {
		t.Errorf("embed color = %#x, want %#x", sent.embed.Color, 0x36a64f)
	}
}

func TestDiscord_Notify_Error(t *testing.T) {
	sess := &mockSession{sendErr: errors.New("missing access")}
	d, err := NewDiscord(DiscordOpts{ChannelID: "555", Session: sess})
	if err != nil {
		t.Fatalf("NewDiscord: %v", err)
	}
	if err := d.Notify(context.Background(), Event{Title: "x"}); err == nil {
		t.Error("expected error from failing session")
	}
}

func TestEmbedColor(t *testing.T) {
	if got := embedColor(SeverityError); got != 0xd00000 {
		t.Errorf("embedColor(error) = %#x, want %#x", got, 0xd00000)
	}
}
