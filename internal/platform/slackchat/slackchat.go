// Package slackchat implements platform.Platform on Slack. Ticket
// channels are private conversations; the access overlay is applied by
// inviting the allowed users, since a private channel denies everyone
// else by default.
package slackchat

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/ticketd-io/ticketd/internal/platform"
	"github.com/ticketd-io/ticketd/pkg/protocol"
)

const historyPageSize = 200

// Config holds Slack credentials.
type Config struct {
	BotToken string // xoxb-... Bot User OAuth Token
	AppToken string // xapp-... App-Level Token (for Socket Mode)
}

// Client implements platform.Platform via the Slack Web API and Socket Mode.
type Client struct {
	api     *slack.Client
	socket  *socketmode.Client
	handler platform.EventHandler
	logger  *slog.Logger
	cancel  context.CancelFunc
	botID   string

	mu    sync.Mutex
	names map[string]string // user ID → display name cache
}

// New creates a Slack client and verifies credentials. handler may be
// nil when the client is used only for outbound side effects.
func New(cfg Config, handler platform.EventHandler, logger *slog.Logger) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slackchat: bot_token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("slackchat: app_token is required (Socket Mode)")
	}
	if logger == nil {
		logger = slog.Default()
	}

	api := slack.New(cfg.BotToken, slack.OptionAppLevelToken(cfg.AppToken))

	authResp, err := api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("slackchat: auth test: %w", err)
	}
	logger.Info("slack bot authorized", "user", authResp.User, "team", authResp.Team)

	return &Client{
		api:     api,
		socket:  socketmode.New(api),
		handler: handler,
		logger:  logger,
		botID:   authResp.UserID,
		names:   make(map[string]string),
	}, nil
}

func (c *Client) Name() string { return "slack" }

// BotID returns the service identity's user ID.
func (c *Client) BotID() string { return c.botID }

// Start begins listening for events via Socket Mode. Blocks until
// context is cancelled.
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.handleEvents(ctx)
	c.logger.Info("slack listener started (socket mode)")
	return c.socket.RunContext(ctx)
}

// Stop gracefully shuts down the listener.
func (c *Client) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *Client) CreateChannel(ctx context.Context, name string, overlay platform.AccessOverlay, container string) (string, error) {
	// Slack has no channel containers; the grouping construct is ignored.
	_ = container

	ch, err := c.api.CreateConversationContext(ctx, slack.CreateConversationParams{
		ChannelName: name,
		IsPrivate:   overlay.DenyEveryone,
	})
	if err != nil {
		return "", fmt.Errorf("slackchat: create channel %q: %w", name, err)
	}

	invitees := make([]string, 0, len(overlay.AllowUsers))
	for _, u := range overlay.AllowUsers {
		if u != "" && u != c.botID { // the creating bot is already a member
			invitees = append(invitees, u)
		}
	}
	for _, roleRef := range overlay.AllowRoles {
		members, err := c.api.GetUserGroupMembersContext(ctx, roleRef)
		if err != nil {
			c.logger.Warn("failed to expand user group", "group", roleRef, "error", err)
			continue
		}
		invitees = append(invitees, members...)
	}
	if len(invitees) > 0 {
		if _, err := c.api.InviteUsersToConversationContext(ctx, ch.ID, invitees...); err != nil {
			c.logger.Warn("failed to invite users", "channel", ch.ID, "error", err)
		}
	}
	return ch.ID, nil
}

func (c *Client) SendMessage(ctx context.Context, channelRef, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelRef, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slackchat: send message: %w", err)
	}
	return nil
}

func (c *Client) SendFile(ctx context.Context, channelRef, filename, content, comment string) error {
	_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:        channelRef,
		Filename:       filename,
		Content:        content,
		FileSize:       len(content),
		InitialComment: comment,
	})
	if err != nil {
		return fmt.Errorf("slackchat: upload file: %w", err)
	}
	return nil
}

// History returns the channel's full message history oldest-first.
// Slack serves history newest-first in cursor pages, so the client
// walks all pages (bounded per request) and reverses before returning a
// single page with no next cursor.
func (c *Client) History(ctx context.Context, channelRef, cursor string) (platform.HistoryPage, error) {
	if cursor != "" {
		return platform.HistoryPage{}, nil
	}

	var newestFirst []slack.Message
	next := ""
	for {
		resp, err := c.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelRef,
			Cursor:    next,
			Limit:     historyPageSize,
		})
		if err != nil {
			return platform.HistoryPage{}, fmt.Errorf("slackchat: history: %w", err)
		}
		newestFirst = append(newestFirst, resp.Messages...)
		next = resp.ResponseMetaData.NextCursor
		if next == "" {
			break
		}
	}

	lines := make([]protocol.TranscriptLine, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msg := newestFirst[i]
		if msg.SubType != "" && msg.SubType != "file_share" {
			continue
		}
		var urls []string
		for _, f := range msg.Files {
			urls = append(urls, f.URLPrivate)
		}
		lines = append(lines, protocol.TranscriptLine{
			Timestamp:      parseSlackTimestamp(msg.Timestamp),
			AuthorDisplay:  c.userName(ctx, msg.User),
			AuthorID:       msg.User,
			Body:           msg.Text,
			AttachmentURLs: urls,
		})
	}
	return platform.HistoryPage{Lines: lines}, nil
}

func (c *Client) SetTopic(ctx context.Context, channelRef, topic string) error {
	if _, err := c.api.SetTopicOfConversationContext(ctx, channelRef, topic); err != nil {
		return fmt.Errorf("slackchat: set topic: %w", err)
	}
	return nil
}

// DeleteChannel archives the conversation. Slack does not let bots hard
// delete channels; archiving is the closest irreversible teardown.
func (c *Client) DeleteChannel(ctx context.Context, channelRef, reason string) error {
	_ = reason // Slack's archive call carries no reason
	if err := c.api.ArchiveConversationContext(ctx, channelRef); err != nil {
		return fmt.Errorf("slackchat: delete channel: %w", err)
	}
	return nil
}

func (c *Client) GrantAccess(ctx context.Context, channelRef, userRef string) error {
	if _, err := c.api.InviteUsersToConversationContext(ctx, channelRef, userRef); err != nil {
		return fmt.Errorf("slackchat: grant access: %w", err)
	}
	return nil
}

func (c *Client) RevokeAccess(ctx context.Context, channelRef, userRef string) error {
	if err := c.api.KickUserFromConversationContext(ctx, channelRef, userRef); err != nil {
		return fmt.Errorf("slackchat: revoke access: %w", err)
	}
	return nil
}

func (c *Client) ResolveUser(ctx context.Context, userRef string) (platform.User, error) {
	u, err := c.api.GetUserInfoContext(ctx, userRef)
	if err != nil {
		return platform.User{}, fmt.Errorf("slackchat: resolve user %q: %w", userRef, err)
	}
	name := u.Profile.DisplayName
	if name == "" {
		name = u.Name
	}
	return platform.User{ID: u.ID, DisplayName: name}, nil
}

func (c *Client) ResolveRole(ctx context.Context, roleRef string) (platform.Role, error) {
	groups, err := c.api.GetUserGroupsContext(ctx)
	if err != nil {
		return platform.Role{}, fmt.Errorf("slackchat: resolve role %q: %w", roleRef, err)
	}
	for _, g := range groups {
		if g.ID == roleRef || g.Handle == roleRef {
			return platform.Role{ID: g.ID, Name: g.Name}, nil
		}
	}
	return platform.Role{}, fmt.Errorf("slackchat: role %q not found", roleRef)
}

func (c *Client) SendDirect(ctx context.Context, userRef, text string, attachment *platform.Attachment) error {
	im, _, _, err := c.api.OpenConversationContext(ctx, &slack.OpenConversationParameters{
		Users: []string{userRef},
	})
	if err != nil {
		return fmt.Errorf("slackchat: open dm: %w", err)
	}
	if err := c.SendMessage(ctx, im.ID, text); err != nil {
		return err
	}
	if attachment != nil {
		return c.SendFile(ctx, im.ID, attachment.Name, attachment.Content, "")
	}
	return nil
}

func (c *Client) Mention(userRef string) string {
	return fmt.Sprintf("<@%s>", userRef)
}

func (c *Client) handleEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.socket.Events:
			if event.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			eventsAPIEvent, ok := event.Data.(slackevents.EventsAPIEvent)
			if !ok {
				continue
			}
			c.socket.Ack(*event.Request)

			ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok {
				continue
			}
			c.handleMessage(ctx, ev)
		}
	}
}

func (c *Client) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	// Ignore bot messages (including our own) and message subtypes
	// (edits, deletes, joins).
	if ev.BotID != "" || ev.User == "" || ev.User == c.botID || ev.SubType != "" {
		return
	}
	if c.handler == nil || strings.TrimSpace(ev.Text) == "" {
		return
	}

	inbound := platform.Event{
		ChannelRef: ev.Channel,
		SenderID:   ev.User,
		SenderName: c.userName(ctx, ev.User),
		Text:       ev.Text,
	}
	if err := c.handler(ctx, inbound); err != nil {
		c.logger.Error("inbound handler error", "channel", ev.Channel, "user", ev.User, "error", err)
	}
}

// userName resolves a display name with a process-local cache; the
// platform is never asked twice for the same user.
func (c *Client) userName(ctx context.Context, userID string) string {
	if userID == "" {
		return "unknown"
	}
	c.mu.Lock()
	name, ok := c.names[userID]
	c.mu.Unlock()
	if ok {
		return name
	}

	u, err := c.ResolveUser(ctx, userID)
	if err != nil {
		return userID
	}
	c.mu.Lock()
	c.names[userID] = u.DisplayName
	c.mu.Unlock()
	return u.DisplayName
}

// parseSlackTimestamp converts a Slack "seconds.micros" timestamp into
// a UTC time. Malformed input yields the zero time.
func parseSlackTimestamp(ts string) time.Time {
	secStr, microStr, _ := strings.Cut(ts, ".")
	sec, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micro int64
	if microStr != "" {
		micro, _ = strconv.ParseInt(microStr, 10, 64)
	}
	return time.Unix(sec, micro*int64(time.Microsecond)).UTC()
}
