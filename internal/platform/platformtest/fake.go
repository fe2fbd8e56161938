// Package platformtest provides a recording in-memory Platform for
// tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ticketd-io/ticketd/internal/platform"
)

// Message is a recorded channel message.
type Message struct {
	ChannelRef string
	Text       string
}

// File is a recorded file upload.
type File struct {
	ChannelRef string
	Filename   string
	Content    string
	Comment    string
}

// DM is a recorded direct message.
type DM struct {
	UserRef    string
	Text       string
	Attachment *platform.Attachment
}

// Fake is an in-memory platform.Platform that records every side effect
// and fails on demand via the Err* hooks.
type Fake struct {
	mu sync.Mutex

	// Failure hooks. A non-nil error makes the matching call fail.
	ErrCreateChannel error
	ErrSendMessage   error
	ErrSendFile      error
	ErrHistory       error
	ErrSetTopic      error
	ErrDelete        error
	ErrSendDirect    error

	// HistoryPages is served page by page: index 0 for cursor "",
	// then by the page's own NextCursor chain.
	HistoryPages map[string]platform.HistoryPage

	Users map[string]platform.User
	Roles map[string]platform.Role

	nextChannel int
	Created     []string
	Messages    []Message
	Files       []File
	DMs         []DM
	Topics      map[string]string
	Deleted     []string
	Granted     []string
	Revoked     []string
}

// New creates an empty fake.
func New() *Fake {
	return &Fake{
		HistoryPages: make(map[string]platform.HistoryPage),
		Users:        make(map[string]platform.User),
		Roles:        make(map[string]platform.Role),
		Topics:       make(map[string]string),
	}
}

func (f *Fake) Name() string                    { return "fake" }
func (f *Fake) Start(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }
func (f *Fake) Stop() error                     { return nil }

func (f *Fake) CreateChannel(_ context.Context, name string, _ platform.AccessOverlay, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrCreateChannel != nil {
		return "", f.ErrCreateChannel
	}
	f.nextChannel++
	// Channel ref carries the requested name so tests can assert on it.
	ref := fmt.Sprintf("%s#%d", name, f.nextChannel)
	f.Created = append(f.Created, ref)
	return ref, nil
}

func (f *Fake) SendMessage(_ context.Context, channelRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrSendMessage != nil {
		return f.ErrSendMessage
	}
	f.Messages = append(f.Messages, Message{ChannelRef: channelRef, Text: text})
	return nil
}

func (f *Fake) SendFile(_ context.Context, channelRef, filename, content, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrSendFile != nil {
		return f.ErrSendFile
	}
	f.Files = append(f.Files, File{ChannelRef: channelRef, Filename: filename, Content: content, Comment: comment})
	return nil
}

func (f *Fake) History(_ context.Context, _ string, cursor string) (platform.HistoryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrHistory != nil {
		return platform.HistoryPage{}, f.ErrHistory
	}
	return f.HistoryPages[cursor], nil
}

func (f *Fake) SetTopic(_ context.Context, channelRef, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrSetTopic != nil {
		return f.ErrSetTopic
	}
	f.Topics[channelRef] = topic
	return nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelRef, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrDelete != nil {
		return f.ErrDelete
	}
	f.Deleted = append(f.Deleted, channelRef)
	return nil
}

func (f *Fake) GrantAccess(_ context.Context, channelRef, userRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Granted = append(f.Granted, channelRef+":"+userRef)
	return nil
}

func (f *Fake) RevokeAccess(_ context.Context, channelRef, userRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Revoked = append(f.Revoked, channelRef+":"+userRef)
	return nil
}

func (f *Fake) ResolveUser(_ context.Context, userRef string) (platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.Users[userRef]; ok {
		return u, nil
	}
	return platform.User{}, fmt.Errorf("platformtest: user %q not found", userRef)
}

func (f *Fake) ResolveRole(_ context.Context, roleRef string) (platform.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.Roles[roleRef]; ok {
		return r, nil
	}
	return platform.Role{}, fmt.Errorf("platformtest: role %q not found", roleRef)
}

func (f *Fake) SendDirect(_ context.Context, userRef, text string, attachment *platform.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrSendDirect != nil {
		return f.ErrSendDirect
	}
	f.DMs = append(f.DMs, DM{UserRef: userRef, Text: text, Attachment: attachment})
	return nil
}

func (f *Fake) Mention(userRef string) string { return "@" + userRef }
