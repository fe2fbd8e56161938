package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `{
		"data": {"dir": "/tmp/ticketd"},
		"slack": {"bot_token": "xoxb-1", "app_token": "xapp-1"},
		"ticket": {"scope_id": "T123", "log_channel": "C-LOG"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite default, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Path != "/tmp/ticketd/tickets.db" {
		t.Errorf("expected derived sqlite path, got %q", cfg.Store.Path)
	}
	if cfg.Ticket.GraceDelay != 10 {
		t.Errorf("expected default grace delay 10, got %d", cfg.Ticket.GraceDelay)
	}
}

func TestLoad_CollectsAllValidationErrors(t *testing.T) {
	path := writeConfig(t, `{"store": {"driver": "mysql"}}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	for _, want := range []string{"data.dir", "ticket.scope_id", "slack.bot_token", "store.mysql.host"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in validation error, got:\n%v", want, err)
		}
	}
}

func TestLoad_UnsupportedDriver(t *testing.T) {
	path := writeConfig(t, `{
		"data": {"dir": "/tmp/t"},
		"slack": {"bot_token": "x", "app_token": "x"},
		"ticket": {"scope_id": "T1"},
		"store": {"driver": "postgres"}
	}`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), `store.driver "postgres"`) {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TICKETD_DATA_DIR", t.TempDir())
	t.Setenv("TICKETD_SCOPE_ID", "T999")
	t.Setenv("TICKETD_SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("TICKETD_SLACK_APP_TOKEN", "xapp-test")
	t.Setenv("TICKETD_GRACE_DELAY_SECONDS", "30")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("load from env: %v", err)
	}
	if cfg.Ticket.ScopeID != "T999" {
		t.Errorf("expected scope T999, got %q", cfg.Ticket.ScopeID)
	}
	if cfg.Ticket.GraceDelay != 30 {
		t.Errorf("expected grace delay 30, got %d", cfg.Ticket.GraceDelay)
	}
}

func TestLoadFromEnv_AlertRequiresChatID(t *testing.T) {
	t.Setenv("TICKETD_DATA_DIR", t.TempDir())
	t.Setenv("TICKETD_SCOPE_ID", "T1")
	t.Setenv("TICKETD_SLACK_BOT_TOKEN", "x")
	t.Setenv("TICKETD_SLACK_APP_TOKEN", "x")
	t.Setenv("TICKETD_ALERT_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TICKETD_ALERT_CHAT_ID", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error when alert chat id is missing")
	}
}
