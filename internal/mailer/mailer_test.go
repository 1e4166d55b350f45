package mailer

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"github.com/rgaros/fixline/internal/speech"
)

func TestDevModeLogsLink(t *testing.T) {
	var buf bytes.Buffer
	m := New(Config{Logger: log.New(&buf, "", 0)})

	err := m.SendUploadLink(context.Background(), "caller@gmail.com", "https://fixline.example.com/upload/abc123", speech.ApplianceWasher)
	if err != nil {
		t.Fatalf("dev mode send returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "https://fixline.example.com/upload/abc123") {
		t.Errorf("upload link not logged: %s", out)
	}
	if !strings.Contains(out, "caller@gmail.com") {
		t.Errorf("recipient not logged: %s", out)
	}
}

func TestDefaultFromAddress(t *testing.T) {
	m := New(Config{APIKey: "SG.test"})
	if m.fromEmail == "" {
		t.Fatal("from address empty")
	}
}
