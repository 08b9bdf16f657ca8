package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "json")
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record passed a warn-level logger")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "json").With("request_id", "abc")
	ctx := WithLogger(context.Background(), l)
	FromContext(ctx).Info("scoped")
	if !strings.Contains(buf.String(), `"request_id":"abc"`) {
		t.Errorf("expected request_id in %q", buf.String())
	}

	if FromContext(context.Background()) == nil {
		t.Error("expected default logger fallback")
	}
}
