package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/felixgeelhaar/agenda/internal/confirm"
	"github.com/felixgeelhaar/agenda/internal/guard"
	"github.com/felixgeelhaar/agenda/internal/memory"
	"github.com/felixgeelhaar/agenda/internal/observe"
	"github.com/felixgeelhaar/agenda/internal/runtime"
	"github.com/felixgeelhaar/agenda/internal/store"
)

func newTestSession(t *testing.T) (*mcp.ClientSession, *store.Store) {
	t.Helper()

	s := store.NewMemoryStore()
	rt := runtime.New(NewExecutor(s, nil), confirm.NewPendingStore(nil), memory.Open(memory.Options{}), guard.New(guard.DefaultPolicy), observe.Nop())
	srv := NewServer(rt, "test-session", "test", nil)

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ctx, cancel := context.WithCancel(context.Background())
	serverSession, err := srv.MCP().Connect(ctx, serverTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("server connect failed: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	clientSession, err := client.Connect(context.Background(), clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("client connect failed: %v", err)
	}

	t.Cleanup(func() {
		_ = clientSession.Close()
		_ = serverSession.Close()
		cancel()
	})
	return clientSession, s
}

func callText(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("%s: call failed: %v", name, err)
	}
	for _, c := range res.Content {
		if txt, ok := c.(*mcp.TextContent); ok {
			return txt.Text, res.IsError
		}
	}
	return "", res.IsError
}

func TestServer_ListsEveryOperation(t *testing.T) {
	cs, _ := newTestSession(t)

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	got := make(map[string]bool)
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, def := range runtime.DefaultRegistry().List() {
		if !got[def.Name] {
			t.Errorf("operation %s is not exposed as a tool", def.Name)
		}
	}
}

func TestServer_WriteRequiresConfirmation(t *testing.T) {
	cs, s := newTestSession(t)
	ctx := context.Background()

	text, isErr := callText(t, cs, "create_list", map[string]any{"name": "Groceries"})
	if isErr {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, "Confirmation required") || !strings.Contains(text, "op_") {
		t.Fatalf("expected confirmation prompt, got %q", text)
	}
	if lists, _ := s.Lists.Find(ctx, store.Where()); len(lists) != 0 {
		t.Fatalf("write must not reach the store before confirmation, got %d lists", len(lists))
	}

	text, isErr = callText(t, cs, "confirm_operation", map[string]any{"response": "yes"})
	if isErr || !strings.Contains(text, "Operation confirmed and executed") {
		t.Fatalf("expected execution, got %q (error=%v)", text, isErr)
	}
	if lists, _ := s.Lists.Find(ctx, store.Where()); len(lists) != 1 {
		t.Errorf("expected 1 list after confirmation, got %d", len(lists))
	}

	text, isErr = callText(t, cs, "create_item", map[string]any{"content": "Milk"})
	if isErr || !strings.Contains(text, "Groceries") {
		t.Errorf("expected suggestion naming Groceries, got %q", text)
	}
}

func TestServer_Errors(t *testing.T) {
	cs, _ := newTestSession(t)

	text, isErr := callText(t, cs, "confirm_operation", map[string]any{"response": "yes"})
	if !isErr || !strings.HasPrefix(text, "InvalidRequest") {
		t.Errorf("expected InvalidRequest tool error, got %q", text)
	}

	text, isErr = callText(t, cs, "get_event_with_list_and_items", map[string]any{"eventId": store.NewID()})
	if !isErr || !strings.Contains(text, "not found") {
		t.Errorf("expected not found error, got %q", text)
	}
}

func TestServer_ReadExecutesImmediately(t *testing.T) {
	cs, _ := newTestSession(t)

	text, isErr := callText(t, cs, "get_lists", map[string]any{})
	if isErr || text != "No lists found." {
		t.Errorf("expected empty result, got %q", text)
	}

	text, isErr = callText(t, cs, "get_context", map[string]any{})
	if isErr || !strings.Contains(text, `"sessionId": "test-session"`) {
		t.Errorf("expected context JSON for the server session, got %q", text)
	}
}

func TestToMap_OmitsEmptyOptionals(t *testing.T) {
	m, err := toMap(GetItemsArgs{ListID: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m["completed"]; ok {
		t.Errorf("unset pointer should be omitted, got %v", m)
	}
	if m["listId"] != "abc" {
		t.Errorf("expected listId kept, got %v", m)
	}
}
