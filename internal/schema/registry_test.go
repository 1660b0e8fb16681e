package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/invopop/jsonschema"
)

func clearForTest(t *testing.T) {
	t.Cleanup(func() {
		mu.Lock()
		providers = map[string]Provider{}
		mu.Unlock()
		ClearCache()
	})
}

func TestRegisterResolveAndCache(t *testing.T) {
	clearForTest(t)

	callCount := 0
	if err := Register("Example", func() *jsonschema.Schema {
		callCount++
		return &jsonschema.Schema{Title: "example"}
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	first, err := Resolve("example")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := Resolve("example")
	if err != nil {
		t.Fatalf("resolve cached: %v", err)
	}

	if first != second {
		t.Fatal("expected cached schema instance")
	}
	if callCount != 1 {
		t.Fatalf("expected provider called once, got %d", callCount)
	}
}

func TestRegisterValidation(t *testing.T) {
	clearForTest(t)

	if err := Register("", func() *jsonschema.Schema { return &jsonschema.Schema{} }); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := Register("x", nil); err == nil {
		t.Fatal("expected nil provider error")
	}
}

func TestResolveUnknown(t *testing.T) {
	clearForTest(t)

	if _, err := Resolve(""); err == nil {
		t.Fatal("expected empty name lookup error")
	}
	_, err := Resolve("missing")
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestNamesSorted(t *testing.T) {
	clearForTest(t)

	for _, name := range []string{"zeta", "alpha", "Mid"} {
		if err := Register(name, func() *jsonschema.Schema { return &jsonschema.Schema{} }); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	names := Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %v", len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
}

func TestClearCache(t *testing.T) {
	clearForTest(t)

	count := 0
	if err := Register("cache-test", func() *jsonschema.Schema {
		count++
		return &jsonschema.Schema{Title: "cache-test"}
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := Resolve("cache-test"); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ClearCache()
	if _, err := Resolve("cache-test"); err != nil {
		t.Fatalf("resolve after clear: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected provider called twice, got %d", count)
	}
}

func TestReflectUsesNameTag(t *testing.T) {
	type sample struct {
		AgentName string `yaml:"name"`
		Topic     string `yaml:"topic"`
	}

	s := Reflect(sample{}, "yaml")
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	text := string(data)
	for _, want := range []string{`"name"`, `"topic"`, `"$schema"`} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %s in schema, got %s", want, text)
		}
	}
	if strings.Contains(text, `"AgentName"`) {
		t.Fatalf("expected struct field names to be replaced, got %s", text)
	}
}
