package registry

import (
	"fmt"
	"testing"
)

// TestItem is a simple struct for testing
type TestItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	tests := []struct {
		name    string
		item    TestItem
		wantErr bool
	}{
		{
			name: "register valid item",
			item: TestItem{
				ID:   "test-1",
				Name: "Test Item 1",
			},
			wantErr: false,
		},
		{
			name: "register item with empty name",
			item: TestItem{
				ID:   "",
				Name: "Test Item",
			},
			wantErr: true,
		},
		{
			name: "register duplicate item",
			item: TestItem{
				ID:   "test-1", // Same ID as first test
				Name: "Test Item 2",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registry.Register(tt.item.ID, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("BaseRegistry.Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Get(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	item := TestItem{ID: "test-1", Name: "Test Item"}
	if err := registry.Register(item.ID, item); err != nil {
		t.Fatalf("failed to register item: %v", err)
	}

	got, exists := registry.Get("test-1")
	if !exists {
		t.Fatal("expected item to exist")
	}
	if got.Name != item.Name {
		t.Errorf("got name %q, want %q", got.Name, item.Name)
	}

	if _, exists := registry.Get("missing"); exists {
		t.Error("expected missing item to not exist")
	}
}

func TestBaseRegistry_ListOrder(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("item-%d", i)
		if err := registry.Register(id, TestItem{ID: id}); err != nil {
			t.Fatalf("failed to register %s: %v", id, err)
		}
	}

	names := registry.Names()
	if len(names) != 5 {
		t.Fatalf("expected 5 names, got %d", len(names))
	}
	for i, name := range names {
		want := fmt.Sprintf("item-%d", i)
		if name != want {
			t.Errorf("names[%d] = %q, want %q", i, name, want)
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	registry := NewBaseRegistry[TestItem]()

	item := TestItem{ID: "test-1", Name: "Test Item"}
	if err := registry.Register(item.ID, item); err != nil {
		t.Fatalf("failed to register item: %v", err)
	}

	if err := registry.Remove("test-1"); err != nil {
		t.Errorf("unexpected error removing item: %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("expected count 0, got %d", registry.Count())
	}
	if err := registry.Remove("test-1"); err == nil {
		t.Error("expected error removing missing item")
	}
}
