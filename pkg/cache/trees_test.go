package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gofhir/profiler/pkg/tree"
)

func baseTree() *tree.ElementNode {
	root := tree.NewElement("Patient", tree.Inherited)
	name, _ := root.EnsureChild("name", tree.Inherited)
	name.Constraints.Min = tree.Ptr(uint32(0))
	return root
}

func TestTreesReturnsClones(t *testing.T) {
	var loads atomic.Int32
	trees := NewTrees(4, func(_ context.Context, url, version string) (*tree.ElementNode, error) {
		loads.Add(1)
		return baseTree(), nil
	})
	ctx := context.Background()

	first, err := trees.Get(ctx, "http://hl7.org/fhir/StructureDefinition/Patient", "")
	if err != nil {
		t.Fatal(err)
	}
	first.Child("name").Constraints.Min = tree.Ptr(uint32(1))

	second, err := trees.Get(ctx, "http://hl7.org/fhir/StructureDefinition/Patient", "")
	if err != nil {
		t.Fatal(err)
	}
	if got := *second.Child("name").Constraints.Min; got != 0 {
		t.Errorf("cached tree was mutated: min = %d", got)
	}
	if first.ID == second.ID {
		t.Error("clones share node ids")
	}
	if n := loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
	if s := trees.Stats(); s.Hits != 1 {
		t.Errorf("Hits = %d, want 1", s.Hits)
	}
}

func TestTreesVersionKeys(t *testing.T) {
	if k := Key("http://x", ""); k != "http://x" {
		t.Errorf("Key() = %q", k)
	}
	if k := Key("http://x", "1.0"); k != "http://x|1.0" {
		t.Errorf("Key() = %q", k)
	}

	var loads atomic.Int32
	trees := NewTrees(4, func(context.Context, string, string) (*tree.ElementNode, error) {
		loads.Add(1)
		return baseTree(), nil
	})
	ctx := context.Background()
	_, _ = trees.Get(ctx, "http://x", "1.0")
	_, _ = trees.Get(ctx, "http://x", "2.0")
	if n := loads.Load(); n != 2 {
		t.Errorf("loads = %d, want 2", n)
	}
	trees.Invalidate("http://x", "1.0")
	_, _ = trees.Get(ctx, "http://x", "1.0")
	if n := loads.Load(); n != 3 {
		t.Errorf("loads after Invalidate = %d, want 3", n)
	}
}

func TestTreesErrorsNotCached(t *testing.T) {
	fail := errors.New("unreachable")
	calls := 0
	trees := NewTrees(4, func(context.Context, string, string) (*tree.ElementNode, error) {
		calls++
		if calls == 1 {
			return nil, fail
		}
		return baseTree(), nil
	})
	ctx := context.Background()
	if _, err := trees.Get(ctx, "http://x", ""); !errors.Is(err, fail) {
		t.Fatalf("Get() error = %v, want %v", err, fail)
	}
	if _, err := trees.Get(ctx, "http://x", ""); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
}

func TestTreesPut(t *testing.T) {
	trees := NewTrees(4, func(context.Context, string, string) (*tree.ElementNode, error) {
		return nil, errors.New("should not load")
	})
	root := baseTree()
	trees.Put("http://x", "", root)
	root.Child("name").Constraints.Min = tree.Ptr(uint32(5))

	got, err := trees.Get(context.Background(), "http://x", "")
	if err != nil {
		t.Fatal(err)
	}
	if *got.Child("name").Constraints.Min != 0 {
		t.Error("Put did not store a clone")
	}
}

func TestTreesConcurrentLoadOnce(t *testing.T) {
	var loads atomic.Int32
	trees := NewTrees(4, func(context.Context, string, string) (*tree.ElementNode, error) {
		loads.Add(1)
		return baseTree(), nil
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := trees.Get(context.Background(), "http://x", ""); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if n := loads.Load(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
}
