package catalog

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/indexscout/index-scout/internal/config"
	"github.com/indexscout/index-scout/internal/pkg/errors"
)

type fakeFetcher struct {
	defs  map[string][]IndexDefinition
	err   error
	calls int
}

func (f *fakeFetcher) FetchIndexes(_ context.Context, ns string) ([]IndexDefinition, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.defs[ns], nil
}

func testConfig() config.CatalogConfig {
	return config.CatalogConfig{CacheSize: 16, FetchPerSec: 100}
}

func TestCatalog_FetchesAndCaches(t *testing.T) {
	fetcher := &fakeFetcher{defs: map[string][]IndexDefinition{
		"shop.orders": {{NS: "shop.orders", Name: "a_1", Keys: []IndexKey{{Field: "a", Order: 1}}}},
	}}
	cat := New(fetcher, testConfig(), nil)

	for i := 0; i < 3; i++ {
		defs, err := cat.IndexesFor(context.Background(), "shop.orders")
		if err != nil {
			t.Fatalf("IndexesFor() error = %v", err)
		}
		if len(defs) != 1 || defs[0].Name != "a_1" {
			t.Fatalf("defs = %v, want the a_1 index", defs)
		}
	}

	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (cached after first use)", fetcher.calls)
	}
}

func TestCatalog_PerNamespaceSnapshots(t *testing.T) {
	fetcher := &fakeFetcher{defs: map[string][]IndexDefinition{
		"shop.orders": {{NS: "shop.orders", Name: "a_1"}},
		"shop.users":  {{NS: "shop.users", Name: "email_1"}},
	}}
	cat := New(fetcher, testConfig(), nil)

	orders, _ := cat.IndexesFor(context.Background(), "shop.orders")
	users, _ := cat.IndexesFor(context.Background(), "shop.users")

	if len(orders) != 1 || orders[0].Name != "a_1" {
		t.Errorf("orders snapshot = %v", orders)
	}
	if len(users) != 1 || users[0].Name != "email_1" {
		t.Errorf("users snapshot = %v", users)
	}
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.calls)
	}
}

func TestCatalog_FetchErrorDegrades(t *testing.T) {
	fetcher := &fakeFetcher{err: stderrors.New("auth failed")}
	cat := New(fetcher, testConfig(), nil)

	_, err := cat.IndexesFor(context.Background(), "shop.orders")
	if err == nil {
		t.Fatal("IndexesFor() error = nil, want catalog unavailable")
	}
	if !errors.IsCatalogUnavailable(err) {
		t.Errorf("error = %v, want catalog-unavailable code", err)
	}

	// Failures are not cached; the next call retries.
	cat.IndexesFor(context.Background(), "shop.orders")
	if fetcher.calls != 2 {
		t.Errorf("fetch calls = %d, want 2", fetcher.calls)
	}
}

func TestCatalog_Disabled(t *testing.T) {
	cat := NewDisabled()
	if !cat.Disabled() {
		t.Fatal("Disabled() = false")
	}

	_, err := cat.IndexesFor(context.Background(), "shop.orders")
	if !stderrors.Is(err, ErrVerificationDisabled) {
		t.Errorf("error = %v, want ErrVerificationDisabled", err)
	}
}

func TestCatalog_FetchThrottled(t *testing.T) {
	fetcher := &fakeFetcher{}
	cat := New(fetcher, config.CatalogConfig{CacheSize: 16, FetchPerSec: 1}, nil)

	// The burst allows one fetch; a second distinct namespace in the same
	// instant is throttled.
	if _, err := cat.IndexesFor(context.Background(), "db.a"); err != nil {
		t.Fatalf("first fetch error = %v", err)
	}
	_, err := cat.IndexesFor(context.Background(), "db.b")
	if !errors.IsCatalogUnavailable(err) {
		t.Errorf("error = %v, want throttled catalog-unavailable", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}
}

func TestSplitNS(t *testing.T) {
	tests := []struct {
		ns       string
		wantDB   string
		wantColl string
		wantErr  bool
	}{
		{ns: "shop.orders", wantDB: "shop", wantColl: "orders"},
		{ns: "shop.system.profile", wantDB: "shop", wantColl: "system.profile"},
		{ns: "nodot", wantErr: true},
		{ns: ".orders", wantErr: true},
		{ns: "shop.", wantErr: true},
	}

	for _, tt := range tests {
		db, coll, err := SplitNS(tt.ns)
		if tt.wantErr {
			if err == nil {
				t.Errorf("SplitNS(%q) error = nil, want error", tt.ns)
			}
			continue
		}
		if err != nil {
			t.Errorf("SplitNS(%q) error = %v", tt.ns, err)
			continue
		}
		if db != tt.wantDB || coll != tt.wantColl {
			t.Errorf("SplitNS(%q) = (%q, %q), want (%q, %q)",
				tt.ns, db, coll, tt.wantDB, tt.wantColl)
		}
	}
}
