package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/c360studio/udahub/capability/tools"
	"github.com/c360studio/udahub/internal/natstest"
)

func seededServices(t *testing.T) (*KBService, *AccountService, *MemoryService) {
	t.Helper()
	dir := t.TempDir()

	kb, err := NewKBService(filepath.Join(dir, "kb.db"))
	if err != nil {
		t.Fatalf("NewKBService() error = %v", err)
	}
	t.Cleanup(func() { kb.Close() })

	account, err := NewAccountService(filepath.Join(dir, "account.db"))
	if err != nil {
		t.Fatalf("NewAccountService() error = %v", err)
	}
	t.Cleanup(func() { account.Close() })

	memory, err := NewMemoryService(filepath.Join(dir, "memory.db"))
	if err != nil {
		t.Fatalf("NewMemoryService() error = %v", err)
	}
	t.Cleanup(func() { memory.Close() })

	if err := SeedDemo(kb, account); err != nil {
		t.Fatalf("SeedDemo() error = %v", err)
	}
	return kb, account, memory
}

func TestKBSearchRanksByHits(t *testing.T) {
	kb, _, _ := seededServices(t)

	articles, err := kb.Search("refund for cancelled experience", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(articles) == 0 {
		t.Fatal("Search() returned no articles")
	}
	if articles[0].ArticleID != "kb-002" {
		t.Errorf("top article = %s, want kb-002", articles[0].ArticleID)
	}
	for i := 1; i < len(articles); i++ {
		if articles[i].Score > articles[i-1].Score {
			t.Errorf("articles not sorted by score at %d", i)
		}
	}
}

func TestKBSearchEmptyQuery(t *testing.T) {
	kb, _, _ := seededServices(t)

	articles, err := kb.Search("   ", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("Search(blank) returned %d articles, want 0", len(articles))
	}
}

func TestKBGet(t *testing.T) {
	kb, _, _ := seededServices(t)

	a, err := kb.Get("kb-001")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if a == nil || a.Title != "How to reset your password" {
		t.Fatalf("Get(kb-001) = %+v", a)
	}

	missing, err := kb.Get("kb-999")
	if err != nil {
		t.Fatalf("Get(missing) error = %v", err)
	}
	if missing != nil {
		t.Errorf("Get(missing) = %+v, want nil", missing)
	}
}

func TestAccountGetUser(t *testing.T) {
	_, account, _ := seededServices(t)

	view, err := account.GetUser("cp-1001")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if view.ExternalUser == nil || view.ExternalUser.Name != "Rosa Delgado" {
		t.Errorf("ExternalUser = %+v", view.ExternalUser)
	}
	if view.CoreUser == nil || view.CoreUser.UserID != "u-1" {
		t.Errorf("CoreUser = %+v", view.CoreUser)
	}
	if view.ReservationCount != 2 {
		t.Errorf("ReservationCount = %d, want 2", view.ReservationCount)
	}
	if view.TicketCount != 1 {
		t.Errorf("TicketCount = %d, want 1", view.TicketCount)
	}
}

func TestAccountGetUserUnknown(t *testing.T) {
	_, account, _ := seededServices(t)

	view, err := account.GetUser("cp-9999")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if view.ExternalUser != nil || view.CoreUser != nil {
		t.Errorf("unknown user view = %+v, want empty", view)
	}
}

func TestAccountGetReservations(t *testing.T) {
	_, account, _ := seededServices(t)

	reservations, err := account.GetReservations("cp-1001")
	if err != nil {
		t.Fatalf("GetReservations() error = %v", err)
	}
	if len(reservations) != 2 {
		t.Fatalf("got %d reservations, want 2", len(reservations))
	}
	if reservations[0].ExperienceTitle == "" {
		t.Error("reservation missing experience title")
	}
}

func TestMemoryWriteSearchReadAll(t *testing.T) {
	_, _, memory := seededServices(t)

	entry, err := memory.Write(tools.MemoryWriteRequest{
		ExternalUserID: "cp-1001",
		TicketID:       "T-900",
		Content:        "Customer prefers email follow-ups for refund issues",
		Metadata:       map[string]any{"issue_type": "refund"},
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if entry.MemoryID == "" {
		t.Error("Write() did not assign a memory id")
	}

	if _, err := memory.Write(tools.MemoryWriteRequest{
		ExternalUserID: "cp-1001",
		Content:        "Resolved login lockout by password reset",
	}); err != nil {
		t.Fatalf("Write() second entry error = %v", err)
	}

	found, err := memory.Search(tools.MemorySearchRequest{ExternalUserID: "cp-1001", Query: "refund"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Search(refund) = %d entries, want 1", len(found))
	}
	if found[0].Metadata["issue_type"] != "refund" {
		t.Errorf("metadata = %v", found[0].Metadata)
	}

	all, err := memory.ReadAll(tools.MemoryReadAllRequest{ExternalUserID: "cp-1001"})
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ReadAll() = %d entries, want 2", len(all))
	}

	// Other customers see nothing.
	other, err := memory.ReadAll(tools.MemoryReadAllRequest{ExternalUserID: "cp-1002"})
	if err != nil {
		t.Fatalf("ReadAll(other) error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("ReadAll(other) = %d entries, want 0", len(other))
	}
}

func TestMemoryWriteValidation(t *testing.T) {
	_, _, memory := seededServices(t)

	if _, err := memory.Write(tools.MemoryWriteRequest{Content: "orphan"}); err == nil {
		t.Error("Write() without external_user_id should fail")
	}
	if _, err := memory.Write(tools.MemoryWriteRequest{ExternalUserID: "cp-1001"}); err == nil {
		t.Error("Write() without content should fail")
	}
}

func TestServerRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping NATS round trip in short mode")
	}

	kb, account, memory := seededServices(t)
	nc, _ := natstest.RunServer(t)

	srv := NewServer(nc, kb, account, memory)
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(srv.Stop)

	ctx := context.Background()

	kbc := tools.NewKBClient(nc)
	articles, err := kbc.Search(ctx, "password reset", 3)
	if err != nil {
		t.Fatalf("KB Search over NATS error = %v", err)
	}
	if len(articles) == 0 || articles[0].ArticleID != "kb-001" {
		t.Fatalf("KB Search = %+v, want kb-001 first", articles)
	}

	acc := tools.NewAccountClient(nc)
	view, err := acc.GetUser(ctx, "cp-1002")
	if err != nil {
		t.Fatalf("GetUser over NATS error = %v", err)
	}
	if view.ExternalUser == nil || view.ExternalUser.Name != "Mika Tanaka" {
		t.Errorf("GetUser = %+v", view.ExternalUser)
	}

	mem := tools.NewMemoryClient(nc)
	entry, err := mem.Write(ctx, tools.MemoryWriteRequest{
		ExternalUserID: "cp-1002",
		Content:        "Asked about subscription billing date",
	})
	if err != nil {
		t.Fatalf("memory Write over NATS error = %v", err)
	}
	if entry.MemoryID == "" {
		t.Error("memory Write returned empty id")
	}

	entries, err := mem.Search(ctx, tools.MemorySearchRequest{ExternalUserID: "cp-1002", Query: "billing"})
	if err != nil {
		t.Fatalf("memory Search over NATS error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("memory Search = %d entries, want 1", len(entries))
	}
}
