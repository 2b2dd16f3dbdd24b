package casestore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

// sampleCase returns AddCase inputs for the given customer.
func sampleCase(customerID, name string) NewCase {
	return NewCase{
		CustomerID:       customerID,
		Name:             name,
		CardLast4:        "4242",
		SecurityQuestion: "First pet?",
		SecurityAnswer:   "Rex",
		Merchant:         "ACME Ltd",
		Amount:           "199.99",
		Location:         "Berlin",
		Timestamp:        "2026-08-27 09:30:00",
	}
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestMigrateIdempotent verifies that repeated initialization leaves
// exactly one cases table and one transactions table.
func TestMigrateIdempotent(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	for _, table := range []string{"cases", "transactions"} {
		var count int
		err := store.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
		).Scan(&count)
		if err != nil {
			t.Fatalf("failed to inspect schema: %v", err)
		}
		if count != 1 {
			t.Errorf("expected exactly 1 %s table, got %d", table, count)
		}
	}
}

// TestAddCaseAndFindByID tests atomic case creation and ID lookup
func TestAddCaseAndFindByID(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	nc := sampleCase("C1", "Alice")

	if err := store.AddCase(ctx, nc); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}

	detail, found := store.FindCaseByID(ctx, "C1")
	if !found {
		t.Fatal("expected case C1 to be found")
	}

	if detail.CustomerID != "C1" {
		t.Errorf("expected CustomerID C1, got %s", detail.CustomerID)
	}
	if detail.Name != "Alice" {
		t.Errorf("expected Name Alice, got %s", detail.Name)
	}
	if detail.Status != StatusPending {
		t.Errorf("expected Status %s, got %s", StatusPending, detail.Status)
	}
	if detail.Notes != "" {
		t.Errorf("expected empty Notes, got %q", detail.Notes)
	}
	if detail.CreatedAt.IsZero() || detail.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	if detail.Transaction == nil {
		t.Fatal("expected nested transaction")
	}
	if detail.Transaction.Merchant != nc.Merchant {
		t.Errorf("expected Merchant %s, got %s", nc.Merchant, detail.Transaction.Merchant)
	}
	if detail.Transaction.Amount != nc.Amount {
		t.Errorf("expected Amount %s, got %s", nc.Amount, detail.Transaction.Amount)
	}
	if detail.Transaction.Location != nc.Location {
		t.Errorf("expected Location %s, got %s", nc.Location, detail.Transaction.Location)
	}
	if detail.Transaction.Timestamp != nc.Timestamp {
		t.Errorf("expected Timestamp %s, got %s", nc.Timestamp, detail.Transaction.Timestamp)
	}
}

// TestAddCaseDuplicate tests the duplicate customer ID outcome
func TestAddCaseDuplicate(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.AddCase(ctx, sampleCase("C1", "Alice")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}

	err := store.AddCase(ctx, sampleCase("C1", "Mallory"))
	if !errors.Is(err, ErrDuplicateCase) {
		t.Fatalf("expected ErrDuplicateCase, got %v", err)
	}

	// The store retains the first case's values.
	detail, found := store.FindCaseByID(ctx, "C1")
	if !found {
		t.Fatal("expected case C1 to still exist")
	}
	if detail.Name != "Alice" {
		t.Errorf("expected first case's Name Alice, got %s", detail.Name)
	}

	// The duplicate attempt must not have left a second transaction.
	var txCount int
	if err := store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE customer_id = ?", "C1",
	).Scan(&txCount); err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	if txCount != 1 {
		t.Errorf("expected 1 transaction after rejected duplicate, got %d", txCount)
	}
}

// TestFindCaseByNameCaseInsensitive tests case-insensitive name lookup
func TestFindCaseByNameCaseInsensitive(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.AddCase(ctx, sampleCase("C1", "Alice")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}

	for _, name := range []string{"Alice", "alice", "ALICE"} {
		detail, found := store.FindCaseByName(ctx, name)
		if !found {
			t.Fatalf("expected lookup %q to find the case", name)
		}
		if detail.CustomerID != "C1" {
			t.Errorf("lookup %q: expected CustomerID C1, got %s", name, detail.CustomerID)
		}
		if detail.Transaction == nil {
			t.Errorf("lookup %q: expected nested transaction", name)
		}
	}

	// Substring does not match.
	if _, found := store.FindCaseByName(ctx, "Ali"); found {
		t.Error("expected substring lookup to miss")
	}
}

// TestFindCaseByNameTieBreak verifies the deterministic choice when
// several cases share a name: the lowest customer ID wins.
func TestFindCaseByNameTieBreak(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.AddCase(ctx, sampleCase("C-10", "Dana Smith")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}
	if err := store.AddCase(ctx, sampleCase("C-02", "dana smith")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}

	detail, found := store.FindCaseByName(ctx, "DANA SMITH")
	if !found {
		t.Fatal("expected a matching case")
	}
	if detail.CustomerID != "C-02" {
		t.Errorf("expected lowest customer ID C-02, got %s", detail.CustomerID)
	}
}

// TestMostRecentTransaction verifies the insertion-order invariant: the
// nested transaction is the latest inserted, regardless of its
// timestamp text.
func TestMostRecentTransaction(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.AddCase(ctx, sampleCase("C1", "Alice")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}

	second := Transaction{
		CustomerID: "C1",
		Merchant:   "Globex Corp",
		Amount:     "12.50",
		// Earlier timestamp text than the first transaction; it must
		// not matter.
		Timestamp: "2026-01-01 00:00:00",
		Location:  "Oslo",
	}
	if err := store.AddTransaction(ctx, second); err != nil {
		t.Fatalf("failed to add transaction: %v", err)
	}

	detail, found := store.FindCaseByID(ctx, "C1")
	if !found {
		t.Fatal("expected case C1 to be found")
	}
	if detail.Transaction == nil {
		t.Fatal("expected nested transaction")
	}
	if detail.Transaction.Merchant != second.Merchant {
		t.Errorf("expected latest transaction merchant %s, got %s",
			second.Merchant, detail.Transaction.Merchant)
	}
	if detail.Transaction.Timestamp != second.Timestamp {
		t.Errorf("expected latest transaction timestamp %s, got %s",
			second.Timestamp, detail.Transaction.Timestamp)
	}
}

// TestAddTransactionUnknownCase tests the foreign-key outcome
func TestAddTransactionUnknownCase(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	err := store.AddTransaction(ctx, Transaction{
		CustomerID: "nobody",
		Merchant:   "ACME Ltd",
		Amount:     "1.00",
		Location:   "Berlin",
		Timestamp:  "2026-08-27 09:30:00",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestCaseWithoutTransaction verifies the nested field is absent (nil)
// when no transaction exists for the customer.
func TestCaseWithoutTransaction(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Insert the case row directly; AddCase always pairs it with a
	// transaction.
	_, err := store.db.ExecContext(ctx, `
		INSERT INTO cases (customer_id, name, card_last4, security_question, security_answer)
		VALUES ('C9', 'Carol', '1111', 'q', 'a')
	`)
	if err != nil {
		t.Fatalf("failed to insert bare case: %v", err)
	}

	detail, found := store.FindCaseByID(ctx, "C9")
	if !found {
		t.Fatal("expected case C9 to be found")
	}
	if detail.Transaction != nil {
		t.Errorf("expected no nested transaction, got %+v", detail.Transaction)
	}
}

var noteEntryPattern = regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] `)

// TestUpdateStatusAppendsNotes tests the append-only note trail
func TestUpdateStatusAppendsNotes(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.AddCase(ctx, sampleCase("C1", "Alice")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}

	if err := store.UpdateStatus(ctx, "C1", StatusConfirmed, "flag raised"); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}

	detail, found := store.FindCaseByID(ctx, "C1")
	if !found {
		t.Fatal("expected case C1 to be found")
	}
	if detail.Status != StatusConfirmed {
		t.Errorf("expected status %s, got %s", StatusConfirmed, detail.Status)
	}
	firstNotes := detail.Notes
	if !noteEntryPattern.MatchString(firstNotes) {
		t.Fatalf("first note entry has unexpected shape: %q", firstNotes)
	}
	if !strings.HasSuffix(firstNotes, "] flag raised") {
		t.Errorf("first note entry should end with the note text, got %q", firstNotes)
	}
	if strings.Contains(firstNotes, noteSeparator) {
		t.Errorf("first note entry must not carry a separator, got %q", firstNotes)
	}

	if err := store.UpdateStatus(ctx, "C1", StatusCleared, "cleared by agent"); err != nil {
		t.Fatalf("failed to update status again: %v", err)
	}

	detail, found = store.FindCaseByID(ctx, "C1")
	if !found {
		t.Fatal("expected case C1 to be found")
	}
	if detail.Status != StatusCleared {
		t.Errorf("expected status %s, got %s", StatusCleared, detail.Status)
	}
	if !strings.HasPrefix(detail.Notes, firstNotes+noteSeparator) {
		t.Errorf("second update must append to existing notes, got %q", detail.Notes)
	}
	tail := strings.TrimPrefix(detail.Notes, firstNotes+noteSeparator)
	if !noteEntryPattern.MatchString(tail) {
		t.Errorf("appended note entry has unexpected shape: %q", tail)
	}
	if !strings.HasSuffix(tail, "] cleared by agent") {
		t.Errorf("appended note entry should end with the note text, got %q", tail)
	}
}

// TestUpdateStatusArbitraryValue verifies that status is not validated
// against an allowed set at this layer.
func TestUpdateStatusArbitraryValue(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.AddCase(ctx, sampleCase("C1", "Alice")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}

	if err := store.UpdateStatus(ctx, "C1", "escalated-to-legal", "forwarded"); err != nil {
		t.Fatalf("expected arbitrary status to be accepted: %v", err)
	}

	detail, _ := store.FindCaseByID(ctx, "C1")
	if detail.Status != "escalated-to-legal" {
		t.Errorf("expected status escalated-to-legal, got %s", detail.Status)
	}
}

// TestUpdateStatusNotFound tests the not-found outcome
func TestUpdateStatusNotFound(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	err := store.UpdateStatus(ctx, "ghost", StatusConfirmed, "note")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// No row may appear as a side effect.
	if _, found := store.FindCaseByID(ctx, "ghost"); found {
		t.Error("update of a missing case must not create a row")
	}
}

// TestListAllCases tests the listing projection and ordering
func TestListAllCases(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Empty store yields an empty, non-nil sequence.
	summaries := store.ListAllCases(ctx)
	if summaries == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(summaries) != 0 {
		t.Fatalf("expected 0 summaries, got %d", len(summaries))
	}

	if err := store.AddCase(ctx, sampleCase("C1", "Alice")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}
	if err := store.AddCase(ctx, sampleCase("C2", "Bob")); err != nil {
		t.Fatalf("failed to add case: %v", err)
	}

	// Touch C1 so it becomes the most recently updated case.
	if err := store.UpdateStatus(ctx, "C1", StatusConfirmed, "flag raised"); err != nil {
		t.Fatalf("failed to update status: %v", err)
	}

	summaries = store.ListAllCases(ctx)
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(summaries))
	}
	if summaries[0].CustomerID != "C1" || summaries[1].CustomerID != "C2" {
		t.Errorf("expected order [C1 C2], got [%s %s]",
			summaries[0].CustomerID, summaries[1].CustomerID)
	}

	if summaries[0].Status != StatusConfirmed {
		t.Errorf("expected summary status %s, got %s", StatusConfirmed, summaries[0].Status)
	}
	if summaries[0].CardLast4 != "4242" {
		t.Errorf("expected CardLast4 4242, got %s", summaries[0].CardLast4)
	}
	if summaries[0].UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
}

// TestFindAbsent tests that lookups for missing cases report absence,
// not an error.
func TestFindAbsent(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	if detail, found := store.FindCaseByID(ctx, "nobody"); found || detail != nil {
		t.Error("expected FindCaseByID miss")
	}
	if detail, found := store.FindCaseByName(ctx, "nobody"); found || detail != nil {
		t.Error("expected FindCaseByName miss")
	}
}

// TestAppendNote covers the note formatting rules directly.
func TestAppendNote(t *testing.T) {
	at, err := time.Parse(noteTimeLayout, "2026-08-28 10:00:00")
	if err != nil {
		t.Fatalf("failed to parse fixture time: %v", err)
	}

	got := appendNote("", "flag raised", at)
	want := "[2026-08-28 10:00:00] flag raised"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	got = appendNote(want, "cleared by agent", at)
	want = "[2026-08-28 10:00:00] flag raised | [2026-08-28 10:00:00] cleared by agent"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
