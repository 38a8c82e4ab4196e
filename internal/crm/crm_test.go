package crm

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeCRMFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crm.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write CRM file: %v", err)
	}
	return path
}

func TestCSVLookupFindsRecord(t *testing.T) {
	path := writeCRMFile(t, "user_id,name,email,phone\nU001,Asha,asha@example.com,+14155550100\nU002,Ben,ben@example.com,+14155550101\n")
	lookup := NewCSVLookup(path)

	record, err := lookup.Find(context.Background(), "U002")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if record == nil {
		t.Fatal("expected a record, got nil")
	}
	if record["name"] != "Ben" || record["email"] != "ben@example.com" {
		t.Errorf("unexpected record: %v", record)
	}
	if record[UserIDColumn] != "U002" {
		t.Errorf("expected user_id column in record, got %v", record)
	}
}

func TestCSVLookupNoMatchReturnsNil(t *testing.T) {
	path := writeCRMFile(t, "user_id,name\nU001,Asha\n")
	lookup := NewCSVLookup(path)

	record, err := lookup.Find(context.Background(), "U999")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if record != nil {
		t.Errorf("expected nil record for unknown user, got %v", record)
	}
}

func TestCSVLookupMissingFile(t *testing.T) {
	lookup := NewCSVLookup(filepath.Join(t.TempDir(), "absent.csv"))
	if _, err := lookup.Find(context.Background(), "U001"); err == nil {
		t.Error("expected error for missing CRM file")
	}
}

func TestCSVLookupMissingUserIDColumn(t *testing.T) {
	path := writeCRMFile(t, "id,name\nU001,Asha\n")
	lookup := NewCSVLookup(path)
	if _, err := lookup.Find(context.Background(), "U001"); err == nil {
		t.Error("expected error when user_id column is absent")
	}
}

func TestCSVLookupMalformedRow(t *testing.T) {
	path := writeCRMFile(t, "user_id,name\n\"U001,Asha\n")
	lookup := NewCSVLookup(path)
	if _, err := lookup.Find(context.Background(), "U001"); err == nil {
		t.Error("expected error for malformed CSV content")
	}
}

func TestCSVLookupCanceledContext(t *testing.T) {
	path := writeCRMFile(t, "user_id,name\nU001,Asha\n")
	lookup := NewCSVLookup(path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := lookup.Find(ctx, "U001"); err == nil {
		t.Error("expected error for canceled context")
	}
}
