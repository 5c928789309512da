package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/xmubeta/outlook-mcp-server/internal/source"
	"github.com/xmubeta/outlook-mcp-server/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// Folder returns the store folder playing role, failing the test if
// it is missing.
func Folder(t *testing.T, s *store.SQLiteStore, role source.Role) *store.Folder {
	t.Helper()

	f, err := s.FolderByRole(context.Background(), role)
	if err != nil {
		t.Fatalf("getting %s folder: %v", role, err)
	}
	return f
}

// AddMail inserts m into folderID and returns its id.
func AddMail(t *testing.T, s *store.SQLiteStore, folderID string, m source.RawMail) string {
	t.Helper()

	id, err := s.InsertMessage(context.Background(), folderID, m)
	if err != nil {
		t.Fatalf("inserting message: %v", err)
	}
	return id
}

// AddAppointment inserts a into folderID and returns its id.
func AddAppointment(t *testing.T, s *store.SQLiteStore, folderID string, a source.RawAppointment) string {
	t.Helper()

	id, err := s.InsertAppointment(context.Background(), folderID, a)
	if err != nil {
		t.Fatalf("inserting appointment: %v", err)
	}
	return id
}

// Mail builds a minimal mail item.
func Mail(subject, sender string, received time.Time) source.RawMail {
	return source.RawMail{
		Subject:       source.Ptr(subject),
		SenderName:    source.Ptr(sender),
		SenderAddress: source.Ptr("sender@example.com"),
		ReceivedTime:  received,
		Body:          source.Ptr(""),
		Unread:        source.Ptr(true),
	}
}

// Appointment builds a minimal calendar item lasting one hour.
func Appointment(subject string, start time.Time) source.RawAppointment {
	return source.RawAppointment{
		Subject: source.Ptr(subject),
		Start:   start,
		End:     start.Add(time.Hour),
	}
}
