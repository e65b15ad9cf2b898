package migrations_test

import (
	"context"
	"io/fs"
	"testing"

	"github.com/goliatone/go-oidc-store/migrations"
)

func TestFilesystems_ResolveBothDialects(t *testing.T) {
	filesystems, err := migrations.Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected postgres and sqlite filesystems, got %d", len(filesystems))
	}
	for _, spec := range filesystems {
		matches, err := fs.Glob(spec.FS, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", spec.Dialect, err)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migrations, found none", spec.Dialect)
		}
	}
}

func TestRegister_HonorsValidationTargets(t *testing.T) {
	var dialects []string
	_, err := migrations.Register(context.Background(), func(_ context.Context, dialect, label string, _ fs.FS) error {
		if label != "go-oidc-store" {
			t.Fatalf("unexpected source label %q", label)
		}
		dialects = append(dialects, dialect)
		return nil
	}, migrations.WithValidationTargets(migrations.DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(dialects) != 1 || dialects[0] != migrations.DialectSQLite {
		t.Fatalf("expected only sqlite to register, got %v", dialects)
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := migrations.Register(context.Background(), nil); err == nil {
		t.Fatalf("expected register function requirement error")
	}
}
