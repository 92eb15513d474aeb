package resilience

import (
	"errors"
	"testing"
	"time"
)

// fake is a minimal backend for chain tests: returns its value or an error.
type fake struct {
	text string
	err  error

	calls int
}

func (f *fake) get() (string, error) {
	f.calls++
	return f.text, f.err
}

func TestChainPrimarySucceeds(t *testing.T) {
	primary := &fake{text: "primary"}
	backup := &fake{text: "backup"}

	chain := NewChain(primary, "primary", ChainConfig{})
	chain.AddFallback("backup", backup)

	got, err := DoWithResult(chain, func(f *fake) (string, error) { return f.get() })
	if err != nil {
		t.Fatalf("DoWithResult() error = %v, want nil", err)
	}
	if got != "primary" {
		t.Fatalf("DoWithResult() = %q, want %q", got, "primary")
	}
	if backup.calls != 0 {
		t.Fatalf("backup called %d times, want 0", backup.calls)
	}
}

func TestChainFailsOverToBackup(t *testing.T) {
	primary := &fake{err: errBoom}
	backup := &fake{text: "backup"}

	chain := NewChain(primary, "primary", ChainConfig{})
	chain.AddFallback("backup", backup)

	got, err := DoWithResult(chain, func(f *fake) (string, error) { return f.get() })
	if err != nil {
		t.Fatalf("DoWithResult() error = %v, want nil", err)
	}
	if got != "backup" {
		t.Fatalf("DoWithResult() = %q, want %q", got, "backup")
	}
	if primary.calls != 1 {
		t.Fatalf("primary called %d times, want 1", primary.calls)
	}
}

func TestChainAllFail(t *testing.T) {
	primary := &fake{err: errBoom}
	backup := &fake{err: errBoom}

	chain := NewChain(primary, "primary", ChainConfig{})
	chain.AddFallback("backup", backup)

	_, err := DoWithResult(chain, func(f *fake) (string, error) { return f.get() })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("DoWithResult() error = %v, want ErrAllFailed", err)
	}
}

func TestChainSkipsOpenBreaker(t *testing.T) {
	primary := &fake{err: errBoom}
	backup := &fake{text: "backup"}

	chain := NewChain(primary, "primary", ChainConfig{
		Breaker: BreakerConfig{Trip: 2, Cooldown: time.Hour},
	})
	chain.AddFallback("backup", backup)

	do := func() (string, error) {
		return DoWithResult(chain, func(f *fake) (string, error) { return f.get() })
	}

	// Trip the primary's breaker.
	for range 3 {
		if _, err := do(); err != nil {
			t.Fatalf("do() error = %v, want fallback success", err)
		}
	}

	// Breaker is now open; the primary must no longer be invoked.
	before := primary.calls
	if before != 2 {
		t.Fatalf("primary called %d times before breaker opened, want 2", before)
	}
	if _, err := do(); err != nil {
		t.Fatalf("do() error = %v, want nil", err)
	}
	if primary.calls != before {
		t.Fatalf("primary called while breaker open")
	}
}

func TestChainDoWithoutResult(t *testing.T) {
	primary := &fake{err: errBoom}
	backup := &fake{}

	chain := NewChain(primary, "primary", ChainConfig{})
	chain.AddFallback("backup", backup)

	if err := chain.Do(func(f *fake) error { _, err := f.get(); return err }); err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if backup.calls != 1 {
		t.Fatalf("backup called %d times, want 1", backup.calls)
	}
}
