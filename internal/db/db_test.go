package db

import "testing"

func TestPoolMaxConns_Default(t *testing.T) {
	t.Setenv("DATABASE_MAX_CONNS", "")
	if got := poolMaxConns(); got != defaultMaxConns {
		t.Fatalf("expected default %d, got %d", defaultMaxConns, got)
	}
}

func TestPoolMaxConns_EnvOverride(t *testing.T) {
	t.Setenv("DATABASE_MAX_CONNS", "20")
	if got := poolMaxConns(); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
}

func TestPoolMaxConns_BadValueFallsBack(t *testing.T) {
	t.Setenv("DATABASE_MAX_CONNS", "lots")
	if got := poolMaxConns(); got != defaultMaxConns {
		t.Fatalf("expected default %d, got %d", defaultMaxConns, got)
	}
}
