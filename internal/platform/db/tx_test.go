package db

import (
	"context"
	"testing"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil transaction, got %v", tx)
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Errorf("expected nil transaction for foreign value, got %v", tx)
	}
}
