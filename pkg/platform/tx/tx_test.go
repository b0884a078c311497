package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTxIgnoresNil(t *testing.T) {
	ctx := WithTx(context.Background(), nil)
	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestOrFallsBackToDB(t *testing.T) {
	db := &sql.DB{}
	assert.Same(t, db, Or(context.Background(), db))

	tx := &sql.Tx{}
	got := Or(WithTx(context.Background(), tx), db)
	assert.Same(t, tx, got)
}
