package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/rajivgeraev/sendix-api/internal/apperr"
)

func TestWrapErr(t *testing.T) {
	assert.NoError(t, wrapErr(nil, "x"))
	assert.ErrorIs(t, wrapErr(pgx.ErrNoRows, "груз"), apperr.ErrNotFound)
	assert.ErrorIs(t, wrapErr(&pgconn.PgError{Code: codeUniqueViolation}, "чат"), apperr.ErrDuplicate)

	conflict := wrapErr(&pgconn.PgError{Code: codeSerializationFailure}, "обновление")
	assert.True(t, isRetryable(conflict))
	assert.True(t, isRetryable(fmt.Errorf("обёртка: %w", conflict)))
	assert.False(t, isRetryable(errors.New("другая ошибка")))
}

func TestWhereBuilder(t *testing.T) {
	var w whereBuilder
	assert.Equal(t, "", w.sql())

	w.add("p.load_id = $%d", "L1")
	w.add("lower(c.email) = lower($%d)", "a@b.c")
	assert.Equal(t, " WHERE p.load_id = $1 AND lower(c.email) = lower($2)", w.sql())
	assert.Equal(t, []any{"L1", "a@b.c"}, w.args)
}
