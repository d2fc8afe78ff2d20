package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr int

func (c codedErr) Error() string { return "sqlite error" }
func (c codedErr) Code() int     { return int(c) }

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"pg unique", &pgconn.PgError{Code: "23505"}, true},
		{"pg foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"wrapped pg unique", eris.Wrap(&pgconn.PgError{Code: "23505"}, "store: insert"), true},
		{"sqlite unique", codedErr(2067), true},
		{"sqlite primary key", codedErr(1555), true},
		{"sqlite foreign key", codedErr(787), false},
		{"text fallback", errors.New("UNIQUE constraint failed: jurisdictions.name"), true},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestIsConstraintViolation(t *testing.T) {
	assert.True(t, IsConstraintViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsConstraintViolation(codedErr(787)))
	assert.True(t, IsConstraintViolation(codedErr(275)))
	assert.False(t, IsConstraintViolation(codedErr(5)))
	assert.False(t, IsConstraintViolation(&pgconn.PgError{Code: "42P01"}))
	assert.True(t, IsConstraintViolation(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsConstraintViolation(nil))
}

func TestNewPool_BadConnString(t *testing.T) {
	_, err := NewPool(context.Background(), "://not a dsn", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db: parse config")
}
