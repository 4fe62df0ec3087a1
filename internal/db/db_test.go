package db

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	"github.com/example/visaslot/internal/internaltypes"
)

func TestWrapNotFound(t *testing.T) {
	assert.NoError(t, WrapNotFound(nil))
	assert.ErrorIs(t, WrapNotFound(pgx.ErrNoRows), internaltypes.ErrNotFound)

	other := errors.New("conn reset")
	err := WrapNotFound(other)
	assert.ErrorIs(t, err, other)
	assert.False(t, IsNotFound(err))
	assert.True(t, IsNotFound(pgx.ErrNoRows))
}
