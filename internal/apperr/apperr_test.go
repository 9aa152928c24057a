package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("get invoice: %w", ErrNotFound)))
	assert.Equal(t, KindConflict, KindOf(fmt.Errorf("decide: %w", ErrConflict)))
	assert.Equal(t, KindBusinessRule, KindOf(fmt.Errorf("wrap: %w", BusinessRule("locked"))))
	assert.Equal(t, KindForbidden, KindOf(Forbidden()))
	assert.Equal(t, KindInternal, KindOf(errors.New("connection reset")))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "invoice not found", Message(NotFound("invoice")))
	assert.Equal(t, "internal error", Message(errors.New("dial tcp: refused")))
	assert.Equal(t, "only draft invoices can be deleted", Message(BusinessRule("only draft invoices can be deleted")))
}

func TestMapNotFound(t *testing.T) {
	err := MapNotFound(fmt.Errorf("get room: %w", ErrNotFound), "room")
	assert.True(t, Is(err, KindNotFound))
	assert.Contains(t, err.Error(), "room not found")

	other := errors.New("boom")
	assert.Same(t, other, MapNotFound(other, "room"))
}
