package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "validation",
			err:  NewValidationError("step %d has no text", 2),
			want: "validation failed: step 2 has no text",
		},
		{
			name: "not found",
			err:  &NotFoundError{Entity: "menu", Key: int64(7)},
			want: "menu 7 not found",
		},
		{
			name: "schema",
			err:  &SchemaCompatibilityError{Detail: "no recipe table"},
			want: "incompatible schema: no recipe table",
		},
		{
			name: "identifier exhaustion",
			err:  &IdentifierExhaustionError{Attempts: 3, Last: 12},
			want: "no free recipe id after 3 attempts (last candidate 12)",
		},
		{
			name: "timeout",
			err:  &TimeoutError{Op: "ingredient search", After: 15 * time.Second},
			want: "ingredient search timed out after 15s",
		},
		{
			name: "aggregation precondition",
			err:  &AggregationPreconditionError{MenuID: 4},
			want: "menu 4 has no items to build a shopping list from",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPredicates(t *testing.T) {
	notFound := fmt.Errorf("load recipe: %w", &NotFoundError{Entity: "recipe", Key: 1})
	invalid := fmt.Errorf("create: %w", NewValidationError("name is required"))
	timeout := fmt.Errorf("search: %w", &TimeoutError{Op: "search", After: time.Second, Err: context.DeadlineExceeded})

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(invalid))
	assert.True(t, IsValidation(invalid))
	assert.False(t, IsValidation(timeout))
	assert.True(t, IsTimeout(timeout))
	assert.True(t, errors.Is(timeout, context.DeadlineExceeded))
	assert.False(t, IsTimeout(errors.New("boom")))
}
