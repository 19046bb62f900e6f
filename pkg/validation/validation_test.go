package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Text  string   `json:"text" validate:"notblank"`
	RType string   `json:"rtype" validate:"choice=test_rtype"`
	Users []string `json:"usernames_to_add" validate:"max=2"`
	ID    string   `json:"id" validate:"omitempty,uuid"`
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	require.NoError(t, Register(v))
	RegisterChoices("test_rtype", "LIKE", "LOVE")
	return v
}

func TestFieldsUseJSONNames(t *testing.T) {
	v := newValidator(t)
	err := v.Struct(payload{Text: "   ", RType: "MEH", Users: []string{"a", "b", "c"}, ID: "nope"})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	fields := Fields(verrs)
	assert.Equal(t, "This field is required", fields["text"])
	assert.Equal(t, "Invalid choice! Allowed: LIKE, LOVE", fields["rtype"])
	assert.Equal(t, "2 items max", fields["usernames_to_add"])
	assert.Equal(t, "Invalid uuid", fields["id"])
}

func TestValidPayloadPasses(t *testing.T) {
	v := newValidator(t)
	assert.NoError(t, v.Struct(payload{Text: "hi", RType: "LOVE", Users: []string{"a"}}))
}
