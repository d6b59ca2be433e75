package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{IllegalArgument("bad %s", "x"), http.StatusBadRequest},
		{NotFound("missing"), http.StatusNotFound},
		{Conflict("claimed"), http.StatusConflict},
		{Forbidden("nope"), http.StatusForbidden},
		{UnsupportedMediaType("multipart"), http.StatusUnsupportedMediaType},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("outer: %w", NotFound("inner")), http.StatusNotFound},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.err), c.err.Error())
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("row lock")
	err := Wrap(KindConflict, cause, "update task")
	assert.True(t, IsConflict(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "update task: row lock", err.Error())
	assert.Nil(t, Wrap(KindConflict, nil, "x"))
}
