package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/apperr"
)

func TestWriteErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.NotFound("invoice"), http.StatusNotFound, "invoice not found"},
		{fmt.Errorf("load: %w", apperr.ErrNotFound), http.StatusNotFound, "not found"},
		{apperr.Forbidden(), http.StatusForbidden, "forbidden"},
		{apperr.BusinessRule("only DRAFT invoices can be deleted"), http.StatusUnprocessableEntity, "only DRAFT invoices can be deleted"},
		{apperr.Validation("bad"), http.StatusBadRequest, "bad"},
		{apperr.ErrConflict, http.StatusConflict, "resource was modified by another request"},
		{errors.New("connection reset by peer"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), tc.msg)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	}
}

type sample struct {
	Name  string `json:"name" validate:"required,max=5"`
	Count int    `json:"count" validate:"min=0"`
}

func TestDecodeValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"abc","count":2}`))
	var ok sample
	require.NoError(t, decode(req, &ok))
	assert.Equal(t, "abc", ok.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"toolong","count":-1}`))
	var bad sample
	err := decode(req, &bad)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, err.Error(), "sample.Name (max)")
	assert.Contains(t, err.Error(), "sample.Count (min)")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"abc","unknown":1}`))
	assert.True(t, apperr.Is(decode(req, &sample{}), apperr.KindValidation))
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestReadyzReportsFailingDependency(t *testing.T) {
	h := NewHealthHandler(map[string]Pinger{"database": pinger{}, "redis": pinger{err: errors.New("refused")}})
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy: refused")
}
