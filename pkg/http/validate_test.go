package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeItem struct {
	Kind string `json:"kind" validate:"required"`
}

type probeRequest struct {
	Symbol string      `json:"symbol" validate:"required"`
	Frame  string      `json:"frame" default:"M1" validate:"oneof=M1 M5"`
	Items  []probeItem `json:"items" validate:"max=2,dive"`
}

func bindProbe(t *testing.T, body string) (*probeRequest, []ValidationError) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	out := &probeRequest{}
	return out, ReadAndValidateRequest(c, out)
}

func TestReadAndValidateRequest_DefaultsAndSuccess(t *testing.T) {
	got, verr := bindProbe(t, `{"symbol":"WIN","items":[{"kind":"AJUSTE"}]}`)
	require.Nil(t, verr)
	assert.Equal(t, "M1", got.Frame)
	assert.Len(t, got.Items, 1)
}

func TestReadAndValidateRequest_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"missing symbol", `{"items":[]}`, "ERR_REQUIRED", "symbol"},
		{"bad frame", `{"symbol":"WIN","frame":"H4"}`, "ERR_ONEOF", "frame"},
		{"nested item", `{"symbol":"WIN","items":[{"kind":""}]}`, "ERR_REQUIRED", "items[0].kind"},
		{"too many items", `{"symbol":"WIN","items":[{"kind":"a"},{"kind":"b"},{"kind":"c"}]}`, "ERR_MAX", "items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, verr := bindProbe(t, tt.body)
			require.Len(t, verr, 1)
			assert.Equal(t, tt.code, verr[0].Code)
			assert.Equal(t, tt.field, verr[0].Field)
			assert.Contains(t, verr[0].Message, tt.field)
		})
	}
}

func TestReadAndValidateRequest_BindError(t *testing.T) {
	_, verr := bindProbe(t, `{"symbol":`)
	require.Len(t, verr, 1)
	assert.Equal(t, "ERR_BIND", verr[0].Code)
}
