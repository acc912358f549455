package apierrors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRegisteredCodes(t *testing.T) {
	for _, code := range []string{
		CodeInvalidRequest,
		CodeNotFound,
		CodeInternalError,
		CodePluginNotFound,
		CodeValidationFailed,
		CodeStorageUnavailable,
	} {
		e, ok := Registry.Get(code)
		require.True(t, ok, "code %s not registered", code)
		assert.Equal(t, code, e.Code)
		assert.NotEmpty(t, e.Message)
		assert.NotZero(t, e.HTTPStatus)
	}
}

func TestHTTPStatusLookup(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, Registry.HTTPStatus(CodePluginNotFound))
	assert.Equal(t, http.StatusBadRequest, Registry.HTTPStatus(CodeValidationFailed))

	// Unregistered codes degrade to 500.
	assert.Equal(t, http.StatusInternalServerError, Registry.HTTPStatus("registry:bogus"))
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "Plugin not found", Registry.Message(CodePluginNotFound))
	assert.Equal(t, "registry:bogus", Registry.Message("registry:bogus"))
}

func TestNamespaceListing(t *testing.T) {
	codes := Registry.Namespace("registry")
	assert.Contains(t, codes, CodePluginNotFound)
	assert.Contains(t, codes, CodeValidationFailed)
	assert.Contains(t, codes, CodeStorageUnavailable)
	assert.NotContains(t, codes, CodeInvalidRequest)
}

func TestErrorResponseShape(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, CodePluginNotFound)
	require.Equal(t, http.StatusNotFound, w.Code)

	var payload struct {
		Error APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, CodePluginNotFound, payload.Error.Code)
	assert.Equal(t, "Plugin not found", payload.Error.Message)
}

func TestErrorWithMessageOverride(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ErrorWithMessage(c, CodeValidationFailed, "manifest: version must not be blank")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "version must not be blank")
}
