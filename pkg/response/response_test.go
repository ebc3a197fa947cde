package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h, func(c *gin.Context) { Success(c, "unreachable") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestPaged(t *testing.T) {
	status, body := serve(t, func(c *gin.Context) {
		Paged(c, []int{1, 2}, 7, 2, 2)
		c.Abort()
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(CodeSuccess), body["code"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(7), data["total"])
	assert.Equal(t, float64(2), data["page_size"])
}

func TestUnauthorizedAborts(t *testing.T) {
	status, body := serve(t, func(c *gin.Context) { Unauthorized(c, "no") })
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(CodeUnauthorized), body["code"])
	assert.NotContains(t, body, "data")
}
