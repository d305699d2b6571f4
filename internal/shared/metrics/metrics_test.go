package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(200))
	assert.Equal(t, "4xx", statusClass(404))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "1xx", statusClass(101))
}

func TestMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/payment/check/:payment_id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/payment/check/:payment_id", "4xx"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/payment/check/pp_x", nil))
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/payment/check/:payment_id", "4xx"))

	assert.Equal(t, before+1, after)
}
