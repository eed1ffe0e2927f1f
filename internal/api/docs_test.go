package api

import (
	"encoding/json"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/freewebtopdf/source-patcher/docs"
)

func TestRouter_SwaggerDocs(t *testing.T) {
	f := newFixture(t)

	resp, err := f.app.Test(httptest.NewRequest("GET", "/swagger/doc.json", nil), 5000)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var doc struct {
		Swagger string `json:"swagger"`
		Info    struct {
			Title string `json:"title"`
		} `json:"info"`
		BasePath string                    `json:"basePath"`
		Paths    map[string]map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Equal(t, "Source Patcher API", doc.Info.Title)
	assert.Equal(t, "/", doc.BasePath)

	// every documented operation is a route, and every API route is documented
	var documented []string
	for p, ops := range doc.Paths {
		route := strings.Replace(p, "{name}", "*", 1)
		for method := range ops {
			documented = append(documented, strings.ToUpper(method)+" "+route)
		}
	}
	var routed []string
	for _, r := range f.app.GetRoutes(true) {
		if r.Method == fiber.MethodHead || strings.HasPrefix(r.Path, "/swagger") {
			continue
		}
		routed = append(routed, r.Method+" "+r.Path)
	}
	sort.Strings(documented)
	sort.Strings(routed)
	assert.Equal(t, routed, documented)
}

func TestRouter_SwaggerIndex(t *testing.T) {
	f := newFixture(t)

	resp, err := f.app.Test(httptest.NewRequest("GET", "/swagger/index.html", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentSecurityPolicy), "script-src 'self'")
}
