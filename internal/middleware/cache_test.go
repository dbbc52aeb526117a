package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestWithResponseMetaStampsProcessingTime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	router := gin.New()
	router.Use(WithResponseMeta())

	var meta map[string]interface{}
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	router.ServeHTTP(recorder, req)

	if meta == nil {
		t.Fatal("expected meta map to be seeded")
	}
	if hit, ok := meta["cache_hit"].(bool); !ok || !hit {
		t.Fatalf("unexpected cache_hit value: %v", meta["cache_hit"])
	}
	if _, ok := meta["processing_time_ms"]; !ok {
		t.Fatal("expected processing time to be stamped")
	}
}

func TestSetCacheHitWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	if meta := ExtractMeta(c); meta != nil {
		t.Fatalf("expected no meta before first write, got %v", meta)
	}
	SetCacheHit(c, false)
	meta := ExtractMeta(c)
	if meta == nil {
		t.Fatal("expected meta map after write")
	}
	if hit, ok := meta["cache_hit"].(bool); !ok || hit {
		t.Fatalf("unexpected cache_hit value: %v", meta["cache_hit"])
	}
}
