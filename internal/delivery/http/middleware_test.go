package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		want           bool
	}{
		{
			name:           "exact match",
			origin:         "http://localhost:3000",
			allowedOrigins: []string{"http://localhost:3000"},
			want:           true,
		},
		{
			name:           "port wildcard match",
			origin:         "http://localhost:5173",
			allowedOrigins: []string{"http://localhost:*"},
			want:           true,
		},
		{
			name:           "multiple allowed origins - matches second",
			origin:         "https://list.oakley.example",
			allowedOrigins: []string{"http://localhost:*", "https://list.oakley.example"},
			want:           true,
		},
		{
			name:           "no match",
			origin:         "http://evil.com",
			allowedOrigins: []string{"http://localhost:*"},
			want:           false,
		},
		{
			name:           "wildcard does not match other host",
			origin:         "http://localhost.evil.com",
			allowedOrigins: []string{"http://localhost:*"},
			want:           false,
		},
		{
			name:           "empty origin",
			origin:         "",
			allowedOrigins: []string{"*"},
			want:           false,
		},
		{
			name:           "empty allowed list",
			origin:         "http://localhost:3000",
			allowedOrigins: []string{},
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isAllowedOrigin(tt.origin, tt.allowedOrigins)
			if got != tt.want {
				t.Errorf("isAllowedOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name            string
		origin          string
		allowedOrigins  []string
		wantCORSHeaders bool
	}{
		{
			name:            "allowed origin gets headers",
			origin:          "http://localhost:3000",
			allowedOrigins:  []string{"http://localhost:*"},
			wantCORSHeaders: true,
		},
		{
			name:            "disallowed origin gets no headers",
			origin:          "http://evil.com",
			allowedOrigins:  []string{"http://localhost:*"},
			wantCORSHeaders: false,
		},
		{
			name:            "no origin header",
			origin:          "",
			allowedOrigins:  []string{"http://localhost:*"},
			wantCORSHeaders: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(CORSMiddleware(tt.allowedOrigins))
			router.GET("/test", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"ok": true})
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}

			got := w.Header().Get("Access-Control-Allow-Origin")
			if tt.wantCORSHeaders {
				if got != tt.origin {
					t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.origin)
				}
				if w.Header().Get("Access-Control-Allow-Methods") == "" {
					t.Error("expected Access-Control-Allow-Methods header")
				}
				if !strings.Contains(w.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID") {
					t.Error("expected X-Request-ID in Access-Control-Allow-Headers")
				}
			} else if got != "" {
				t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
			}
		})
	}
}

func TestCORSMiddleware_PreflightRequest(t *testing.T) {
	router := gin.New()
	router.Use(CORSMiddleware([]string{"http://localhost:*"}))
	router.POST("/api/v1/resolve", func(c *gin.Context) {
		t.Error("handler should not run for preflight")
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/resolve", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "propagates caller id", incoming: "req-123"},
		{name: "generates id", incoming: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			router := gin.New()
			router.Use(RequestIDMiddleware())
			router.GET("/test", func(c *gin.Context) {
				seen = c.GetString(requestIDKey)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.incoming != "" {
				req.Header.Set(requestIDHeader, tt.incoming)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			header := w.Header().Get(requestIDHeader)
			if header == "" {
				t.Fatal("expected X-Request-ID response header")
			}
			if header != seen {
				t.Errorf("header %q != context value %q", header, seen)
			}
			if tt.incoming != "" && header != tt.incoming {
				t.Errorf("X-Request-ID = %q, want %q", header, tt.incoming)
			}
			if tt.incoming == "" && len(header) != 36 {
				t.Errorf("generated id %q is not a UUID", header)
			}
		})
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{name: "success logs info", status: http.StatusOK, wantLevel: "info"},
		{name: "client error logs warn", status: http.StatusNotFound, wantLevel: "warn"},
		{name: "server error logs error", status: http.StatusBadGateway, wantLevel: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			router := gin.New()
			router.Use(RequestIDMiddleware())
			router.Use(LoggerMiddleware(zerolog.New(&buf)))
			router.GET("/test", func(c *gin.Context) {
				c.Status(tt.status)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(requestIDHeader, "log-test")
			router.ServeHTTP(httptest.NewRecorder(), req)

			var line map[string]interface{}
			if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
				t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
			}
			if line["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", line["level"], tt.wantLevel)
			}
			if line["path"] != "/test" {
				t.Errorf("path = %v, want /test", line["path"])
			}
			if line["status"] != float64(tt.status) {
				t.Errorf("status = %v, want %d", line["status"], tt.status)
			}
			if line["request_id"] != "log-test" {
				t.Errorf("request_id = %v, want log-test", line["request_id"])
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	var buf bytes.Buffer
	router := gin.New()
	router.Use(RecoveryMiddleware(zerolog.New(&buf)))
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Errorf("error = %q", body["error"])
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("panic value not logged: %s", buf.String())
	}
}
