package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// fakeToken implements Token
type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

// fakeVerifier implements Verifier
type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == "goodtoken" {
		return &fakeToken{data: map[string]interface{}{"sub": "editor-1", "email": "editor@example.com"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func serveAuth(t *testing.T, header string) *httptest.ResponseRecorder {
	t.Helper()
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sub": Subject(c)})
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serveAuth(t, "").Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	for _, h := range []string{"BadHeader", "Basic abc", "Bearer ", "Bearer"} {
		require.Equal(t, http.StatusUnauthorized, serveAuth(t, h).Code, h)
	}
}

func TestAuthMiddleware_RejectsUnknownToken(t *testing.T) {
	rw := serveAuth(t, "Bearer other")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Contains(t, rw.Body.String(), "invalid token")
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	rw := serveAuth(t, "bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, "editor-1", got["sub"])
}

type hmacLikeVerifier struct{}

func (hmacLikeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	if raw == "apitoken" {
		return &fakeToken{data: map[string]interface{}{"sub": "publishctl"}}, nil
	}
	return nil, fmt.Errorf("signature mismatch")
}

func TestAnyVerifier(t *testing.T) {
	chain := AnyVerifier{&fakeVerifier{}, hmacLikeVerifier{}}

	_, err := chain.Verify(context.Background(), "goodtoken")
	require.NoError(t, err)
	_, err = chain.Verify(context.Background(), "apitoken")
	require.NoError(t, err)
	_, err = chain.Verify(context.Background(), "nope")
	require.EqualError(t, err, "signature mismatch")

	_, err = AnyVerifier{}.Verify(context.Background(), "goodtoken")
	require.Error(t, err)
}
