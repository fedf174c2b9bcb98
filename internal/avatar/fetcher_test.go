package avatar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("image-bytes"))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/hop":
			http.Redirect(w, r, "/ok", http.StatusFound)
		case "/hop2":
			http.Redirect(w, r, "/hop", http.StatusFound)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		data, err := f.Fetch(ctx, srv.URL+"/ok")
		require.NoError(t, err)
		assert.Equal(t, []byte("image-bytes"), data)
	})

	t.Run("bad status", func(t *testing.T) {
		_, err := f.Fetch(ctx, srv.URL+"/missing")
		assert.ErrorIs(t, err, ErrBadStatus)
	})

	t.Run("single redirect followed", func(t *testing.T) {
		data, err := f.Fetch(ctx, srv.URL+"/hop")
		require.NoError(t, err)
		assert.Equal(t, []byte("image-bytes"), data)
	})

	t.Run("second redirect refused", func(t *testing.T) {
		_, err := f.Fetch(ctx, srv.URL+"/hop2")
		assert.Error(t, err)
	})

	t.Run("non-http scheme refused", func(t *testing.T) {
		_, err := f.Fetch(ctx, "ftp://host/pic.png")
		assert.Error(t, err)
	})

	t.Run("unreachable host", func(t *testing.T) {
		_, err := f.Fetch(ctx, "http://127.0.0.1:1/pic.png")
		assert.Error(t, err)
	})
}
