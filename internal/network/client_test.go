package network

import (
	"compress/gzip"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *ClientConfig {
	cfg := NewDefaultClientConfig()
	cfg.Logger = zaptest.NewLogger(t)
	return cfg
}

func TestNewDefaultClientConfig(t *testing.T) {
	cfg := NewDefaultClientConfig()
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.True(t, cfg.ForceHTTP2)
	require.NotNil(t, cfg.Dialer)
	assert.True(t, cfg.Dialer.NoDelay)
	assert.NotNil(t, cfg.Logger)
}

func TestConfigureTLS(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := testConfig(t)
		tlsConfig := configureTLS(cfg)
		assert.False(t, tlsConfig.InsecureSkipVerify)
		assert.NotNil(t, tlsConfig.ClientSessionCache)
	})

	t.Run("ignore errors clones the custom config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.TLSConfig = &tls.Config{ServerName: "library.test"}
		cfg.IgnoreTLSErrors = true
		tlsConfig := configureTLS(cfg)
		assert.True(t, tlsConfig.InsecureSkipVerify)
		assert.Equal(t, "library.test", tlsConfig.ServerName)
		assert.False(t, cfg.TLSConfig.InsecureSkipVerify, "the provided config must not be modified")
	})
}

func compressed(t *testing.T, encoding, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), encoding)
		w.Header().Set("Content-Encoding", encoding)
		var zw io.WriteCloser
		switch encoding {
		case "br":
			zw = brotli.NewWriter(w)
		case "gzip":
			zw = gzip.NewWriter(w)
		}
		_, _ = io.WriteString(zw, body)
		_ = zw.Close()
	}
}

func TestClientDecodesResponses(t *testing.T) {
	for _, encoding := range []string{"br", "gzip"} {
		t.Run(encoding, func(t *testing.T) {
			srv := httptest.NewServer(compressed(t, encoding, `{"mensagem":"ok"}`))
			defer srv.Close()

			client := NewClient(testConfig(t))
			resp, err := client.Get(srv.URL)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, `{"mensagem":"ok"}`, string(body))
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
			assert.True(t, resp.Uncompressed)
		})
	}
}

func TestDecompressResponseRejectsUnknownEncoding(t *testing.T) {
	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"zstd"}},
		Body:   io.NopCloser(http.NoBody),
	}
	assert.ErrorContains(t, DecompressResponse(resp), "unsupported Content-Encoding")
}

func TestClientDoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login.html", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := NewClient(testConfig(t)).Get(srv.URL + "/livros")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login.html", resp.Header.Get("Location"))
}

func TestClientOverTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "[]")
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.IgnoreTLSErrors = true
	cfg.ForceHTTP2 = false
	resp, err := NewClient(cfg).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
