package http

import (
	"bytes"
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ajitpratap0/streametl/pkg/clients"
	"github.com/ajitpratap0/streametl/pkg/config"
	"github.com/ajitpratap0/streametl/pkg/errors"
	"github.com/ajitpratap0/streametl/pkg/testutil"
	"github.com/ajitpratap0/streametl/pkg/version"
)

func serve(contentType, body string) *httptest.Server {
	return httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, body)
	}))
}

func newSource(t *testing.T, url string, settings *config.Settings) *Source {
	t.Helper()
	return New(url, clients.NewHTTPClient(context.Background(), nil, nil), settings, testutil.TestLogger(t))
}

func TestSource_CSV(t *testing.T) {
	srv := serve("text/csv; charset=utf-8", "a,b\n1,2\n")
	defer srv.Close()

	src := newSource(t, srv.URL, nil)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":"1","b":"2"}`}, testutil.Strings(got))
}

func TestSource_CSVWithConfiguredColumns(t *testing.T) {
	srv := serve("text/csv", "1,2\n")
	defer srv.Close()

	settings := config.Default()
	settings.Extract.Columns = []string{"x", "y"}
	settings.Extract.ColumnsSet = true
	src := newSource(t, srv.URL, settings)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"x":"1","y":"2"}`}, testutil.Strings(got))
}

func TestSource_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Ada"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	workbook := buf.Bytes()

	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", ContentTypeXLSX)
		_, _ = io.Copy(w, bytes.NewReader(workbook))
	}))
	defer srv.Close()

	src := newSource(t, srv.URL, nil)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"name":"Ada"}`}, testutil.Strings(got))
}

func TestSource_JSONLines(t *testing.T) {
	srv := serve(ContentTypeNDJSON, "{\"a\":1}\n{\"a\":2}\n")
	defer srv.Close()

	src := newSource(t, srv.URL, nil)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, testutil.Strings(got))
}

func TestSource_InvalidContentType(t *testing.T) {
	srv := serve("text/html", "<html></html>")
	defer srv.Close()

	src := newSource(t, srv.URL, nil)
	defer src.Close()

	_, _, err := src.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
	assert.Contains(t, err.Error(), `invalid content type "text/html"`)
}

func TestSource_StatusError(t *testing.T) {
	srv := httptest.NewServer(nethttp.NotFoundHandler())
	defer srv.Close()

	src := newSource(t, srv.URL, nil)
	defer src.Close()

	_, _, err := src.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSource))
	assert.Contains(t, err.Error(), "status code 404")
}

func TestSource_FollowsRedirect(t *testing.T) {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("/moved", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		nethttp.Redirect(w, r, "/data.csv", nethttp.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/data.csv", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", ContentTypeCSV)
		_, _ = io.WriteString(w, "a\n1\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := newSource(t, srv.URL+"/moved", nil)
	defer src.Close()

	got, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":"1"}`}, testutil.Strings(got))
}

func TestSource_RequestHeaders(t *testing.T) {
	var got nethttp.Header
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", ContentTypeCSV)
	}))
	defer srv.Close()

	settings := config.Default()
	settings.Extract.Headers = map[string]string{
		"AUTHORIZATION": "Bearer t",
		"user-agent":    "spoofed",
	}
	src := newSource(t, srv.URL, settings)
	defer src.Close()

	_, err := testutil.Drain(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "Bearer t", got.Get("Authorization"))
	assert.Equal(t, "etl/"+version.Version, got.Get("User-Agent"))
	assert.Equal(t, Accept, got.Get("Accept"))
}

func TestSource_NothingFetchedBeforeNext(t *testing.T) {
	var hits int
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		hits++
	}))
	defer srv.Close()

	src := newSource(t, srv.URL, nil)
	require.NoError(t, src.Close())
	v, ok, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Zero(t, hits)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "text/csv", mediaType("Text/CSV; charset=utf-8"))
	assert.Equal(t, "text/csv", mediaType("text/csv;;bad"))
	assert.Equal(t, "", mediaType(""))
}
