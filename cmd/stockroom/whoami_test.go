package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runWhoami(t *testing.T, url, token string) whoamiReport {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"whoami", "--url", url, "--token", token})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var rep whoamiReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &rep), out.String())
	return rep
}

func TestWhoami(t *testing.T) {
	t.Setenv("STOCKROOM_TOKEN", "")
	app := setupApp(t)
	p := app.createProduct(t, "u1", "rivet")
	srv := httptest.NewServer(app.handler)
	defer srv.Close()

	rep := runWhoami(t, srv.URL, "u1")
	require.NotNil(t, rep.Subject)
	assert.Equal(t, "user-1", rep.Subject.ID)
	assert.False(t, rep.IsAdmin)
	require.Len(t, rep.Products, 1, "the catalog row is not listed for users")
	assert.Equal(t, p.ID, rep.Products[0].ID)
	assert.True(t, rep.Products[0].CanDelete)
	assert.True(t, rep.Products[0].IsOwner)

	rep = runWhoami(t, srv.URL, "admin")
	assert.True(t, rep.IsAdmin)
	require.Len(t, rep.Products, 2)
	for _, d := range rep.Products {
		assert.True(t, d.CanEdit, d.ID)
		assert.False(t, d.IsOwner, d.ID)
	}

	rep = runWhoami(t, srv.URL, "")
	assert.Nil(t, rep.Subject)
	assert.Empty(t, rep.Products)
}
