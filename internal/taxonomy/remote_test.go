package taxonomy

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
)

const testServiceURL = "https://taxonomy.example.org"

func newMockedClient(t *testing.T) *RemoteClient {
	t.Helper()
	client, err := NewRemoteClient(RemoteConfig{BaseURL: testServiceURL + "/"}, logger.NewTestLogger())
	require.NoError(t, err)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return client
}

func TestRemoteClient_Ancestor(t *testing.T) {
	client := newMockedClient(t)

	httpmock.RegisterResponder(http.MethodGet, testServiceURL+ancestorPath,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, []string{"stoat", "mustelid"}, req.URL.Query()["tags"])
			return httpmock.NewJsonResponse(http.StatusOK, map[string]string{"ancestor": "mustelid"})
		})

	got, err := client.Ancestor(context.Background(), []string{"stoat", "mustelid"})
	require.NoError(t, err)
	assert.Equal(t, "mustelid", got)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRemoteClient_AncestorErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		check     func(t *testing.T, err error)
	}{
		{
			name:      "non-OK status",
			responder: httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"),
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, errors.IsCategory(err, errors.CategoryHTTP))
				assert.Contains(t, err.Error(), "non-OK response")
			},
		},
		{
			name:      "malformed body",
			responder: httpmock.NewStringResponder(http.StatusOK, "{not json"),
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, errors.IsCategory(err, errors.CategoryFileParsing))
			},
		},
		{
			name:      "empty ancestor",
			responder: httpmock.NewStringResponder(http.StatusOK, `{"ancestor":""}`),
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.ErrorIs(t, err, ErrNoCommonAncestor)
			},
		},
		{
			name:      "transport failure",
			responder: httpmock.NewErrorResponder(errors.NewStd("connection reset")),
			check: func(t *testing.T, err error) {
				t.Helper()
				assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newMockedClient(t)
			httpmock.RegisterResponder(http.MethodGet, testServiceURL+ancestorPath, tt.responder)

			_, err := client.Ancestor(context.Background(), []string{"possum", "rat"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestRemoteClient_CommonAncestorSwallowsErrors(t *testing.T) {
	log := logger.NewTestLogger()
	client, err := NewRemoteClient(RemoteConfig{BaseURL: testServiceURL}, log)
	require.NoError(t, err)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	httpmock.RegisterResponder(http.MethodGet, testServiceURL+ancestorPath,
		httpmock.NewStringResponder(http.StatusInternalServerError, ""))

	assert.Empty(t, client.CommonAncestor([]string{"possum", "rat"}))
	assert.Contains(t, log.Output(), "common ancestor lookup failed")

	assert.Empty(t, client.CommonAncestor(nil))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRemoteClient_CommonAncestorContextCanceled(t *testing.T) {
	client := newMockedClient(t)
	httpmock.RegisterResponder(http.MethodGet, testServiceURL+ancestorPath,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]string{"ancestor": "mustelid"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Empty(t, client.CommonAncestorContext(ctx, []string{"stoat", "ferret"}))
	assert.Zero(t, httpmock.GetTotalCallCount())

	assert.Equal(t, "mustelid", client.CommonAncestorContext(context.Background(), []string{"stoat", "ferret"}))
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestNewRemoteClient_RequiresURL(t *testing.T) {
	_, err := NewRemoteClient(RemoteConfig{}, logger.NewTestLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
