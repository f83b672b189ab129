package matcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tas-project/tas-api/internal/dto"
	"github.com/tas-project/tas-api/pkg/config"
)

func newTestClient(srvURL string) *Client {
	return NewClient(config.MatcherConfig{BaseURL: srvURL, Token: "secret-token"}, nil)
}

func TestMatch_SendsBatchAndDecodesTrace(t *testing.T) {
	var got dto.MatchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/match/", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		score := 0.91
		coverage := 50.0
		_ = json.NewEncoder(w).Encode(dto.MatchResponse{
			Matched:     []string{"MATH201"},
			CoveragePct: &coverage,
			Trace: []dto.MatchTrace{
				{Src: "analyse numerique", Target: "MATH201", Method: "fuzzy", Score: &score, TargetTitle: "Analyse Numérique"},
				{Src: "histoire ancienne", Target: "", Method: "none"},
			},
		})
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Match(context.Background(),
		[]string{"analyse numerique", "histoire ancienne"},
		[]dto.MatchTarget{{Code: "MATH201", TitleFR: "Analyse Numérique"}},
	)

	require.NoError(t, err)
	assert.Equal(t, []string{"analyse numerique", "histoire ancienne"}, got.Subjects)
	require.Len(t, got.Targets, 1)
	assert.Equal(t, "MATH201", got.Targets[0].Code)
	require.Len(t, resp.Trace, 2)
	assert.Equal(t, "MATH201", resp.Trace[0].Target)
	require.NotNil(t, resp.Trace[0].Score)
	assert.Equal(t, 0.91, *resp.Trace[0].Score)
	assert.Empty(t, resp.Trace[1].Target)
}

func TestMatch_EmptyBatchSkipsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty batch")
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Match(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Empty(t, resp.Trace)
}

func TestMatch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "catalog rebuild in progress", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Match(context.Background(), []string{"analyse"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "catalog rebuild in progress")
}

func TestListAliases_BuildsQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/aliases/", r.URL.Path)
		assert.Equal(t, "fr", r.URL.Query().Get("language"))
		assert.Equal(t, "MATH201", r.URL.Query().Get("target_code"))
		assert.Equal(t, "analyse", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode([]dto.SubjectAlias{
			{ID: "al-1", Target: "MATH201", Label: "Analyse", Language: "fr"},
		})
	}))
	defer srv.Close()

	aliases, err := newTestClient(srv.URL).ListAliases(context.Background(), "fr", "MATH201", "analyse")

	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, "al-1", aliases[0].ID)
}

func TestCreateAlias_PostsPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/aliases/", r.URL.Path)
		var in dto.SubjectAlias
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = "al-9"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	created, err := newTestClient(srv.URL).CreateAlias(context.Background(),
		dto.SubjectAlias{Target: "MATH201", Label: "Analyse Num.", Language: "fr"})

	require.NoError(t, err)
	assert.Equal(t, "al-9", created.ID)
	assert.Equal(t, "MATH201", created.Target)
}

func TestDeleteTarget_EscapesID(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).DeleteTarget(context.Background(), "t/1")

	require.NoError(t, err)
	assert.Equal(t, "/targets/t%2F1/", gotPath)
}
