package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiratogitlab/api"
	"jiratogitlab/config"
	"jiratogitlab/models"
)

func testCleanupConfig(url string) *config.Config {
	return &config.Config{
		GitLabURL:       url,
		GitLabToken:     "glpat",
		GitLabProjectID: 42,
		AssumeYes:       true,
	}
}

// 既存イシューとマイルストーンが全件削除されることを確認します
func TestCleanupRun(t *testing.T) {
	var deletedIssues []string
	var deletedMilestones []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/api/v4/projects/42":
			fmt.Fprint(w, `{"id":42,"name":"dest"}`)
		case r.Method == "GET" && r.URL.Path == "/api/v4/projects/42/issues":
			if r.URL.Query().Get("page") != "1" {
				fmt.Fprint(w, `[]`)
				return
			}
			issues := make([]string, 0, 5)
			for i := 1; i <= 5; i++ {
				issues = append(issues, fmt.Sprintf(`{"id":%d,"iid":%d,"project_id":42,"title":"t"}`, i, i))
			}
			fmt.Fprintf(w, `[%s]`, strings.Join(issues, ","))
		case r.Method == "DELETE" && strings.HasPrefix(r.URL.Path, "/api/v4/projects/42/issues/"):
			deletedIssues = append(deletedIssues, strings.TrimPrefix(r.URL.Path, "/api/v4/projects/42/issues/"))
			w.WriteHeader(http.StatusNoContent)
		case r.Method == "GET" && r.URL.Path == "/api/v4/projects/42/milestones":
			fmt.Fprint(w, `[{"id":7,"title":"Sprint 1"},{"id":8,"title":"Sprint 2"}]`)
		case r.Method == "DELETE" && strings.HasPrefix(r.URL.Path, "/api/v4/projects/42/milestones/"):
			deletedMilestones = append(deletedMilestones, strings.TrimPrefix(r.URL.Path, "/api/v4/projects/42/milestones/"))
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testCleanupConfig(server.URL)
	service := NewCleanupService(cfg, api.NewGitLabClient(cfg))
	require.NoError(t, service.Run())

	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, deletedIssues)
	assert.Equal(t, []string{"7", "8"}, deletedMilestones)
}

// イシューが1件もない場合は削除せずに終了することを確認します
func TestCleanupRunNoIssues(t *testing.T) {
	var deleteRequested bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/api/v4/projects/42":
			fmt.Fprint(w, `{"id":42,"name":"dest"}`)
		case r.Method == "GET" && r.URL.Path == "/api/v4/projects/42/issues":
			fmt.Fprint(w, `[]`)
		case r.Method == "DELETE":
			deleteRequested = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testCleanupConfig(server.URL)
	service := NewCleanupService(cfg, api.NewGitLabClient(cfg))
	require.NoError(t, service.Run())
	assert.False(t, deleteRequested)
}

// 削除失敗時はその場で中断してエラーが返ることを確認します
func TestCleanupRunDeleteFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "GET" && r.URL.Path == "/api/v4/projects/42":
			fmt.Fprint(w, `{"id":42,"name":"dest"}`)
		case r.Method == "GET" && r.URL.Path == "/api/v4/projects/42/issues":
			if r.URL.Query().Get("page") == "1" {
				fmt.Fprint(w, `[{"id":1,"iid":1,"project_id":42,"title":"t"}]`)
			} else {
				fmt.Fprint(w, `[]`)
			}
		case r.Method == "DELETE":
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"403 Forbidden"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	cfg := testCleanupConfig(server.URL)
	service := NewCleanupService(cfg, api.NewGitLabClient(cfg))
	assert.ErrorIs(t, service.Run(), models.ErrDestinationRejected)
}
