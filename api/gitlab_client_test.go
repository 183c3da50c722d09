package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jiratogitlab/config"
	"jiratogitlab/models"
)

func testGitLabConfig(url string) *config.Config {
	return &config.Config{
		GitLabURL:       url,
		GitLabToken:     "glpat",
		GitLabProjectID: 42,
	}
}

// アクセストークンヘッダーが付くことを確認します
func TestGitLabCheckAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/user", r.URL.Path)
		assert.Equal(t, "glpat", r.Header.Get("PRIVATE-TOKEN"))
		fmt.Fprint(w, `{"id":1,"username":"root"}`)
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))
	assert.NoError(t, client.CheckAuth())
}

// 認証失敗が宛先側の致命的エラーとして返ることを確認します
func TestGitLabCheckAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))
	assert.ErrorIs(t, client.CheckAuth(), models.ErrDestinationRejected)
}

// タイトル指定のマイルストーン検索とマイルストーン作成を確認します
func TestGitLabMilestones(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			assert.Equal(t, "/api/v4/projects/42/milestones", r.URL.Path)
			assert.Equal(t, "Sprint 1", r.URL.Query().Get("title"))
			fmt.Fprint(w, `[{"id":7,"title":"Sprint 1"}]`)
		case "POST":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "Sprint 2", payload["title"])
			assert.Equal(t, "2024-01-01", payload["start_date"])
			assert.Equal(t, "2024-01-14", payload["due_date"])
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":8,"title":"Sprint 2"}`)
		}
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))

	existing, err := client.ListMilestones("Sprint 1")
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, 7, existing[0].ID)

	created, err := client.CreateMilestone("Sprint 2", "2024-01-01", "2024-01-14")
	require.NoError(t, err)
	assert.Equal(t, 8, created.ID)
}

// イシュー作成とSUDOヘッダーによる偽装を確認します
func TestGitLabCreateIssueWithSudo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/42/issues", r.URL.Path)
		assert.Equal(t, "taro", r.Header.Get("SUDO"))

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "Title", payload["title"])
		assert.Equal(t, float64(7), payload["milestone_id"])
		// ゼロ値のフィールドはペイロードに含めない
		assert.NotContains(t, payload, "assignee_id")
		assert.NotContains(t, payload, "due_date")

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":101,"iid":1,"project_id":42,"title":"Title"}`)
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))
	created, err := client.CreateIssue(models.GitLabIssue{
		Title:       "Title",
		Description: "body",
		MilestoneID: 7,
		IssueType:   "issue",
	}, "taro")
	require.NoError(t, err)
	assert.Equal(t, 1, created.IID)
}

// バリデーションエラーが宛先側の致命的エラーとして返ることを確認します
func TestGitLabCreateIssueRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"message":"Title is too long"}`)
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))
	_, err := client.CreateIssue(models.GitLabIssue{Title: "Title"}, "")
	assert.ErrorIs(t, err, models.ErrDestinationRejected)
}

// アップロード時にファイル名がUUIDに置き換わる（拡張子は保持）ことを確認します
func TestGitLabUploadFileRandomizesName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/42/uploads", r.URL.Path)

		reader, err := r.MultipartReader()
		require.NoError(t, err)

		part, err := reader.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "file", part.FormName())
		assert.NotEqual(t, "screen.PNG", part.FileName())
		assert.True(t, strings.HasSuffix(part.FileName(), ".png"))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"url":"/uploads/abc/file.png"}`)
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))
	url, err := client.UploadFile("screen.PNG", []byte("PNGDATA"), "")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/abc/file.png", url)
}

// ノート作成とイシュー削除を確認します
func TestGitLabNoteAndDelete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == "POST" && r.URL.Path == "/api/v4/projects/42/issues/5/notes":
			var payload map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "a note", payload["body"])
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":201}`)
		case r.Method == "DELETE" && r.URL.Path == "/api/v4/projects/42/issues/5":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))

	noteID, err := client.CreateNote(5, "a note", "")
	require.NoError(t, err)
	assert.Equal(t, 201, noteID)

	assert.NoError(t, client.DeleteIssue(5))
}

// 削除権限がない場合のエラー変換を確認します
func TestGitLabDeleteIssueForbidden(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"message":"403 Forbidden"}`)
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))
	assert.ErrorIs(t, client.DeleteIssue(5), models.ErrDestinationRejected)
}

// イシュー一覧のページング取得を確認します
func TestGitLabListIssuesPagination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "1" {
			// 1ページ目は満杯（次ページあり）
			issues := make([]string, 0, 100)
			for i := 1; i <= 100; i++ {
				issues = append(issues, fmt.Sprintf(`{"id":%d,"iid":%d,"project_id":42,"title":"t"}`, i, i))
			}
			fmt.Fprintf(w, `[%s]`, strings.Join(issues, ","))
		} else {
			fmt.Fprint(w, `[{"id":101,"iid":101,"project_id":42,"title":"t"}]`)
		}
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))
	issues, err := client.ListIssues()
	require.NoError(t, err)
	assert.Len(t, issues, 101)
}

// イシューリンク作成のペイロードを確認します
func TestGitLabCreateIssueLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/42/issues/1/links", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, float64(42), payload["target_project_id"])
		assert.Equal(t, float64(2), payload["target_issue_iid"])
		assert.Equal(t, "relates_to", payload["link_type"])

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	client := NewGitLabClient(testGitLabConfig(server.URL))
	assert.NoError(t, client.CreateIssueLink(1, 2, "relates_to"))
}
