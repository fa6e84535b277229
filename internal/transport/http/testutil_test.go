package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"async-quiz-service/internal/app"
	"async-quiz-service/internal/infra/memory"
	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret"

type testEnv struct {
	server *httptest.Server
	auth   *Authenticator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	membership := memory.NewMembership()
	membership.Add("g1", "u1")
	membership.Add("g1", "u2")
	docs := memory.NewDocumentStore(0)
	service := app.NewQuizService(app.Deps{
		Documents:  docs,
		Index:      memory.NewQuizIndex(),
		Archive:    memory.NewAttemptArchive(),
		Views:      memory.NewLeaderboardStore(),
		Details:    memory.NewDetailCache(app.NewDetailLoader(docs), time.Minute),
		Membership: membership,
		Profiles:   app.NewNameChain(nil, memory.StaticNames{"u1": "Alice", "u2": "Bob"}),
	})
	auth := NewAuthenticator(testSecret)
	server := httptest.NewServer(NewRouter(service, auth, nil))
	t.Cleanup(server.Close)
	return &testEnv{server: server, auth: auth}
}

func (e *testEnv) token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := e.auth.Issue(uid, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

// do sends a JSON request as uid (anonymous when empty) and decodes the envelope.
func (e *testEnv) do(t *testing.T, method, path, uid string, body interface{}) (int, Body) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, uid))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out Body
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func sampleQuestions() []map[string]interface{} {
	return []map[string]interface{}{
		{"question": "2 + 2?", "options": []string{"3", "4", "5", "6"}, "correctIndex": 1},
		{"question": "Capital of France?", "options": []string{"Paris", "Rome", "Madrid", "Berlin"}, "correctIndex": 0},
	}
}

func createGroupQuiz(t *testing.T, e *testEnv) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/v1/quizzes", "u1", map[string]interface{}{
		"groupRef":  "g1",
		"noteRef":   "n1",
		"questions": sampleQuestions(),
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d, body = %+v", status, body)
	}
	data := body.Data.(map[string]interface{})
	return data["quizId"].(string)
}
