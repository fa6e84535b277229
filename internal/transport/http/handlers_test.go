package http

import (
	"net/http"
	"testing"
)

func TestHealthz(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	e := newTestEnv(t)
	status, body := e.do(t, http.MethodGet, "/api/v1/notes/n1/quizzes", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if body.Code != "unauthenticated" {
		t.Fatalf("expected unauthenticated code, got %q", body.Code)
	}
}

func TestRejectsForgedToken(t *testing.T) {
	e := newTestEnv(t)
	forged, err := NewAuthenticator("other-secret").Issue("u1", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := e.auth.Principal(forged); err == nil {
		t.Fatalf("expected forged token to be rejected")
	}
}

func TestGroupQuizFlow(t *testing.T) {
	e := newTestEnv(t)
	quizID := createGroupQuiz(t, e)

	status, body := e.do(t, http.MethodGet, "/api/v1/notes/n1/quizzes?groupRef=g1", "u2", nil)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	items := body.Data.(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("expected 1 quiz, got %d", len(items))
	}

	status, body = e.do(t, http.MethodPost, "/api/v1/quizzes/"+quizID+"/start?groupRef=g1", "u2", map[string]string{})
	if status != http.StatusOK {
		t.Fatalf("start status = %d, body = %+v", status, body)
	}
	if idx := body.Data.(map[string]interface{})["currentIndex"].(float64); idx != 0 {
		t.Fatalf("expected index 0, got %v", idx)
	}

	for _, option := range []int{1, 0} {
		status, body = e.do(t, http.MethodPost, "/api/v1/quizzes/"+quizID+"/answers?groupRef=g1", "u2", map[string]int{"optionIdx": option})
		if status != http.StatusOK {
			t.Fatalf("answer status = %d, body = %+v", status, body)
		}
	}
	result := body.Data.(map[string]interface{})
	if result["finishedNow"] != true || result["score"].(float64) != 2 {
		t.Fatalf("expected finished with score 2, got %+v", result)
	}

	status, body = e.do(t, http.MethodGet, "/api/v1/quizzes/"+quizID+"/leaderboard?groupRef=g1", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("leaderboard status = %d", status)
	}
	entries := body.Data.(map[string]interface{})["items"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("expected 1 leaderboard entry, got %d", len(entries))
	}
	first := entries[0].(map[string]interface{})
	if first["uid"] != "u2" || first["name"] != "Bob" {
		t.Fatalf("unexpected entry %+v", first)
	}

	status, body = e.do(t, http.MethodGet, "/api/v1/quizzes/"+quizID+"/attempt?groupRef=g1", "u2", nil)
	if status != http.StatusOK {
		t.Fatalf("attempt status = %d", status)
	}
	attempt := body.Data.(map[string]interface{})["attempt"].(map[string]interface{})
	if attempt["finished"] != true {
		t.Fatalf("expected finished attempt, got %+v", attempt)
	}

	status, body = e.do(t, http.MethodGet, "/api/v1/quizzes/"+quizID+"/attempt?groupRef=g1", "u1", nil)
	if status != http.StatusOK {
		t.Fatalf("attempt status = %d", status)
	}
	if body.Data.(map[string]interface{})["attempt"] != nil {
		t.Fatalf("expected null attempt for a participant who never joined")
	}

	status, body = e.do(t, http.MethodGet, "/api/v1/notes/n1/attempts?groupRef=g1", "u2", nil)
	if status != http.StatusOK {
		t.Fatalf("attempts status = %d", status)
	}
	if got := len(body.Data.(map[string]interface{})["attempts"].([]interface{})); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestNonMemberIsForbidden(t *testing.T) {
	e := newTestEnv(t)
	quizID := createGroupQuiz(t, e)

	status, body := e.do(t, http.MethodGet, "/api/v1/quizzes/"+quizID+"?groupRef=g1", "outsider", nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d (%+v)", status, body)
	}
}

func TestGroupQuizOutsideGroupScopeIsInvalid(t *testing.T) {
	e := newTestEnv(t)
	quizID := createGroupQuiz(t, e)

	status, _ := e.do(t, http.MethodGet, "/api/v1/quizzes/"+quizID, "u1", nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestUnknownQuizIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	status, _ := e.do(t, http.MethodGet, "/api/v1/quizzes/missing?groupRef=g1", "u1", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}
}

func TestCreateRejectsInvalidQuestions(t *testing.T) {
	e := newTestEnv(t)
	questions := sampleQuestions()
	questions[1]["options"] = []string{"a", "b"}
	status, body := e.do(t, http.MethodPost, "/api/v1/quizzes", "u1", map[string]interface{}{
		"noteRef":   "n1",
		"questions": questions,
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%+v)", status, body)
	}
}

func TestAnswerRequiresOption(t *testing.T) {
	e := newTestEnv(t)
	quizID := createGroupQuiz(t, e)
	status, _ := e.do(t, http.MethodPost, "/api/v1/quizzes/"+quizID+"/answers?groupRef=g1", "u1", map[string]string{})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func TestPersonalQuizIsCreatorOnly(t *testing.T) {
	e := newTestEnv(t)
	status, body := e.do(t, http.MethodPost, "/api/v1/quizzes", "u1", map[string]interface{}{
		"noteRef":   "n1",
		"questions": sampleQuestions(),
	})
	if status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	data := body.Data.(map[string]interface{})
	if data["type"] != "personal_async" {
		t.Fatalf("expected personal quiz, got %v", data["type"])
	}
	quizID := data["quizId"].(string)

	if status, _ := e.do(t, http.MethodGet, "/api/v1/quizzes/"+quizID, "u1", nil); status != http.StatusOK {
		t.Fatalf("creator read status = %d", status)
	}
	if status, _ := e.do(t, http.MethodGet, "/api/v1/quizzes/"+quizID, "u2", nil); status != http.StatusForbidden {
		t.Fatalf("expected 403 for another user, got %d", status)
	}
}
