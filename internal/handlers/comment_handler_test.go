package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campfire/backend/internal/models"
	"github.com/campfire/backend/internal/ratelimit"
	"github.com/campfire/backend/internal/repository"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockCommentRepo struct {
	comments map[uuid.UUID]*repository.CommentWithOwner
}

func newMockCommentRepo() *mockCommentRepo {
	return &mockCommentRepo{comments: make(map[uuid.UUID]*repository.CommentWithOwner)}
}

func (m *mockCommentRepo) Create(_ context.Context, c *models.Comment) error {
	m.comments[c.ID] = &repository.CommentWithOwner{Comment: *c}
	return nil
}

func (m *mockCommentRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.CommentWithOwner, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCommentRepo) ListByPost(_ context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	out := []*models.Comment{}
	for _, c := range m.comments {
		if c.Comment.PostID == postID {
			cc := c.Comment
			out = append(out, &cc)
		}
	}
	return out, nil
}

func (m *mockCommentRepo) UpdateBody(_ context.Context, id uuid.UUID, body string) (time.Time, error) {
	m.comments[id].Comment.Body = body
	m.comments[id].Comment.UpdatedAt = time.Now()
	return m.comments[id].Comment.UpdatedAt, nil
}

func (m *mockCommentRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.comments, id)
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func testCommentHandler(comments *mockCommentRepo, posts *mockPostRepo, sym *models.Symbient, limiter ratelimit.Limiter, now time.Time) *CommentHandler {
	return &CommentHandler{
		Comments:  comments,
		Posts:     posts,
		Symbients: newMockSymbientResolver(sym),
		Limiter:   limiter,
		Logger:    testLogger,
		Now:       func() time.Time { return now },
	}
}

func TestCreateComment_Success(t *testing.T) {
	sym := &models.Symbient{ID: uuid.New(), AccountID: uuid.New()}
	posts := newMockPostRepo()
	postID := uuid.New()
	posts.posts[postID] = &repository.PostWithOwner{Post: models.Post{ID: postID}}
	comments := newMockCommentRepo()
	h := testCommentHandler(comments, posts, sym, &countingLimiter{allowed: true}, time.Now())

	req := sessionRequest(http.MethodPost, "/api/comments",
		`{"post_id":"`+postID.String()+`","body":"nice pattern"}`, sym.AccountID)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
	}
	if len(comments.comments) != 1 {
		t.Errorf("comment count = %d, want 1", len(comments.comments))
	}
}

func TestCreateComment_MissingPost(t *testing.T) {
	sym := &models.Symbient{ID: uuid.New(), AccountID: uuid.New()}
	h := testCommentHandler(newMockCommentRepo(), newMockPostRepo(), sym, &countingLimiter{allowed: true}, time.Now())

	req := sessionRequest(http.MethodPost, "/api/comments",
		`{"post_id":"`+uuid.NewString()+`","body":"b"}`, sym.AccountID)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rec.Code)
	}
}

func TestCreateComment_ValidationBeforeBudget(t *testing.T) {
	sym := &models.Symbient{ID: uuid.New(), AccountID: uuid.New()}
	limiter := &countingLimiter{allowed: true}
	h := testCommentHandler(newMockCommentRepo(), newMockPostRepo(), sym, limiter, time.Now())

	req := sessionRequest(http.MethodPost, "/api/comments",
		`{"post_id":"`+uuid.NewString()+`","body":"   "}`, sym.AccountID)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got %d, want 400", rec.Code)
	}
	if limiter.calls != 0 {
		t.Error("invalid comment consumed a limiter check")
	}
}

func TestCreateComment_RateLimited(t *testing.T) {
	sym := &models.Symbient{ID: uuid.New(), AccountID: uuid.New()}
	posts := newMockPostRepo()
	postID := uuid.New()
	posts.posts[postID] = &repository.PostWithOwner{Post: models.Post{ID: postID}}
	h := testCommentHandler(newMockCommentRepo(), posts, sym, &countingLimiter{allowed: false}, time.Now())

	req := sessionRequest(http.MethodPost, "/api/comments",
		`{"post_id":"`+postID.String()+`","body":"b"}`, sym.AccountID)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 without Retry-After header")
	}
}

func TestUpdateComment_WindowAndOwnership(t *testing.T) {
	owner := &models.Symbient{ID: uuid.New(), AccountID: uuid.New()}
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newComment := func() (*mockCommentRepo, uuid.UUID) {
		comments := newMockCommentRepo()
		id := uuid.New()
		comments.comments[id] = &repository.CommentWithOwner{
			Comment:        models.Comment{ID: id, SymbientID: owner.ID, Body: "b", CreatedAt: created},
			OwnerAccountID: owner.AccountID,
		}
		return comments, id
	}

	t.Run("owner inside window", func(t *testing.T) {
		comments, id := newComment()
		h := testCommentHandler(comments, newMockPostRepo(), owner, &countingLimiter{allowed: true}, created.Add(10*time.Minute))

		req := sessionRequest(http.MethodPatch, "/api/comments/"+id.String(), `{"body":"edited"}`, owner.AccountID)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()
		h.Update(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
		}
		if comments.comments[id].Comment.Body != "edited" {
			t.Error("body not updated")
		}
	})

	t.Run("owner past window", func(t *testing.T) {
		comments, id := newComment()
		h := testCommentHandler(comments, newMockPostRepo(), owner, &countingLimiter{allowed: true}, created.Add(EditWindow+time.Minute))

		req := sessionRequest(http.MethodPatch, "/api/comments/"+id.String(), `{"body":"edited"}`, owner.AccountID)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()
		h.Update(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Fatalf("got %d, want 403", rec.Code)
		}
	})

	t.Run("response carries fresh updated_at", func(t *testing.T) {
		comments, id := newComment()
		comments.comments[id].Comment.UpdatedAt = created
		h := testCommentHandler(comments, newMockPostRepo(), owner, &countingLimiter{allowed: true}, created.Add(time.Minute))

		req := sessionRequest(http.MethodPatch, "/api/comments/"+id.String(), `{"body":"edited"}`, owner.AccountID)
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()
		h.Update(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("got %d: %s", rec.Code, rec.Body.String())
		}
		var resp models.Comment
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if !resp.UpdatedAt.After(created) {
			t.Errorf("updated_at = %v, want later than %v", resp.UpdatedAt, created)
		}
		if !resp.UpdatedAt.Equal(comments.comments[id].Comment.UpdatedAt) {
			t.Errorf("updated_at = %v, want the stored %v", resp.UpdatedAt, comments.comments[id].Comment.UpdatedAt)
		}
	})

	t.Run("non-owner collapses to 404", func(t *testing.T) {
		comments, id := newComment()
		h := testCommentHandler(comments, newMockPostRepo(), owner, &countingLimiter{allowed: true}, created)

		req := sessionRequest(http.MethodPatch, "/api/comments/"+id.String(), `{"body":"edited"}`, uuid.New())
		req.SetPathValue("id", id.String())
		rec := httptest.NewRecorder()
		h.Update(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("got %d, want 404", rec.Code)
		}
	})
}
