package repository

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exprep-backend/internal/config"
	"github.com/stemsi/exprep-backend/internal/engine"
)

func newTestStore(t *testing.T, ttl time.Duration) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSessionStore(rdb, ttl, zerolog.Nop()), mr
}

func sampleSession(t *testing.T) *engine.Session {
	t.Helper()
	c := engine.NewController(zerolog.Nop())
	qs := []engine.Question{
		{ID: 1, Options: []string{"a", "b"}, CorrectText: "a", Scoreable: true},
		{ID: 2, Options: []string{"a", "b"}, CorrectText: "b", Scoreable: true},
	}
	if err := c.StartSession(9, qs, engine.ModeExam, 5); err != nil {
		t.Fatal(err)
	}
	if err := c.SelectAnswer(2, "b"); err != nil {
		t.Fatal(err)
	}
	return c.Session()
}

func TestSessionStoreRoundTrip(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	got, err := store.Load(ctx, 1)
	if err != nil || got != nil {
		t.Fatalf("empty load = %v, %v", got, err)
	}

	sess := sampleSession(t)
	if err := store.Save(ctx, 1, sess); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL(config.CacheKey.PracticeSessionKey(1)); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h", ttl)
	}

	got, err = store.Load(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != sess.ID || got.PaperID != 9 || len(got.Questions) != 2 {
		t.Fatalf("loaded = %+v", got)
	}
	st := got.QuestionStates[2]
	if st.SelectedAnswer == nil || *st.SelectedAnswer != "b" {
		t.Fatalf("state = %+v", st)
	}

	if err := store.Delete(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(config.CacheKey.PracticeSessionKey(1)) {
		t.Fatal("record should be gone")
	}
}

func TestSessionStoreDiscardsGarbage(t *testing.T) {
	store, mr := newTestStore(t, 0)
	key := config.CacheKey.PracticeSessionKey(3)
	if err := mr.Set(key, "{not json"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(context.Background(), 3)
	if err != nil || got != nil {
		t.Fatalf("load = %v, %v", got, err)
	}
	if mr.Exists(key) {
		t.Fatal("unreadable record should be deleted")
	}
}

// failDel makes every DEL fail while other commands pass through.
type failDel struct{}

func (failDel) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (failDel) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "del" {
			err := errors.New("del refused")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failDel) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestSessionStoreLogsFailedDiscard(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	rdb.AddHook(failDel{})

	var buf bytes.Buffer
	store := NewSessionStore(rdb, 0, zerolog.New(&buf))
	key := config.CacheKey.PracticeSessionKey(4)
	if err := mr.Set(key, "{not json"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(context.Background(), 4)
	if err != nil || got != nil {
		t.Fatalf("load = %v, %v", got, err)
	}
	if out := buf.String(); !strings.Contains(out, "del refused") || !strings.Contains(out, `"level":"error"`) {
		t.Fatalf("delete failure not logged: %s", out)
	}
}

func TestSessionStoreUsersAreIsolated(t *testing.T) {
	store, _ := newTestStore(t, 0)
	ctx := context.Background()

	if err := store.Save(ctx, 1, sampleSession(t)); err != nil {
		t.Fatal(err)
	}
	got, err := store.Load(ctx, 2)
	if err != nil || got != nil {
		t.Fatalf("other user's load = %v, %v", got, err)
	}
}
