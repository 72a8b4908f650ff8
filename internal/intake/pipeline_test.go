package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cheerpup/apps/backend/internal/completion"
	"cheerpup/apps/backend/internal/config"
	"cheerpup/apps/backend/internal/domain"
	"cheerpup/apps/backend/internal/logger"
	"cheerpup/apps/backend/internal/store"
)

type countingStore struct {
	store.Store
	loads atomic.Int32
	saves atomic.Int32
}

func (c *countingStore) Load(ctx context.Context, id string) (*domain.User, error) {
	c.loads.Add(1)
	return c.Store.Load(ctx, id)
}

func (c *countingStore) Save(ctx context.Context, user *domain.User) error {
	c.saves.Add(1)
	return c.Store.Save(ctx, user)
}

type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []completion.Request
}

func (s *scriptedCompleter) Complete(_ context.Context, req completion.Request) (completion.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return completion.Response{}, s.err
	}
	text := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return completion.Response{Text: text, Model: req.Model}, nil
}

func (s *scriptedCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type stubLimiter struct {
	allowed bool
	err     error
}

func (l stubLimiter) Allow(context.Context, string) (bool, error) { return l.allowed, l.err }

type countingLimiter struct {
	calls atomic.Int64
}

func (l *countingLimiter) Allow(context.Context, string) (bool, error) {
	l.calls.Add(1)
	return true, nil
}

type harness struct {
	mem       *store.Memory
	store     *countingStore
	completer *scriptedCompleter
	service   *Service
}

func newHarness(t *testing.T, opts Options, replies ...string) *harness {
	t.Helper()
	mem := store.NewMemory()
	counting := &countingStore{Store: mem}
	completer := &scriptedCompleter{replies: replies}
	svc := NewService(Deps{Store: counting, Completer: completer}, opts)
	return &harness{mem: mem, store: counting, completer: completer, service: svc}
}

func (h *harness) seedUser(t *testing.T, mutate func(u *domain.User)) *domain.User {
	t.Helper()
	email := "asha@example.com"
	user := domain.NewUser("Asha", &email, nil, "hash", time.Now())
	if mutate != nil {
		mutate(user)
	}
	if err := h.mem.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (h *harness) reload(t *testing.T, id string) *domain.User {
	t.Helper()
	user, err := h.mem.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return user
}

const scenarioAReply = `{"response":"That sounds like a lot. Let's slow down together.","suggestedActivity":["breathing exercise"],"suggestedExercise":[],"suggestedMusicLink":{"title":"Calm Song"},"mood":{"mood":"Low","moodRating":2},"serious":false}`

func TestSubmitScenarioProfileMoodAndMusic(t *testing.T) {
	h := newHarness(t, Options{}, scenarioAReply)
	user := h.seedUser(t, func(u *domain.User) {
		age := 30
		gender := "F"
		u.Age = &age
		u.Gender = &gender
		u.IsPremium = true
		u.Moods = append(u.Moods, domain.MoodSample{Mood: domain.MoodOkay, MoodRating: 3, CreatedAt: time.Now()})
	})

	result, err := h.service.Submit(context.Background(), Submission{
		UserID:      user.ID,
		FeelingText: "I feel overwhelmed today",
		Variant:     VariantEnhanced,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	prompt := h.completer.requests[0].UserPrompt
	for _, want := range []string{"- Age: 30", "- Gender: F", "- Last Mood: Okay (3/5)", `"I feel overwhelmed today"`} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}

	stored := h.reload(t, user.ID)
	if len(stored.ChatHistory) != 1 {
		t.Fatalf("expected one chat turn, got %d", len(stored.ChatHistory))
	}
	turn := stored.ChatHistory[0]
	if turn.SuggestedMusicLink == nil || turn.SuggestedMusicLink.Title == nil || *turn.SuggestedMusicLink.Title != "Calm Song" {
		t.Fatalf("expected music title Calm Song, got %+v", turn.SuggestedMusicLink)
	}
	if len(stored.Moods) != 2 {
		t.Fatalf("expected a second mood sample, got %d", len(stored.Moods))
	}
	last, _ := stored.LastMood()
	if last.Mood != domain.MoodLow || last.MoodRating != 2 {
		t.Fatalf("expected last mood Low/2, got %+v", last)
	}
	if result.Payload.Alert != nil {
		t.Fatalf("expected no alert, got %q", *result.Payload.Alert)
	}
	if result.Payload.Serious {
		t.Fatalf("expected serious=false")
	}
}

func TestSubmitBasicKeepsTitleOnlyMusic(t *testing.T) {
	h := newHarness(t, OptionsFromConfig(config.Config{BasicMusicMode: config.MusicModeLink}), scenarioAReply)
	user := h.seedUser(t, nil)

	result, err := h.service.Submit(context.Background(), Submission{
		UserID:      user.ID,
		FeelingText: "I feel overwhelmed today",
		Variant:     VariantBasic,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	music := result.Payload.SuggestedMusicLink
	if music == nil || music.Title == nil || *music.Title != "Calm Song" || music.Link != nil {
		t.Fatalf("expected title-only music in payload, got %+v", music)
	}
	stored := h.reload(t, user.ID)
	if title, ok := stored.LastMusicTitle(); !ok || title != "Calm Song" {
		t.Fatalf("expected stored music title Calm Song, got %q", title)
	}
	last, _ := stored.LastMood()
	if last.Mood != domain.MoodLow || last.MoodRating != 2 {
		t.Fatalf("expected mood Low/2, got %+v", last)
	}
}

func TestSubmitSeriousRaisesAlert(t *testing.T) {
	reply := `{"response":"I'm here with you.","suggestedActivity":[],"suggestedExercise":[],"suggestedMusicLink":{"title":"Fix You"},"mood":{"mood":"Rough","moodRating":1},"serious":true}`
	h := newHarness(t, Options{}, reply)
	user := h.seedUser(t, func(u *domain.User) { u.SeriousAlertCount = 2 })

	result, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "I want to give up", Variant: VariantBasic})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Payload.Response != "I'm here with you." {
		t.Fatalf("expected response unchanged, got %q", result.Payload.Response)
	}
	if result.Payload.Alert == nil || *result.Payload.Alert != DefaultCatalog().CrisisMessage {
		t.Fatalf("expected crisis alert, got %v", result.Payload.Alert)
	}
	if !result.Payload.Serious {
		t.Fatalf("expected serious=true in payload")
	}
	if got := h.reload(t, user.ID).SeriousAlertCount; got != 3 {
		t.Fatalf("expected seriousAlertCount=3, got %d", got)
	}
}

func TestSubmitSeriousMustBeBoolean(t *testing.T) {
	h := newHarness(t, Options{}, `{"response":"ok","serious":"true"}`)
	user := h.seedUser(t, nil)

	result, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "meh", Variant: VariantBasic})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Payload.Alert != nil || h.reload(t, user.ID).SeriousAlertCount != 0 {
		t.Fatalf("expected string serious ignored")
	}
}

func TestSubmitMissingFeelingTouchesNothing(t *testing.T) {
	h := newHarness(t, Options{}, scenarioAReply)
	user := h.seedUser(t, nil)

	for _, feeling := range []string{"", "   \n\t"} {
		_, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: feeling, Variant: VariantBasic})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
	}
	if h.store.loads.Load() != 0 || h.store.saves.Load() != 0 {
		t.Fatalf("expected no store access, got loads=%d saves=%d", h.store.loads.Load(), h.store.saves.Load())
	}
	if h.completer.calls() != 0 {
		t.Fatalf("expected no completion call")
	}
}

func TestSubmitRejectsOverlongFeeling(t *testing.T) {
	h := newHarness(t, Options{}, scenarioAReply)
	user := h.seedUser(t, nil)

	_, err := h.service.Submit(context.Background(), Submission{
		UserID:      user.ID,
		FeelingText: strings.Repeat("a", MaxFeelingTextLength+1),
		Variant:     VariantBasic,
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSubmitMalformedCompletionFallsBack(t *testing.T) {
	raw := "Sorry, I can only answer in prose today. Take a deep breath."
	h := newHarness(t, Options{}, raw)
	user := h.seedUser(t, nil)

	result, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hello", Variant: VariantBasic})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Outcome != Malformed {
		t.Fatalf("expected malformed outcome")
	}
	if result.Payload.Response != raw || result.Payload.Serious {
		t.Fatalf("expected raw text echoed and serious=false, got %+v", result.Payload)
	}
	stored := h.reload(t, user.ID)
	if len(stored.Moods) != 1 || stored.Moods[0].Mood != domain.MoodOkay || stored.Moods[0].MoodRating != 3 {
		t.Fatalf("expected neutral mood sample, got %+v", stored.Moods)
	}
	if stored.ChatHistory[0].SystemMessage != raw {
		t.Fatalf("expected raw text stored as reply")
	}
}

func TestSubmitFirstMoodBecomesLatest(t *testing.T) {
	h := newHarness(t, Options{}, `{"response":"yay","mood":{"mood":"great","moodRating":5}}`)
	user := h.seedUser(t, nil)

	if _, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "I got the job!", Variant: VariantBasic}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	stored := h.reload(t, user.ID)
	if len(stored.Moods) != 1 {
		t.Fatalf("expected exactly one mood sample, got %d", len(stored.Moods))
	}
	if last, _ := stored.LastMood(); last.Mood != domain.MoodGreat || last.MoodRating != 5 {
		t.Fatalf("unexpected latest mood %+v", last)
	}
}

func TestSubmitWithoutMoodRecordsNoSample(t *testing.T) {
	h := newHarness(t, Options{}, `{"response":"noted"}`)
	user := h.seedUser(t, nil)

	result, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "fine", Variant: VariantBasic})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Payload.Mood != nil || result.Mood != nil {
		t.Fatalf("expected no mood, got %+v", result.Payload.Mood)
	}
	if len(h.reload(t, user.ID).Moods) != 0 {
		t.Fatalf("expected no mood sample stored")
	}
}

func TestSubmitIsNotIdempotent(t *testing.T) {
	h := newHarness(t, Options{}, `{"response":"first"}`, `{"response":"second"}`)
	user := h.seedUser(t, nil)

	for i := 0; i < 2; i++ {
		if _, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "same words", Variant: VariantBasic}); err != nil {
			t.Fatalf("submit %d failed: %v", i+1, err)
		}
	}
	history := h.reload(t, user.ID).ChatHistory
	if len(history) != 2 {
		t.Fatalf("expected two chat turns, got %d", len(history))
	}
	if history[0].ID == history[1].ID || history[0].SystemMessage != "first" || history[1].SystemMessage != "second" {
		t.Fatalf("expected distinct turns in order, got %+v", history)
	}
}

func TestSubmitRetriesOnVersionConflict(t *testing.T) {
	h := newHarness(t, Options{}, `{"response":"from intake"}`)
	user := h.seedUser(t, nil)

	interleaved := false
	h.mem.SaveHook = func(*domain.User) error {
		if interleaved {
			return nil
		}
		interleaved = true
		other, err := h.mem.Load(context.Background(), user.ID)
		if err != nil {
			return err
		}
		other.AppendChat(domain.NewChatTurn("manual", "manual reply", nil, nil, nil, time.Now()))
		return h.mem.Save(context.Background(), other)
	}

	result, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Persisted {
		t.Fatalf("expected persisted result")
	}
	history := h.reload(t, user.ID).ChatHistory
	if len(history) != 2 {
		t.Fatalf("expected both writes kept, got %d turns", len(history))
	}
	if h.completer.calls() != 1 {
		t.Fatalf("expected a single completion call, got %d", h.completer.calls())
	}
}

func TestSubmitConcurrentCallsKeepEveryTurn(t *testing.T) {
	const callers = 5
	h := newHarness(t, Options{SaveAttempts: callers}, `{"response":"ok","mood":{"mood":"Good","moodRating":4}}`)
	user := h.seedUser(t, nil)

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hello", Variant: VariantBasic})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	stored := h.reload(t, user.ID)
	if len(stored.ChatHistory) != callers || len(stored.Moods) != callers {
		t.Fatalf("expected %d turns and moods, got %d and %d", callers, len(stored.ChatHistory), len(stored.Moods))
	}
}

func TestSubmitEnhancedRequiresPremium(t *testing.T) {
	h := newHarness(t, Options{}, scenarioAReply)
	user := h.seedUser(t, nil)

	_, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantEnhanced})
	if !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired, got %v", err)
	}
	if h.completer.calls() != 0 || h.store.saves.Load() != 0 {
		t.Fatalf("expected no completion or save")
	}
}

func TestSubmitUnknownUser(t *testing.T) {
	h := newHarness(t, Options{}, scenarioAReply)

	_, err := h.service.Submit(context.Background(), Submission{UserID: "missing", FeelingText: "hi", Variant: VariantBasic})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if h.completer.calls() != 0 {
		t.Fatalf("expected no completion call")
	}
}

func TestSubmitQuota(t *testing.T) {
	h := newHarness(t, Options{}, scenarioAReply)
	user := h.seedUser(t, nil)

	h.service.limiter = stubLimiter{allowed: false}
	if _, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if h.completer.calls() != 0 || h.store.saves.Load() != 0 {
		t.Fatalf("expected no completion or save once the quota is spent")
	}

	h.service.limiter = stubLimiter{err: errors.New("redis down")}
	if _, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic}); err != nil {
		t.Fatalf("expected quota backend failure to allow, got %v", err)
	}
}

func TestSubmitRejectedCallsDoNotSpendQuota(t *testing.T) {
	h := newHarness(t, Options{}, scenarioAReply)
	user := h.seedUser(t, nil)
	limiter := &countingLimiter{}
	h.service.limiter = limiter

	if _, err := h.service.Submit(context.Background(), Submission{UserID: "missing", FeelingText: "hi", Variant: VariantBasic}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantEnhanced}); !errors.Is(err, ErrPremiumRequired) {
		t.Fatalf("expected ErrPremiumRequired, got %v", err)
	}
	if _, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: " ", Variant: VariantBasic}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if got := limiter.calls.Load(); got != 0 {
		t.Fatalf("expected rejected calls to leave the quota alone, got %d", got)
	}

	if _, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if got := limiter.calls.Load(); got != 1 {
		t.Fatalf("expected one quota charge, got %d", got)
	}
}

func TestSubmitUpstreamFailure(t *testing.T) {
	h := newHarness(t, Options{}, scenarioAReply)
	h.completer.err = errors.New("connection reset")
	user := h.seedUser(t, nil)

	_, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if h.store.saves.Load() != 0 {
		t.Fatalf("expected no save after upstream failure")
	}
}

func TestSubmitCompletionTimeout(t *testing.T) {
	mem := store.NewMemory()
	blocking := completion.ClientFunc(func(ctx context.Context, _ completion.Request) (completion.Response, error) {
		<-ctx.Done()
		return completion.Response{}, ctx.Err()
	})
	svc := NewService(Deps{Store: mem, Completer: blocking}, Options{CompletionTimeout: 20 * time.Millisecond})
	email := "t@example.com"
	user := domain.NewUser("T", &email, nil, "hash", time.Now())
	if err := mem.Create(context.Background(), user); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := svc.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable on timeout, got %v", err)
	}
}

func TestSubmitPersistenceFailure(t *testing.T) {
	h := newHarness(t, Options{}, `{"response":"kept reply"}`)
	user := h.seedUser(t, nil)
	h.mem.SaveHook = func(*domain.User) error { return errors.New("disk full") }

	log, logs := logger.NewObserved()
	h.service.log = log

	_, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if logs.FilterMessage("chat history not saved after completion").Len() != 1 {
		t.Fatalf("expected persistence failure to be logged")
	}

	h.service.opts.ReplyOnPersistFailure = true
	result, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic})
	if err != nil {
		t.Fatalf("expected reply despite persistence failure, got %v", err)
	}
	if result.Persisted || result.Payload.Response != "kept reply" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSubmitLinkModeDropsUnverifiedMusic(t *testing.T) {
	reply := `{"response":"ok","suggestedMusicLink":{"title":"Song","link":"https://example.com/song"}}`
	h := newHarness(t, Options{BasicMusicMode: config.MusicModeLink}, reply)
	user := h.seedUser(t, nil)

	result, err := h.service.Submit(context.Background(), Submission{UserID: user.ID, FeelingText: "hi", Variant: VariantBasic})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	music := result.Payload.SuggestedMusicLink
	if music == nil || music.Title != nil || music.Link != nil {
		t.Fatalf("expected empty music suggestion, got %+v", music)
	}
}
