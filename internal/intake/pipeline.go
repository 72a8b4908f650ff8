// Package intake runs the emotional-state intake flow: validate the feeling
// statement, load the user, build the prompt, call the completion service,
// normalize the reply, raise safety alerts, append history and compose the
// response.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cheerpup/apps/backend/internal/completion"
	"cheerpup/apps/backend/internal/config"
	"cheerpup/apps/backend/internal/domain"
	"cheerpup/apps/backend/internal/logger"
	"cheerpup/apps/backend/internal/music"
	"cheerpup/apps/backend/internal/ratelimit"
	"cheerpup/apps/backend/internal/store"
)

const (
	MaxFeelingTextLength = 4000
	defaultSaveAttempts  = 3
)

type Options struct {
	BasicModel            string
	EnhancedModel         string
	BasicMusicMode        string
	EnhancedMusicMode     string
	CompletionTimeout     time.Duration
	ReplyOnPersistFailure bool
	SaveAttempts          int
}

func OptionsFromConfig(cfg config.Config) Options {
	timeout := time.Duration(cfg.AITimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return Options{
		BasicModel:            cfg.OpenAIModel,
		EnhancedModel:         cfg.OpenAIEnhancedModel,
		BasicMusicMode:        cfg.BasicMusicMode,
		EnhancedMusicMode:     cfg.EnhancedMusicMode,
		CompletionTimeout:     timeout,
		ReplyOnPersistFailure: cfg.IntakeReplyOnPersistFailure,
		SaveAttempts:          defaultSaveAttempts,
	}
}

// Deps are the collaborators of a Service. Limiter and Music may be nil.
type Deps struct {
	Store     store.Store
	Completer completion.Client
	Music     *music.Filter
	Limiter   ratelimit.Limiter
	Prompts   Catalog
	Log       *logger.Logger
}

type Service struct {
	store     store.Store
	completer completion.Client
	music     *music.Filter
	limiter   ratelimit.Limiter
	prompts   Catalog
	opts      Options
	log       *logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(deps Deps, opts Options) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	filter := deps.Music
	if filter == nil {
		filter = music.NewFilter(nil, log)
	}
	prompts := deps.Prompts
	if prompts.CrisisMessage == "" {
		prompts = DefaultCatalog()
	}
	if opts.SaveAttempts <= 0 {
		opts.SaveAttempts = defaultSaveAttempts
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = 20 * time.Second
	}
	if opts.BasicMusicMode == "" {
		opts.BasicMusicMode = config.MusicModeLink
	}
	if opts.EnhancedMusicMode == "" {
		opts.EnhancedMusicMode = config.MusicModeTitle
	}
	return &Service{
		store:     deps.Store,
		completer: deps.Completer,
		music:     filter,
		limiter:   deps.Limiter,
		prompts:   prompts,
		opts:      opts,
		log:       log.With("component", "intake"),
		tracer:    otel.Tracer("cheerpup/intake"),
		now:       time.Now,
	}
}

type Submission struct {
	UserID      string
	FeelingText string
	Variant     Variant
}

type Result struct {
	Payload   Payload
	Outcome   Outcome
	ChatTurn  domain.ChatTurn
	Mood      *domain.MoodSample
	Persisted bool

	// SeriousAlertCount is the user's counter after this call was applied.
	SeriousAlertCount int
}

// Submit runs one intake call. Every call that reaches the completion
// service appends a new chat turn; identical submissions are not merged.
func (s *Service) Submit(ctx context.Context, sub Submission) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "intake.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("intake.variant", string(sub.Variant)))

	feeling := strings.TrimSpace(sub.FeelingText)
	if feeling == "" {
		return s.fail(span, fmt.Errorf("%w: feelingText is required", ErrInvalidInput))
	}
	if utf8.RuneCountInString(feeling) > MaxFeelingTextLength {
		return s.fail(span, fmt.Errorf("%w: feelingText must be at most %d characters", ErrInvalidInput, MaxFeelingTextLength))
	}
	if strings.TrimSpace(sub.UserID) == "" {
		return s.fail(span, fmt.Errorf("%w: missing user identity", ErrInvalidInput))
	}
	span.SetAttributes(attribute.String("user.id", sub.UserID))
	log := s.log.With("user_id", sub.UserID, "variant", string(sub.Variant))

	user, err := s.load(ctx, sub.UserID)
	if err != nil {
		return s.fail(span, err)
	}
	if sub.Variant == VariantEnhanced && !user.IsPremium {
		return s.fail(span, ErrPremiumRequired)
	}

	// The quota is charged once the call is about to reach the model; an
	// upstream failure after this point still counts.
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, sub.UserID)
		switch {
		case err != nil:
			log.Warn("intake quota check failed (allowing)", "error", err)
		case !allowed:
			return s.fail(span, ErrQuotaExceeded)
		}
	}

	model, musicMode := s.opts.BasicModel, s.opts.BasicMusicMode
	if sub.Variant == VariantEnhanced {
		model, musicMode = s.opts.EnhancedModel, s.opts.EnhancedMusicMode
	}

	completed, err := s.complete(ctx, completion.Request{
		Model:        model,
		SystemPrompt: s.prompts.systemPrompt(sub.Variant),
		UserPrompt:   BuildPrompt(sub.Variant, user, feeling, s.prompts),
	})
	if err != nil {
		log.Error("completion failed", "error", err)
		return s.fail(span, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err))
	}

	parsed := Normalize(completed.Text)
	span.SetAttributes(attribute.String("intake.outcome", parsed.Outcome.String()))
	if parsed.Outcome == Malformed {
		log.Warn("completion was not valid json (using fallback)", "raw", truncate(parsed.Raw, 300))
	}
	reply := parsed.Reply
	reply.Music = s.music.Apply(ctx, musicMode, reply.Music)

	result, err := s.persist(ctx, user, feeling, reply)
	result.Outcome = parsed.Outcome
	if err != nil {
		log.Error("chat history not saved after completion",
			"error", err,
			"chat_id", result.ChatTurn.ID,
			"reply", truncate(reply.Response, 300),
		)
		if !s.opts.ReplyOnPersistFailure {
			return s.fail(span, fmt.Errorf("%w: %v", ErrPersistence, err))
		}
		span.RecordError(err)
		return result, nil
	}
	if result.Payload.Alert != nil {
		log.Warn("serious alert raised", "chat_id", result.ChatTurn.ID, "serious_alert_count", result.SeriousAlertCount)
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (s *Service) load(ctx context.Context, userID string) (*domain.User, error) {
	ctx, span := s.tracer.Start(ctx, "intake.load")
	defer span.End()
	user, err := s.store.Load(ctx, userID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: load user: %v", ErrPersistence, err)
	}
	return user, nil
}

func (s *Service) complete(ctx context.Context, req completion.Request) (completion.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.CompletionTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "intake.complete")
	defer span.End()
	span.SetAttributes(attribute.String("completion.model", req.Model))

	resp, err := s.completer.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return completion.Response{}, err
	}
	span.SetAttributes(attribute.Int("completion.total_tokens", resp.Usage.TotalTokens))
	return resp, nil
}

// persist applies the turn to the user and saves it. A version conflict
// reloads the user and applies the same turn again, so concurrent calls for
// one user never drop each other's history.
func (s *Service) persist(ctx context.Context, user *domain.User, feeling string, reply Reply) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "intake.persist")
	defer span.End()

	now := s.now()
	turn := domain.NewChatTurn(feeling, reply.Response, reply.SuggestedActivity, reply.SuggestedExercise, reply.Music, now)
	var sample *domain.MoodSample
	if reply.Mood != nil {
		if created, err := domain.NewMoodSample(reply.Mood.Mood, reply.Mood.Rating, now); err == nil {
			sample = &created
		}
	}

	result := Result{ChatTurn: turn, Mood: sample}
	for attempt := 1; ; attempt++ {
		alert := raiseAlert(user, reply, s.prompts.CrisisMessage)
		user.AppendChat(turn)
		if sample != nil {
			user.AppendMood(*sample)
		}
		user.Touch(now)
		result.Payload = compose(reply, alert)
		result.SeriousAlertCount = user.SeriousAlertCount

		err := s.store.Save(ctx, user)
		if err == nil {
			result.Persisted = true
			span.SetAttributes(attribute.Int("persist.attempts", attempt))
			return result, nil
		}
		if !errors.Is(err, store.ErrConflict) || attempt >= s.opts.SaveAttempts {
			span.RecordError(err)
			span.SetStatus(codes.Error, "save failed")
			return result, err
		}
		user, err = s.store.Load(ctx, user.ID)
		if err != nil {
			span.RecordError(err)
			return result, err
		}
	}
}

func (s *Service) fail(span trace.Span, err error) (Result, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return Result{}, err
}

func truncate(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit]) + "...(truncated)"
}
