package suggest

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/assessor-collab/internal/logging"
	"github.com/dimitrije/assessor-collab/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
)

const cooldownEntries = 4096

// Generator is the text-generation collaborator. *Registry implements it.
type Generator interface {
	ListProviders() []string
	Generate(ctx context.Context, prompt, provider string, opts Options) (*Response, error)
}

type Store interface {
	Create(ctx context.Context, s *models.CollaborationSuggestion) error
}

type Request struct {
	WorkspaceID int64
	ModelID     string
	UserName    string
	EntityType  string
	EntityID    int64
	EntityName  string
	Content     string
}

func (r Request) cooldownKey() string {
	sum := sha256.Sum256([]byte(r.Content))
	return fmt.Sprintf("%d/%s/%s/%d/%x", r.WorkspaceID, r.ModelID, r.EntityType, r.EntityID, sum[:8])
}

type generated struct {
	SuggestionType string   `json:"suggestionType"`
	Title          string   `json:"title" validate:"required"`
	Description    string   `json:"description"`
	Confidence     *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
}

// Bridge turns a content update into a persisted suggestion by walking the
// provider chain until one answers with a well-formed suggestion.
type Bridge struct {
	gen      Generator
	store    Store
	opts     Options
	cooldown *expirable.LRU[string, struct{}]
	validate *validator.Validate
	log      *logrus.Entry
}

func NewBridge(gen Generator, store Store, cooldown time.Duration) *Bridge {
	b := &Bridge{
		gen:      gen,
		store:    store,
		opts:     DefaultOptions,
		validate: validator.New(),
		log:      logging.Component("suggest"),
	}
	if cooldown > 0 {
		b.cooldown = expirable.NewLRU[string, struct{}](cooldownEntries, nil, cooldown)
	}
	return b
}

func (b *Bridge) Suggest(ctx context.Context, req Request) (*models.CollaborationSuggestion, error) {
	providers := b.gen.ListProviders()
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	key := req.cooldownKey()
	if b.cooldown != nil {
		if b.cooldown.Contains(key) {
			return nil, ErrCoolingDown
		}
		b.cooldown.Add(key, struct{}{})
	}

	s, err := b.generate(ctx, providers, req)
	if err != nil {
		if b.cooldown != nil {
			b.cooldown.Remove(key)
		}
		return nil, err
	}

	s.ID = uuid.New()
	s.WorkspaceID = req.WorkspaceID
	if req.ModelID != "" {
		modelID := req.ModelID
		s.ModelID = &modelID
	}
	s.CreatedAt = time.Now().UTC()

	if err := b.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to store suggestion: %w", err)
	}
	return s, nil
}

func (b *Bridge) generate(ctx context.Context, providers []string, req Request) (*models.CollaborationSuggestion, error) {
	prompt := BuildPrompt(req)
	for _, name := range providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		log := b.log.WithFields(logrus.Fields{
			"provider": name,
			"model_id": req.ModelID,
			"entity":   req.EntityType,
		})

		resp, err := b.gen.Generate(ctx, prompt, name, b.opts)
		if err != nil {
			log.WithError(err).Warn("provider failed")
			continue
		}
		s, err := b.parse(resp.Message)
		if err != nil {
			log.WithError(err).Warn("provider returned unusable output")
			continue
		}
		return s, nil
	}
	return nil, ErrAllProvidersFailed
}

// parse extracts the outermost JSON object from text and validates it.
func (b *Bridge) parse(text string) (*models.CollaborationSuggestion, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedSuggestion)
	}

	var g generated
	if err := json.Unmarshal([]byte(text[start:end+1]), &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSuggestion, err)
	}
	if err := b.validate.Struct(&g); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: invalid %s", ErrMalformedSuggestion, verrs[0].Field())
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedSuggestion, err)
	}

	kind := strings.TrimSpace(g.SuggestionType)
	if kind == "" {
		kind = "improvement"
	}
	return &models.CollaborationSuggestion{
		SuggestionType: kind,
		Title:          strings.TrimSpace(g.Title),
		Description:    strings.TrimSpace(g.Description),
		Confidence:     *g.Confidence,
	}, nil
}

func BuildPrompt(req Request) string {
	name := req.EntityName
	if name == "" {
		name = fmt.Sprintf("%s #%d", req.EntityType, req.EntityID)
	}

	var sb strings.Builder
	sb.WriteString("You are reviewing a property assessment model edited collaboratively.\n")
	fmt.Fprintf(&sb, "%s just updated the %s %q in model %s.\n\n", req.UserName, req.EntityType, name, req.ModelID)
	sb.WriteString("Updated content:\n```\n")
	sb.WriteString(req.Content)
	sb.WriteString("\n```\n\n")
	sb.WriteString("Suggest one concrete improvement: a correctness fix, a clearer formulation, ")
	sb.WriteString("or a missing validation or test.\n")
	sb.WriteString("Respond with only a JSON object of the form ")
	sb.WriteString(`{"suggestionType": "improvement|fix|validation|test", "title": "...", "description": "...", "confidence": 0.0}`)
	sb.WriteString(" where confidence is between 0 and 1.\n")
	return sb.String()
}
