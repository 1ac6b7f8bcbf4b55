package match

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-resolver/internal/property"
)

// Completer is the generative-text collaborator.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Method records how a selection was made.
type Method string

const (
	MethodOnly          Method = "single_candidate"
	MethodModel         Method = "model"
	MethodDeterministic Method = "deterministic"
)

// Selection is the outcome of Select. Err is set when the model was asked
// but its answer could not be used; Index then comes from Best.
type Selection struct {
	Index  int
	Method Method
	Err    error
}

// DefaultCompletionTimeout bounds one model call.
const DefaultCompletionTimeout = 5 * time.Second

// Selector asks a model to choose among candidates and falls back to Best.
// A nil Completer always uses Best.
type Selector struct {
	completer Completer
	timeout   time.Duration
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithCompletionTimeout bounds each model call. A call that runs past it
// falls back to Best.
func WithCompletionTimeout(d time.Duration) SelectorOption {
	return func(s *Selector) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSelector returns a Selector. completer may be nil.
func NewSelector(completer Completer, opts ...SelectorOption) *Selector {
	s := &Selector{completer: completer, timeout: DefaultCompletionTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Select chooses one of cands for target. It returns false only when there
// are no candidates. It never returns an error.
func (s *Selector) Select(ctx context.Context, cands []property.Candidate, target Target) (Selection, bool) {
	switch len(cands) {
	case 0:
		return Selection{}, false
	case 1:
		return Selection{Index: 0, Method: MethodOnly}, true
	}
	if s == nil || s.completer == nil {
		return Selection{Index: Best(cands, target.Address), Method: MethodDeterministic}, true
	}

	idx, err := s.ask(ctx, cands, target)
	if err != nil {
		fallback := Best(cands, target.Address)
		zap.L().Warn("match: model selection unavailable, using deterministic scorer",
			zap.Int("candidates", len(cands)),
			zap.Int("index", fallback),
			zap.Error(err),
		)
		return Selection{Index: fallback, Method: MethodDeterministic, Err: err}, true
	}
	return Selection{Index: idx, Method: MethodModel}, true
}

func (s *Selector) ask(ctx context.Context, cands []property.Candidate, target Target) (int, error) {
	prompt, err := BuildPrompt(cands, target)
	if err != nil {
		return 0, eris.Wrap(err, "match: build prompt")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return 0, eris.Wrap(err, "match: complete")
	}
	return ParseIndex(text, len(cands))
}

// BuildPrompt lists every candidate as compact JSON together with the target.
func BuildPrompt(cands []property.Candidate, target Target) (string, error) {
	list, err := json.Marshal(cands)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("You are matching a property record to a target location.\n")
	fmt.Fprintf(&b, "Target address: %s\n", strings.TrimSpace(target.Address))
	if target.Lat != nil && target.Lng != nil {
		fmt.Fprintf(&b, "Target coordinates: %.6f, %.6f\n", *target.Lat, *target.Lng)
	}
	b.WriteString("Candidates:\n")
	b.Write(list)
	b.WriteString("\nReply with only JSON of the form {\"index\": N} where N is the index of the best candidate.")
	return b.String(), nil
}

var jsonObject = regexp.MustCompile(`\{[^{}]*\}`)

// ParseIndex extracts {"index": N} from model text and checks 0 <= N < count.
func ParseIndex(text string, count int) (int, error) {
	raw := jsonObject.FindString(text)
	if raw == "" {
		return 0, eris.Wrap(property.ErrDisambiguation, "no JSON object in reply")
	}
	var reply struct {
		Index *json.Number `json:"index"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil || reply.Index == nil {
		return 0, eris.Wrap(property.ErrDisambiguation, "reply has no index")
	}
	n, err := reply.Index.Int64()
	if err != nil {
		return 0, eris.Wrapf(property.ErrDisambiguation, "index %s is not an integer", reply.Index.String())
	}
	if n < 0 || n >= int64(count) {
		return 0, eris.Wrapf(property.ErrDisambiguation, "index %d out of range [0,%d)", n, count)
	}
	return int(n), nil
}
