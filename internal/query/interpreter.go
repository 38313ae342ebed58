// Package query turns free-text search queries into structured criteria
// using a language model.
package query

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/photo-curator/internal/ai"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/kozaktomas/photo-curator/internal/errs"
	"github.com/kozaktomas/photo-curator/internal/logging"
	"go.uber.org/zap"
)

//go:embed prompts/search_query.txt
var searchQueryPrompt string

// Extraction is the structured form of a search query.
type Extraction struct {
	People   []string `json:"people"`
	Emotions []string `json:"emotions"`
	Objects  []string `json:"objects,omitempty"`
	Scene    string   `json:"scene"`
	Errors   []string `json:"errors,omitempty"`
}

// HasPeople reports whether the query named at least one person.
func (e Extraction) HasPeople() bool {
	return len(e.People) > 0
}

// Interpreter turns a natural-language query into people names and a scene
// description using a language model.
type Interpreter struct {
	model  ai.LanguageModel
	logger *zap.Logger
}

// NewInterpreter returns an Interpreter backed by model.
func NewInterpreter(model ai.LanguageModel, logger *zap.Logger) *Interpreter {
	return &Interpreter{model: model, logger: logging.OrNop(logger).Named("query")}
}

// BuildPrompt renders the instruction template for a query.
func BuildPrompt(query string, knownPeople []string) string {
	people := "None"
	if len(knownPeople) > 0 {
		b, _ := json.Marshal(knownPeople)
		people = string(b)
	}
	return strings.NewReplacer(
		"{{query}}", strings.ReplaceAll(query, `"`, `'`),
		"{{people}}", people,
	).Replace(searchQueryPrompt)
}

// Interpret asks the model for criteria and validates its answer. On any
// failure the returned extraction is empty and the error says why; callers
// can keep going with the empty extraction.
func (i *Interpreter) Interpret(ctx context.Context, query string, knownPeople []string) (Extraction, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Extraction{}, errs.New(errs.KindValidation, "empty search query")
	}

	start := time.Now()
	raw, err := i.model.Complete(ctx, BuildPrompt(query, knownPeople))
	if err != nil {
		return Extraction{}, errs.Upstream("query interpretation ("+i.model.Name()+")", err)
	}
	i.logger.Debug("model response",
		zap.String("model", i.model.Name()),
		zap.Duration("duration", time.Since(start)),
		zap.String("raw", raw))

	ext, err := Parse(raw)
	if err != nil {
		i.logger.Warn("discarding model output", zap.Error(err), zap.String("raw", raw))
		return Extraction{}, err
	}

	ext.People = CorrectNames(ext.People, knownPeople)
	return ext, nil
}

// Parse extracts and validates the JSON object in a model response. Prose
// and Markdown code fences around the object are ignored.
func Parse(raw string) (Extraction, error) {
	body, err := extractObject(raw)
	if err != nil {
		return Extraction{}, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return Extraction{}, malformed("invalid JSON: %v", err)
	}

	var ext Extraction
	if ext.People, err = stringList(fields, "people", true); err != nil {
		return Extraction{}, err
	}
	if ext.Emotions, err = stringList(fields, "emotions", true); err != nil {
		return Extraction{}, err
	}
	if ext.Objects, err = stringList(fields, "objects", false); err != nil {
		return Extraction{}, err
	}
	if ext.Errors, err = stringList(fields, "errors", false); err != nil {
		return Extraction{}, err
	}
	if ext.Scene, err = sceneText(fields); err != nil {
		return Extraction{}, err
	}

	ext.People = cleanList(ext.People, strings.TrimSpace)
	ext.Emotions = cleanList(ext.Emotions, lowerTrim)
	ext.Objects = cleanList(ext.Objects, lowerTrim)
	ext.Errors = cleanList(ext.Errors, strings.TrimSpace)
	return ext, nil
}

// CorrectNames maps each extracted name onto the stored spelling of a known
// person when both fold to the same key. Unknown names are kept as given.
func CorrectNames(names, known []string) []string {
	if len(names) == 0 {
		return names
	}
	byKey := make(map[string]string, len(known))
	for _, k := range known {
		byKey[database.FoldPersonName(k)] = k
	}

	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		resolved := n
		if k, ok := byKey[database.FoldPersonName(n)]; ok {
			resolved = k
		}
		key := database.NormalizePersonName(resolved)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, resolved)
	}
	return out
}

func extractObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", malformed("empty model response")
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", malformed("no JSON object in model response")
	}

	// Decode only the first object so trailing prose or fences are ignored.
	dec := json.NewDecoder(strings.NewReader(s[start:]))
	var obj json.RawMessage
	if err := dec.Decode(&obj); err != nil {
		return "", malformed("invalid JSON: %v", err)
	}
	return string(obj), nil
}

func stringList(fields map[string]json.RawMessage, key string, required bool) ([]string, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		if required {
			return nil, malformed("missing %q", key)
		}
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, malformed("%q must be a list of strings", key)
	}
	return list, nil
}

// sceneText reads "scene", accepting the older "scenes" list form.
func sceneText(fields map[string]json.RawMessage) (string, error) {
	if raw, ok := fields["scene"]; ok {
		var scene string
		if err := json.Unmarshal(raw, &scene); err != nil {
			return "", malformed(`"scene" must be a string`)
		}
		return lowerTrim(scene), nil
	}
	if _, ok := fields["scenes"]; ok {
		scenes, err := stringList(fields, "scenes", true)
		if err != nil {
			return "", err
		}
		return strings.Join(cleanList(scenes, lowerTrim), ", "), nil
	}
	return "", malformed(`missing "scene"`)
}

func cleanList(in []string, norm func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrMalformedExtraction, fmt.Sprintf(format, args...))
}

// IsMalformed reports whether err came from an unusable model response.
func IsMalformed(err error) bool {
	return errors.Is(err, errs.ErrMalformedExtraction)
}
