package build

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/dlua-lang/dlua/internal/cli"
	"github.com/dlua-lang/dlua/internal/lexer"
)

// SourceExt is the extension of source and output files.
const SourceExt = ".lua"

// RequiredModules extracts the literal module names passed to require in
// tokens. Both require("a.b") and require "a.b" are recognised. Any other
// argument shape is dynamic: it is logged and skipped.
func RequiredModules(file string, tokens []lexer.Token, logger *cli.Logger) []string {
	var mods []string
	for i := 0; i < len(tokens); i++ {
		if tokens[i].Type != lexer.TokenRequire {
			continue
		}
		j := skipTrivia(tokens, i+1)
		if j >= len(tokens) {
			break
		}
		switch tokens[j].Type {
		case lexer.TokenString:
			mods = append(mods, unquote(tokens[j].Literal))
			i = j
			continue
		case lexer.TokenLParen:
			k := skipTrivia(tokens, j+1)
			if k < len(tokens) && tokens[k].Type == lexer.TokenString {
				if r := skipTrivia(tokens, k+1); r < len(tokens) && tokens[r].Type == lexer.TokenRParen {
					mods = append(mods, unquote(tokens[k].Literal))
					i = r
					continue
				}
			}
		}
		logger.Warn("%s: skip dynamic require at %s", file, tokens[i].Pos)
	}
	return mods
}

func skipTrivia(tokens []lexer.Token, i int) int {
	for i < len(tokens) && tokens[i].Is(lexer.TokenWhitespace, lexer.TokenComment) {
		i++
	}
	return i
}

// unquote strips the delimiters of a short or long string literal.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	if strings.HasPrefix(s, "[") {
		level := strings.IndexByte(s[1:], '[') + 1
		if level > 0 && len(s) >= 2*level+2 {
			return s[level+1 : len(s)-level-1]
		}
	}
	return s
}

// Resolver maps module names to files under a project root by probing the
// configured search paths.
type Resolver struct {
	root        string
	searchPaths []string
	logger      *cli.Logger

	mu         sync.Mutex
	unresolved map[string]bool
	modules    []string
}

// NewResolver creates a resolver. known lists the project's source files and
// is used only to suggest close matches for unresolved names.
func NewResolver(root string, searchPaths []string, known []string, logger *cli.Logger) *Resolver {
	if len(searchPaths) == 0 {
		searchPaths = []string{"."}
	}
	mods := make([]string, 0, len(known))
	for _, f := range known {
		if rel, err := filepath.Rel(root, f); err == nil {
			mods = append(mods, ModuleName(rel))
		}
	}
	sort.Strings(mods)
	return &Resolver{
		root:        root,
		searchPaths: searchPaths,
		logger:      logger,
		unresolved:  make(map[string]bool),
		modules:     mods,
	}
}

// ModuleName converts a root-relative file path to its dotted module name.
func ModuleName(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), SourceExt)
	return strings.ReplaceAll(rel, "/", ".")
}

// Candidates lists the paths probed for name, in order.
func (r *Resolver) Candidates(name string) []string {
	modulePath := strings.ReplaceAll(name, ".", string(filepath.Separator))
	out := make([]string, 0, 2*len(r.searchPaths))
	for _, sp := range r.searchPaths {
		var base string
		if strings.Contains(sp, "?") {
			base = strings.Replace(filepath.FromSlash(sp), "?", modulePath, 1)
		} else {
			base = filepath.Join(filepath.FromSlash(sp), modulePath)
		}
		if !filepath.IsAbs(base) {
			base = filepath.Join(r.root, base)
		}
		out = append(out, withExt(base), base)
	}
	return out
}

// Resolve returns the first candidate that is a regular file. Unresolved
// names are logged once per distinct module path.
func (r *Resolver) Resolve(name string) (string, bool) {
	for _, c := range r.Candidates(name) {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c, true
		}
	}

	modulePath := strings.ReplaceAll(name, ".", string(filepath.Separator))
	r.mu.Lock()
	seen := r.unresolved[modulePath]
	r.unresolved[modulePath] = true
	r.mu.Unlock()
	if !seen {
		if s := r.suggest(name); s != "" {
			r.logger.Warn("Unable to resolve require '%s' (did you mean '%s'?)", modulePath, s)
		} else {
			r.logger.Warn("Unable to resolve require '%s'", modulePath)
		}
	}
	return "", false
}

// Unresolved returns the distinct module paths that failed to resolve.
func (r *Resolver) Unresolved() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.unresolved))
	for p := range r.unresolved {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) suggest(name string) string {
	return Suggest(name, r.modules)
}

// Suggest returns the closest fuzzy match for name among candidates, or "".
func Suggest(name string, candidates []string) string {
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

// withExt swaps the extension of p for the source extension.
func withExt(p string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + SourceExt
}
