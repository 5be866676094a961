package macro

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dlua-lang/dlua/internal/errors"
	"github.com/dlua-lang/dlua/internal/lexer"
)

// expandSource runs both passes over src the way the compiler does, with
// imports merged below the file's own globals.
func expandSource(t *testing.T, src string, level int, imports ...Table) (string, error) {
	t.Helper()

	toks := lexer.Tokenize(src, "test.lua")
	own, err := CollectGlobals(toks, testGate(level))
	if err != nil {
		return "", err
	}
	return Expand(context.Background(), Input{
		Tokens:  toks,
		Globals: Merge(own, imports...),
		Level:   level,
		Levels:  testLevels,
	})
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "value macro",
			src:  "-- @macro VERSION = \"1.0\"\nprint(VERSION)\n",
			want: "\nprint(\"1.0\")\n",
		},
		{
			name: "function macro",
			src:  "-- @macro function double(x) return x * 2 end\nprint(double(21))\n",
			want: "\nprint(21 * 2)\n",
		},
		{
			name: "function macro without parameters",
			src:  "-- @macro function now() return os.time() end\nprint(now())\n",
			want: "\nprint(os.time())\n",
		},
		{
			name: "nested call arguments",
			src:  "-- @macro function add(a, b) return a + b end\nlocal r = add(f(1, 2), (3))\n",
			want: "\nlocal r = f(1, 2) + (3)\n",
		},
		{
			name: "boundary safe call",
			src:  "-- @macro function pad(w) return w + scroller_width end\nx = pad(5)\n",
			want: "\nx = 5 + scroller_width\n",
		},
		{
			name: "local shadows inner block only",
			src: `-- @macro M = 42
print(M)
do
  local M = 1
  print(M)
end
print(M)
`,
			want: `
print(42)
do
  local M = 1
  print(M)
end
print(42)
`,
		},
		{
			name: "local attribute",
			src:  "-- @macro M = 42\ndo\n  local M <const> = 1\n  print(M)\nend\n",
			want: "\ndo\n  local M <const> = 1\n  print(M)\nend\n",
		},
		{
			name: "local macro is block scoped",
			src:  "do\n  -- @macro local N = 3\n  print(N)\nend\nprint(N)\n",
			want: "do\n  \n  print(3)\nend\nprint(N)\n",
		},
		{
			name: "parameters shadow",
			src:  "-- @macro x = 10\nlocal function f(x)\n  return x\nend\nprint(x)\n",
			want: "\nlocal function f(x)\n  return x\nend\nprint(10)\n",
		},
		{
			name: "global function name shadows",
			src:  "-- @macro f = 1\nprint(f)\nfunction f() end\nprint(f)\n",
			want: "\nprint(1)\nfunction f() end\nprint(f)\n",
		},
		{
			name: "method binds self",
			src:  "-- @macro self = X\nfunction obj:m(a) return self end\nprint(self)\n",
			want: "\nfunction obj:m(a) return self end\nprint(X)\n",
		},
		{
			name: "assignment target shadows globally",
			src:  "-- @macro DEBUG = true\nprint(DEBUG)\nDEBUG = false\nprint(DEBUG)\n",
			want: "\nprint(true)\nDEBUG = false\nprint(DEBUG)\n",
		},
		{
			name: "comparison is not assignment",
			src:  "-- @macro DEBUG = true\nif DEBUG == true then end\n",
			want: "\nif true == true then end\n",
		},
		{
			name: "for variables shadow in body",
			src:  "-- @macro i = 99\nfor i = 1, 3 do print(i) end\nprint(i)\n",
			want: "\nfor i = 1, 3 do print(i) end\nprint(99)\n",
		},
		{
			name: "generic for",
			src:  "-- @macro v = 0\nfor k, v in pairs(t) do print(v) end\nprint(v)\n",
			want: "\nfor k, v in pairs(t) do print(v) end\nprint(0)\n",
		},
		{
			name: "branches get clean frames",
			src: `-- @macro M = 1
if a then
  local M = 2
elseif M then
  print(M)
else
  print(M)
end
print(M)
`,
			want: `
if a then
  local M = 2
elseif 1 then
  print(1)
else
  print(1)
end
print(1)
`,
		},
		{
			name: "alias clones target",
			src:  "-- @macro function sq(x) return x * x end\ndo\n  -- @alias local square = sq\n  print(square(3))\nend\n",
			want: "\ndo\n  \n  print(3 * 3)\nend\n",
		},
		{
			name: "method call name untouched",
			src:  "-- @macro len = 3\nprint(s:len())\n",
			want: "\nprint(s:len())\n",
		},
		{
			name: "stray end keeps global frame",
			src:  "-- @macro M = 1\nend\nprint(M)\n",
			want: "\nend\nprint(1)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandSource(t, tt.src, 1)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExpandCrossFile(t *testing.T) {
	util, err := CollectGlobals(lexer.Tokenize("-- @macro VERSION = \"1.0\"\n-- @macro NAME = 'util'\n", "util.lua"), testGate(1))
	if err != nil {
		t.Fatal(err)
	}

	src := "-- @macro NAME = 'main'\nlocal util = require(\"util\")\nprint(VERSION, NAME)\n"
	got, err := expandSource(t, src, 1, util)
	if err != nil {
		t.Fatal(err)
	}
	want := "\nlocal util = require(\"util\")\nprint(\"1.0\", 'main')\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code string
	}{
		{"too few arguments", "-- @macro function add(a, b) return a + b end\nprint(add(1))", errors.CodeArityMismatch},
		{"too many arguments", "-- @macro function add(a, b) return a + b end\nprint(add(1, 2, 3))", errors.CodeArityMismatch},
		{"missing call parens", "-- @macro function add(a, b) return a + b end\nlocal f = add", errors.CodeExpectedLParen},
		{"missing call parens mid file", "-- @macro function add(a, b) return a + b end\nprint(add)", errors.CodeExpectedLParen},
		{"unterminated call", "-- @macro function add(a, b) return a + b end\nprint(add(1, 2", errors.CodeUnterminatedCall},
		{"alias of undefined", "do\n  -- @alias local s = nothing\nend", errors.CodeUndefinedAlias},
		{"alias of shadowed", "-- @macro M = 1\ndo\n  local M = 2\n  -- @alias local N = M\nend", errors.CodeShadowedAlias},
		{"global alias", "-- @macro M = 1\n-- @alias N = M", errors.CodeGlobalAlias},
		{"bad local directive", "do\n  -- @macro local N\nend", errors.CodeExpectedAssign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expandSource(t, tt.src, 1)
			if !errors.IsCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestExpandAliasSuggestion(t *testing.T) {
	src := "-- @macro function square(x) return x * x end\ndo\n  -- @alias local sq = sqare\nend\n"
	_, err := expandSource(t, src, 1)
	if !errors.IsCode(err, errors.CodeUndefinedAlias) {
		t.Fatalf("expected undefined alias, got %v", err)
	}
	if !strings.Contains(err.Error(), "did you mean square?") {
		t.Errorf("missing suggestion in %q", err)
	}
}

func TestExpandLevelGating(t *testing.T) {
	src := "-- @if debug\nprint(\"dbg\")\n-- @endif\n-- @if release\nprint(\"rel\")\n-- @endif\n"

	got, err := expandSource(t, src, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("\n\nprint(\"rel\")\n\n", got); diff != "" {
		t.Errorf("info level (-want +got):\n%s", diff)
	}

	got, err = expandSource(t, src, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("\nprint(\"dbg\")\n\n\nprint(\"rel\")\n\n", got); diff != "" {
		t.Errorf("debug level (-want +got):\n%s", diff)
	}
}

func TestExpandNestedGating(t *testing.T) {
	src := "-- @if debug\na()\n-- @if release\nb()\n-- @endif\n-- @endif\nc()\n"
	got, err := expandSource(t, src, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("\nc()\n", got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandIdempotent(t *testing.T) {
	src := `-- @macro VERSION = "1.0"
-- @macro function double(x) return x * 2 end
local function f(n)
  -- @macro local K = 7
  return double(n) + K
end
print(VERSION, f(3))
`
	first, err := expandSource(t, src, 1)
	if err != nil {
		t.Fatal(err)
	}
	second, err := expandSource(t, first, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second pass changed output (-first +second):\n%s", diff)
	}
}

func TestExpandCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Expand(ctx, Input{Tokens: lexer.Tokenize("print(1)", "test.lua")})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
