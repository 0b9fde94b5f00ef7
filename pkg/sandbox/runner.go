package sandbox

import (
	"regexp"
	"strings"

	"github.com/rhuss/codesmith/pkg/api"
)

// Placeholders in Runner steps and env values. dirPlaceholder is the
// per-run directory, cachePlaceholder the shared Config.CacheDir.
const (
	dirPlaceholder   = "{dir}"
	cachePlaceholder = "{cache}"
)

// Runner describes how to run source code of one language.
type Runner struct {
	Language api.Language

	// File is the name the source is written under inside the run directory.
	File string

	// Steps are executed in order inside the run directory. All but the
	// last are build steps; a failing build step ends the run.
	Steps [][]string

	// Env holds extra KEY=VALUE pairs added to the allowlisted environment.
	Env []string

	// Warm is run once by Local.Warm to populate the shared cache so that
	// the first real run does not pay for a cold toolchain.
	Warm []string

	// Fault picks the fault message out of stderr. An empty result falls
	// back to the last non-empty stderr line.
	Fault func(stderr string) string
}

// DefaultRunners returns the built-in runner candidates in preference
// order. When several candidates exist for one language the first whose
// tools are installed wins.
func DefaultRunners() []Runner {
	return []Runner{
		{
			Language: api.LanguagePython,
			File:     "main.py",
			Steps:    [][]string{{"python3", "-I", "main.py"}},
			Env:      []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1"},
		},
		{
			Language: api.LanguageJavaScript,
			File:     "main.js",
			Steps:    [][]string{{"node", "main.js"}},
			Fault:    nodeFault,
		},
		{
			Language: api.LanguageTypeScript,
			File:     "main.ts",
			Steps:    [][]string{{"tsx", "main.ts"}},
			Fault:    nodeFault,
		},
		{
			Language: api.LanguageTypeScript,
			File:     "main.ts",
			Steps:    [][]string{{"npx", "--yes", "tsx", "main.ts"}},
			Fault:    nodeFault,
		},
		{
			Language: api.LanguageGo,
			File:     "main.go",
			Steps: [][]string{
				{"go", "build", "-o", "{dir}/prog", "main.go"},
				{"{dir}/prog"},
			},
			Env: []string{
				"GOCACHE={cache}/go-build",
				"GOPATH={dir}/.gopath",
				"GOTOOLCHAIN=local",
				"CGO_ENABLED=0",
			},
			Warm:  []string{"go", "build", "fmt", "strings", "strconv", "sort", "math", "errors", "os", "time", "sync", "encoding/json"},
			Fault: goFault,
		},
		{
			Language: api.LanguageJava,
			File:     "Main.java",
			Steps:    [][]string{{"java", "Main.java"}},
			Fault:    javaFault,
		},
		{
			Language: api.LanguageCPP,
			File:     "main.cpp",
			Steps: [][]string{
				{"g++", "-O0", "-o", "{dir}/prog", "main.cpp"},
				{"{dir}/prog"},
			},
			Fault: compilerFault,
		},
	}
}

// shellRunner runs code with the POSIX shell.
func shellRunner() Runner {
	return Runner{
		Language: LanguageShell,
		File:     "main.sh",
		Steps:    [][]string{{"sh", "main.sh"}},
	}
}

// resolve returns a copy of r with every tool replaced by its absolute
// path. It reports false if any tool is not installed.
func (r Runner) resolve(lookPath func(string) (string, error)) (Runner, bool) {
	out := r
	out.Steps = make([][]string, len(r.Steps))
	for i, step := range r.Steps {
		if len(step) == 0 {
			return Runner{}, false
		}
		resolved := append([]string(nil), step...)
		if !strings.Contains(step[0], dirPlaceholder) {
			path, err := lookPath(step[0])
			if err != nil {
				return Runner{}, false
			}
			resolved[0] = path
		}
		out.Steps[i] = resolved
	}
	return out, true
}

// expand substitutes the run directory and cache directory into a step or
// env list.
func expand(args []string, dir, cache string) []string {
	r := strings.NewReplacer(dirPlaceholder, dir, cachePlaceholder, cache)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

var (
	nodeErrorLine   = regexp.MustCompile(`^\w*(Error|Exception)( \[\w+\])?:`)
	javaUncaught    = regexp.MustCompile(`^Exception in thread "[^"]*" (.+)$`)
	compilerError   = regexp.MustCompile(`:\d+(:\d+)?: (fatal )?error: `)
	goExitStatus    = regexp.MustCompile(`^exit status \d+$`)
	nodeVersionLine = regexp.MustCompile(`^Node\.js v\d`)
)

// nodeFault returns the "XxxError: message" line of an uncaught exception.
// Node prints it after the source excerpt and before the stack trace, and
// ends stderr with a version footer.
func nodeFault(stderr string) string {
	if l := firstLine(stderr, nodeErrorLine.MatchString); l != "" {
		return l
	}
	return lastLine(stderr, func(l string) bool {
		return !nodeVersionLine.MatchString(l) && !strings.HasPrefix(l, "(Use `node --trace")
	})
}

// goFault returns the panic or fatal error line, or the first compiler
// diagnostic of a failed build.
func goFault(stderr string) string {
	l := firstLine(stderr, func(l string) bool {
		return strings.HasPrefix(l, "panic: ") || strings.HasPrefix(l, "fatal error: ")
	})
	if l != "" {
		return strings.TrimSuffix(l, " [recovered]")
	}
	if l := firstLine(stderr, func(l string) bool { return strings.HasPrefix(l, "./main.go:") || strings.HasPrefix(l, "main.go:") }); l != "" {
		return l
	}
	return lastLine(stderr, func(l string) bool { return !goExitStatus.MatchString(l) })
}

// javaFault returns the uncaught exception without the thread prefix, or
// the first source-launcher compile error.
func javaFault(stderr string) string {
	if l := firstLine(stderr, javaUncaught.MatchString); l != "" {
		return javaUncaught.FindStringSubmatch(l)[1]
	}
	return compilerFault(stderr)
}

// compilerFault returns the first "file:line: error:" diagnostic.
func compilerFault(stderr string) string {
	return firstLine(stderr, compilerError.MatchString)
}

func firstLine(s string, match func(string) bool) string {
	for l := range strings.Lines(s) {
		if l = strings.TrimSpace(l); l != "" && match(l) {
			return l
		}
	}
	return ""
}

// lastLine returns the last non-empty line accepted by keep. A nil keep
// accepts every line.
func lastLine(s string, keep func(string) bool) string {
	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if l != "" && (keep == nil || keep(l)) {
			return l
		}
	}
	return ""
}
