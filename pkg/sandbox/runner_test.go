package sandbox

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhuss/codesmith/pkg/api"
)

func TestFaultExtractors(t *testing.T) {
	tests := []struct {
		name   string
		fault  func(string) string
		stderr string
		want   string
	}{
		{
			name:  "node uncaught error",
			fault: nodeFault,
			stderr: "/tmp/codesmith-run-1/main.js:1\n" +
				"console.log('partial'); throw new Error('boom')\n" +
				"                        ^\n\n" +
				"Error: boom\n" +
				"    at Object.<anonymous> (/tmp/codesmith-run-1/main.js:1:31)\n" +
				"    at Module._compile (node:internal/modules/cjs/loader:1529:14)\n\n" +
				"Node.js v20.19.5\n",
			want: "Error: boom",
		},
		{
			name:   "node type error",
			fault:  nodeFault,
			stderr: "main.js:2\nx()\n^\n\nTypeError: x is not a function\n    at main.js:2:1\n\nNode.js v22.1.0",
			want:   "TypeError: x is not a function",
		},
		{
			name:   "node coded error",
			fault:  nodeFault,
			stderr: "node:fs:1\n\nError [ERR_INVALID_ARG_TYPE]: The \"path\" argument must be of type string\n    at x\n\nNode.js v20.0.0",
			want:   "Error [ERR_INVALID_ARG_TYPE]: The \"path\" argument must be of type string",
		},
		{
			name:   "node thrown string skips footer",
			fault:  nodeFault,
			stderr: "main.js:1\nthrow 'boom'\n^\nboom\n(Use `node --trace-uncaught ...` to show where the exception was thrown)\n\nNode.js v20.19.5",
			want:   "boom",
		},
		{
			name:   "go panic",
			fault:  goFault,
			stderr: "panic: boom\n\ngoroutine 1 [running]:\nmain.main()\n\t/tmp/codesmith-run-2/main.go:6 +0x5d\nexit status 2\n",
			want:   "panic: boom",
		},
		{
			name:   "go recovered panic",
			fault:  goFault,
			stderr: "panic: boom [recovered]\n\tpanic: again\n\ngoroutine 1 [running]:",
			want:   "panic: boom",
		},
		{
			name:   "go fatal error",
			fault:  goFault,
			stderr: "fatal error: all goroutines are asleep - deadlock!\n\ngoroutine 1 [chan receive]:\nmain.main()",
			want:   "fatal error: all goroutines are asleep - deadlock!",
		},
		{
			name:   "go compile error",
			fault:  goFault,
			stderr: "# command-line-arguments\n./main.go:4:2: undefined: foo\n./main.go:5:2: undefined: bar\n",
			want:   "./main.go:4:2: undefined: foo",
		},
		{
			name:   "go exit status only",
			fault:  goFault,
			stderr: "usage error\nexit status 3\n",
			want:   "usage error",
		},
		{
			name:  "java uncaught exception",
			fault: javaFault,
			stderr: "Exception in thread \"main\" java.lang.RuntimeException: boom\n" +
				"\tat Main.main(Main.java:3)\n",
			want: "java.lang.RuntimeException: boom",
		},
		{
			name:   "java compile error",
			fault:  javaFault,
			stderr: "Main.java:3: error: ';' expected\n        int x = 1\n                 ^\n1 error\nerror: compilation failed\n",
			want:   "Main.java:3: error: ';' expected",
		},
		{
			name:   "cpp compile error",
			fault:  compilerFault,
			stderr: "main.cpp: In function 'int main()':\nmain.cpp:3:5: error: 'foo' was not declared in this scope\n    3 |     foo();\n      |     ^~~\n",
			want:   "main.cpp:3:5: error: 'foo' was not declared in this scope",
		},
		{
			name:   "cpp runtime abort has no diagnostic",
			fault:  compilerFault,
			stderr: "terminate called after throwing an instance of 'std::runtime_error'\n  what():  boom\n",
			want:   "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fault(tt.stderr))
		})
	}
}

func TestFaultReasonFallsBackToLastLine(t *testing.T) {
	r := Runner{Fault: compilerFault}
	stderr := "terminate called after throwing an instance of 'std::runtime_error'\n  what():  boom\n"

	assert.Equal(t, "what():  boom", faultReason(r, stderr))
	assert.Equal(t, "what():  boom", faultReason(Runner{}, stderr))
	assert.Empty(t, faultReason(r, ""))
}

// installedRunners are exercised end to end when their tools are present.
var installedRunners = []struct {
	lang       api.Language
	tool       string
	hello      string
	boom       string
	wantReason string
}{
	{
		lang:       api.LanguageJavaScript,
		tool:       "node",
		hello:      "// JavaScript\nconsole.log('hello')",
		boom:       "console.log('partial'); throw new Error('boom')",
		wantReason: "Error: boom",
	},
	{
		lang:       api.LanguageTypeScript,
		tool:       "tsx",
		hello:      "const greeting: string = 'hello'\nconsole.log(greeting)",
		boom:       "console.log('partial')\nthrow new Error('boom')",
		wantReason: "Error: boom",
	},
	{
		lang:       api.LanguageGo,
		tool:       "go",
		hello:      "package main\n\nimport \"fmt\"\n\nfunc main() { fmt.Println(\"hello\") }\n",
		boom:       "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"partial\")\n\tpanic(\"boom\")\n}\n",
		wantReason: "panic: boom",
	},
	{
		lang:       api.LanguageJava,
		tool:       "java",
		hello:      "public class Main {\n  public static void main(String[] args) {\n    System.out.println(\"hello\");\n  }\n}\n",
		boom:       "public class Main {\n  public static void main(String[] args) {\n    System.out.println(\"partial\");\n    throw new RuntimeException(\"boom\");\n  }\n}\n",
		wantReason: "java.lang.RuntimeException: boom",
	},
	{
		lang:       api.LanguageCPP,
		tool:       "g++",
		hello:      "#include <iostream>\nint main() { std::cout << \"hello\" << std::endl; }\n",
		boom:       "#include <iostream>\n#include <stdexcept>\nint main() {\n  std::cout << \"partial\" << std::endl;\n  throw std::runtime_error(\"boom\");\n}\n",
		wantReason: "boom",
	},
}

func TestInstalledRunners(t *testing.T) {
	s := NewLocal(DefaultConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	require.NoError(t, s.Warm(ctx))

	for _, tt := range installedRunners {
		t.Run(tt.lang.String(), func(t *testing.T) {
			if _, err := exec.LookPath(tt.tool); err != nil {
				t.Skipf("%s not installed", tt.tool)
			}

			t.Run("hello", func(t *testing.T) {
				v := s.Execute(context.Background(), tt.hello, tt.lang)
				require.True(t, v.Success, "verdict: %+v", v)
				assert.Equal(t, "hello", v.Stdout)
				assert.Equal(t, api.ExecutionSucceeded, v.State)
				assert.Less(t, v.Duration, DefaultConfig().Timeout)
			})

			t.Run("boom", func(t *testing.T) {
				v := s.Execute(context.Background(), tt.boom, tt.lang)
				assert.False(t, v.Success)
				assert.Equal(t, api.ExecutionFaulted, v.State)
				assert.Equal(t, "partial", v.Stdout, "output before the fault is kept")
				assert.Contains(t, v.FailureReason, tt.wantReason)
				assert.NotEqual(t, 0, v.ExitCode)
			})
		})
	}
}

func TestGoRunnerUsesSharedCache(t *testing.T) {
	r := DefaultRunners()
	var goRunner Runner
	for _, c := range r {
		if c.Language == api.LanguageGo {
			goRunner = c
		}
	}
	require.NotEmpty(t, goRunner.Warm)
	assert.Contains(t, goRunner.Env, "GOCACHE={cache}/go-build")
	assert.Len(t, goRunner.Steps, 2, "build once, then run the binary without go run's exit status footer")
}

func TestWarmPopulatesCache(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
	cache := t.TempDir()
	s := NewLocal(Config{
		CacheDir: cache,
		Runners: []Runner{{
			Language: api.LanguagePython,
			File:     "main.sh",
			Steps:    [][]string{{"sh", "main.sh"}},
			Env:      []string{"WARM_MARKER={cache}/marker"},
			Warm:     []string{"sh", "-c", `echo warmed > "$WARM_MARKER"`},
		}},
	})

	require.NoError(t, s.Warm(context.Background()))
	data, err := os.ReadFile(filepath.Join(cache, "marker"))
	require.NoError(t, err)
	assert.Equal(t, "warmed\n", string(data))

	v := s.Execute(context.Background(), `cat "$WARM_MARKER"`, api.LanguagePython)
	require.True(t, v.Success, "verdict: %+v", v)
	assert.Equal(t, "warmed", v.Stdout, "runs see the shared cache")
}

func TestWarmFailureIsReported(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
	s := NewLocal(Config{
		CacheDir: t.TempDir(),
		Runners: []Runner{{
			Language: api.LanguageGo,
			File:     "main.sh",
			Steps:    [][]string{{"sh", "main.sh"}},
			Warm:     []string{"sh", "-c", "echo no toolchain >&2; exit 1"},
		}},
	})

	err := s.Warm(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no toolchain")
}

func TestUnusableCacheDirFallsBackToRunDir(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not installed")
	}
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	s := NewLocal(Config{
		CacheDir: filepath.Join(blocker, "cache"),
		Runners: []Runner{{
			Language: api.LanguagePython,
			File:     "main.sh",
			Steps:    [][]string{{"sh", "main.sh"}},
			Env:      []string{"CACHE={cache}"},
		}},
	})

	assert.NoError(t, s.Warm(context.Background()))
	v := s.Execute(context.Background(), `echo "$CACHE"`, api.LanguagePython)
	require.True(t, v.Success, "verdict: %+v", v)
	assert.Contains(t, v.Stdout, "codesmith-run-")
	assert.Equal(t, ".cache", filepath.Base(v.Stdout))
}
