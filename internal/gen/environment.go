package gen

import (
	"fmt"
	"os"
	"strings"
)

// Environment holds the execution context passed to external commands.
type Environment struct {
	ProjectRoot  string
	ArtifactsDir string
	CustomVars   map[string]string
	baseEnv      []string // lazily snapshotted os.Environ
}

// Vars returns the variable substitution map for command templates.
// Custom vars are included first; built-ins always win.
func (e *Environment) Vars() map[string]string {
	m := make(map[string]string, 2+len(e.CustomVars))
	for k, v := range e.CustomVars {
		m[k] = v
	}
	m["ARTIFACTS_DIR"] = e.ArtifactsDir
	m["PROJECT_ROOT"] = e.ProjectRoot
	return m
}

// ExpandVars substitutes variables in template using the vars map,
// falling back to environment variables.
func ExpandVars(template string, vars map[string]string) string {
	return os.Expand(template, func(key string) string {
		if v, ok := vars[key]; ok {
			return v
		}
		return os.Getenv(key)
	})
}

// BuildEnv returns the environment variables for a child process: the current
// environment plus LOOM_ variables describing the request. The base
// environment is snapshotted once per Environment and reused across calls.
func BuildEnv(env *Environment, req *Request) []string {
	if env.baseEnv == nil {
		env.baseEnv = os.Environ()
	}
	result := make([]string, len(env.baseEnv), len(env.baseEnv)+8+len(env.CustomVars))
	copy(result, env.baseEnv)
	for k, v := range env.CustomVars {
		result = append(result, "LOOM_"+k+"="+v)
	}
	result = append(result,
		"LOOM_PROJECT_ROOT="+env.ProjectRoot,
		"LOOM_ARTIFACTS_DIR="+env.ArtifactsDir,
	)
	if req != nil {
		result = append(result,
			"LOOM_KIND="+req.Kind,
			"LOOM_STAGE="+req.Stage,
			fmt.Sprintf("LOOM_CHAPTER=%d", req.Chapter),
			fmt.Sprintf("LOOM_SCENE=%d", req.Scene),
		)
	}
	return result
}

// summaryOf trims s to at most n words for error messages and rolling context.
func summaryOf(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) <= n {
		return strings.Join(fields, " ")
	}
	return strings.Join(fields[:n], " ") + " ..."
}
