package procstream

import (
	"os"
	"strings"
)

// baseEnv returns the parent process's environment. It is never mutated;
// mergeEnv only ever layers overrides on top of a copy.
func baseEnv() []string {
	return os.Environ()
}

func splitEnv(kv string) (key, value string) {
	if i := strings.IndexByte(kv, '='); i >= 0 {
		return kv[:i], kv[i+1:]
	}
	return kv, ""
}
