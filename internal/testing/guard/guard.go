// Package guard switches the binaries into test mode; tests import it for its side effect.
package guard

import "os"

// Env mirrors app.TestModeEnv; app cannot be imported here without a cycle in its own tests.
const Env = "BELEZAFLOW_TEST_MODE"

func init() {
	if os.Getenv(Env) == "" {
		_ = os.Setenv(Env, "1")
	}
}
