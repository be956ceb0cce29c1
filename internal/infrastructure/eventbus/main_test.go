package eventbus_test

import (
	"os"
	"testing"

	"github.com/lllypuk/pulseboard/tests/testutil"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testutil.TerminateContainers()
	os.Exit(code)
}
