package advisor

import (
	"os"
	"testing"

	coreconfig "github.com/m3rciful/agrobot/core/config"
	"github.com/m3rciful/agrobot/core/logger"
)

func TestMain(m *testing.M) {
	// The component loggers are nil until wired; failure paths under test
	// log through them. Error level keeps the test output quiet.
	_ = logger.InitLogger(&coreconfig.Config{
		Logging: coreconfig.LoggingConfig{Level: "error", Format: "json"},
	})
	os.Exit(m.Run())
}
